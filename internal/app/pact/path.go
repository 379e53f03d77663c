package pact

import (
	"regexp"
	"strconv"
)

const (
	bodyRoot    = "$.body"
	pathRoot    = "$.path"
	headersRoot = "$.headers"
	queryRoot   = "$.query"
)

var (
	identifier   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	arrayIndexes = regexp.MustCompile(`\[\d+\]`)
)

func childPath(parent, key string) string {
	if identifier.MatchString(key) {
		return parent + "." + key
	}
	return parent + "[\"" + key + "\"]"
}

func indexPath(parent string, index int) string {
	return parent + "[" + strconv.Itoa(index) + "]"
}

func wildcardPath(path string) string {
	return arrayIndexes.ReplaceAllString(path, "[*]")
}

func headerPath(name string) string {
	return headersRoot + "." + name
}
