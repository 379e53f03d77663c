package main

import (
	"github.com/form3tech-oss/sync-pact/internal/app/cli"
)

func main() {
	cli.Run()
}
