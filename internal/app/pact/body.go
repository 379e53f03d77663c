package pact

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	MediaTypeJSON = "application/json"
	MediaTypeText = "text/plain"
)

var supportedMediaTypes = map[string]func([]byte) (interface{}, error){
	MediaTypeJSON: parseJSONBody,
	MediaTypeText: parsePlainTextBody,
}

// DecodeBody parses an actual request or response body into a document comparable with a contract body.
func DecodeBody(data []byte, header http.Header) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}

	mediaType, err := ParseMediaTypeHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Content-Type header")
	}

	if isJSONMediaType(mediaType) {
		mediaType = MediaTypeJSON
	}
	parse, ok := supportedMediaTypes[mediaType]
	if !ok {
		parse = parsePlainTextBody
	}
	return parse(data)
}

// ParseMediaTypeHeader returns the media type of the Content-Type header, text/plain when absent.
func ParseMediaTypeHeader(header http.Header) (string, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		log.Debug("no Content-Type header - defaulting to text/plain")
		return MediaTypeText, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == MediaTypeJSON || strings.HasSuffix(mediaType, "+json")
}

func parseJSONBody(data []byte) (interface{}, error) {
	var body interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errors.Wrap(err, "unable to parse JSON body")
	}
	return body, nil
}

func parsePlainTextBody(data []byte) (interface{}, error) {
	return string(data), nil
}

// EncodeBody serialises a contract body for sending, strings other than JSON are sent verbatim.
func EncodeBody(body interface{}, headers map[string]string) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if text, ok := body.(string); ok && !isJSONMediaType(headerMediaType(headers)) {
		return []byte(text), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode body")
	}
	return data, nil
}

func headerMediaType(headers map[string]string) string {
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") {
			mediaType, _, err := mime.ParseMediaType(value)
			if err != nil {
				return ""
			}
			return mediaType
		}
	}
	return ""
}
