package httpresponse

import (
	"fmt"

	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	log "github.com/sirupsen/logrus"
)

// APIError is the JSON body of every error answered by the mock provider and the sync-service.
type APIError struct {
	Message    string          `json:"message"`
	Mismatches []pact.Mismatch `json:"mismatches,omitempty"`
}

func Error(message string) *APIError {
	log.Error(message)
	return &APIError{
		Message: message,
	}
}

func Errorf(format string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(format, a...))
}

// Mismatch logs every mismatch and returns them with the message.
func Mismatch(message string, mismatches []pact.Mismatch) *APIError {
	for _, m := range mismatches {
		log.WithField("mismatch", m.String()).Warn(message)
	}
	return &APIError{
		Message:    message,
		Mismatches: mismatches,
	}
}
