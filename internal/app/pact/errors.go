package pact

import (
	"github.com/pkg/errors"
)

var (
	// ErrSchemaValidation marks a contract that must never be sent to a broker.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrNetworkUnavailable marks a transport level failure talking to a broker or provider.
	ErrNetworkUnavailable = errors.New("network unavailable")
)

func schemaErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSchemaValidation, format, args...)
}

// NetworkError keeps the transport failure while still matching ErrNetworkUnavailable.
type NetworkError struct {
	Op  string
	Err error
}

func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + ErrNetworkUnavailable.Error() + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkUnavailable
}
