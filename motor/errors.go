package motor

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a record that could not be turned into a request/response pair.
	ErrDecode = errors.New("decode error")

	// ErrNormalize marks a decoded record that could not be mapped to an entry.
	ErrNormalize = errors.New("normalize error")

	// ErrTruncatedHeader is returned when a direct-capture peer closes before the blank line
	// that ends the header block. It ends the connection.
	ErrTruncatedHeader = errors.New("connection closed before end of headers")

	// ErrRecordTooLarge is returned for a record over MaxRecordSize.
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
)

// DecodeError wraps a failure in one decode stage ("json", "base64", "request", "response").
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// NormalizeError names the field that made normalization fail.
type NormalizeError struct {
	Field string
	Err   error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize %s: %v", e.Field, e.Err)
}

func (e *NormalizeError) Unwrap() []error {
	return []error{ErrNormalize, e.Err}
}

// OversizeError is a record-level error: the oversized record has been skipped and
// the framer is positioned at the next record.
type OversizeError struct {
	Limit int
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("record larger than %d bytes discarded", e.Limit)
}

func (e *OversizeError) Unwrap() error {
	return ErrRecordTooLarge
}

func decodeErr(stage string, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}

func normalizeErr(field string, err error) error {
	return &NormalizeError{Field: field, Err: err}
}
