package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed analysis submission
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindEndpointUnreachable Kind = "endpoint_unreachable"
	KindEndpointError       Kind = "endpoint_error"
	KindMalformedResponse   Kind = "malformed_response"
	KindSchemaViolation     Kind = "schema_violation"
)

// Sentinels for errors.Is
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEndpointUnreachable = errors.New("inference endpoint unreachable")
	ErrEndpointError       = errors.New("inference endpoint error")
	ErrMalformedResponse   = errors.New("malformed inference response")
	ErrSchemaViolation     = errors.New("inference response schema violation")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindEndpointUnreachable:
		return ErrEndpointUnreachable
	case KindEndpointError:
		return ErrEndpointError
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindSchemaViolation:
		return ErrSchemaViolation
	}
	return nil
}

// Error is the typed failure returned by the gateway and the normalizer.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode and Body are set for KindEndpointError
	StatusCode int
	Body       string
	// Fields lists offending JSON paths for KindSchemaViolation
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func Unreachable(err error) *Error {
	return &Error{Kind: KindEndpointUnreachable, Err: err}
}

func EndpointError(status int, body string) *Error {
	return &Error{Kind: KindEndpointError, StatusCode: status, Body: body}
}

func Malformed(msg string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: msg, Err: err}
}

func SchemaViolation(fields []string) *Error {
	return &Error{Kind: KindSchemaViolation, Fields: fields}
}
