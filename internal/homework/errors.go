package homework

import (
	"errors"
	"fmt"
)

var (
	ErrWrongType       = errors.New("wrong type")
	ErrWrongKey        = errors.New("wrong key")
	ErrWrongStatusCode = errors.New("wrong status code")
	ErrAPI             = errors.New("api request failed")
	ErrUnknownStatus   = errors.New("unknown homework status")
)

// WrongTypeError reports a value whose runtime shape does not match the contract.
type WrongTypeError struct {
	Got  string
	Want string
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("got %s, want %s", e.Got, e.Want)
}

func (e *WrongTypeError) Is(target error) bool { return target == ErrWrongType }

// WrongKeyError reports a required key missing from a mapping.
// Value is the offending mapping. It is kept for logs and stays out of
// Error, so the message is the same however the payload around the key varies.
type WrongKeyError struct {
	Key   string
	Value any
}

func (e *WrongKeyError) Error() string {
	return fmt.Sprintf("key %q not found", e.Key)
}

func (e *WrongKeyError) Is(target error) bool { return target == ErrWrongKey }

// UnknownStatusError is a failed catalog lookup. It matches both
// ErrUnknownStatus and ErrWrongKey.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown homework status %q", e.Status)
}

func (e *UnknownStatusError) Is(target error) bool {
	return target == ErrUnknownStatus || target == ErrWrongKey
}

// StatusCodeError is returned when the API answers with anything but 200.
type StatusCodeError struct {
	Code int
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("endpoint unavailable: http status %d", e.Code)
}

func (e *StatusCodeError) Is(target error) bool { return target == ErrWrongStatusCode }

// APIError is a transport-level failure before a usable response was obtained.
type APIError struct {
	Err error
}

func (e *APIError) Error() string { return ErrAPI.Error() }

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// typeName describes v the way the payload contract talks about shapes.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
