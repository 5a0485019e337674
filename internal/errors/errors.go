// Package errors defines the error taxonomy shared by the mixing engine,
// the store, and the transports.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so callers can react without string matching.
type Kind uint8

// Supported error kinds.
const (
	KindOther Kind = iota
	KindValidation
	KindType
	KindInvalidPattern
	KindTransformFailure
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindType:
		return "type"
	case KindInvalidPattern:
		return "invalid_pattern"
	case KindTransformFailure:
		return "transform_failure"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status is the HTTP status a transport should answer with for this kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindType, KindInvalidPattern, KindTransformFailure:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type used across the module.
type Error struct {
	Kind    Kind
	Err     error // The error this wraps
	Details []Detail
}

// Detail names one piece of context, e.g. the rule or field involved.
type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s, details: %v", e.Kind, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(transport{
		Kind:    e.Kind.String(),
		Message: msg,
		Details: e.Details,
	})
}

// E builds an *Error from any mix of a message, a wrapped error, a Kind and details.
func E(args ...any) *Error {
	ret := &Error{
		Kind: KindOther,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case Kind:
			ret.Kind = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	if ret.Err == nil {
		ret.Err = errors.New(ret.Kind.String())
	}

	return ret
}

// KindOf reports the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
