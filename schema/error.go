package schema

import (
	"fmt"

	"go.jacobcolvin.com/ucl"
)

// Code classifies a validation failure.
type Code int

const (
	// CodeOK means no failure.
	CodeOK Code = iota
	// CodeTypeMismatch means the candidate's type differs from the
	// required one.
	CodeTypeMismatch
	// CodeInvalidSchema means the schema document itself is malformed.
	CodeInvalidSchema
	// CodeMissingProperty means a required key is absent.
	CodeMissingProperty
	// CodeConstraint means a size, range, uniqueness, or pattern
	// constraint failed.
	CodeConstraint
	// CodeMissingDependency is reserved for dependency constraints.
	CodeMissingDependency
	// CodeUnknown covers failures with no specific classification.
	CodeUnknown
)

// String returns a stable name for the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeTypeMismatch:
		return "type-mismatch"
	case CodeInvalidSchema:
		return "invalid-schema"
	case CodeMissingProperty:
		return "missing-property"
	case CodeConstraint:
		return "constraint"
	case CodeMissingDependency:
		return "missing-dependency"
	}

	return "unknown"
}

// maxMsgLen bounds the human-readable message.
const maxMsgLen = 128

// Error describes the first validation failure: its classification, a
// short message, and the offending value.
type Error struct {
	Code  Code
	Msg   string
	Value *ucl.Value
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Msg
}

func newError(code Code, v *ucl.Value, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > maxMsgLen {
		msg = msg[:maxMsgLen]
	}

	return &Error{Code: code, Msg: msg, Value: v}
}
