package diagnostics

import (
	"fmt"

	"github.com/funvibe/funir/internal/source"
)

// ErrorCode is a stable identifier for a class of backend errors.
// Codes are part of the tool output contract and must not be renumbered.
type ErrorCode string

const (
	// Lowering errors.
	ErrL001 ErrorCode = "L001" // declaration kind is not lowerable
	ErrL002 ErrorCode = "L002" // handler dispatch on an unmarked declaration
	ErrL003 ErrorCode = "L003" // stripped default value reached after lowering
	ErrL004 ErrorCode = "L004" // call supplies more arguments than the callee declares

	// Module validation errors.
	ErrV001 ErrorCode = "V001" // absent argument survived lowering
	ErrV002 ErrorCode = "V002" // dangling declaration handle
	ErrV003 ErrorCode = "V003" // unbound type variable in a signature
	ErrV004 ErrorCode = "V004" // live default value survived lowering

	// Bundle errors.
	ErrB001 ErrorCode = "B001" // not a module bundle
	ErrB002 ErrorCode = "B002" // unsupported bundle version
	ErrB003 ErrorCode = "B003" // corrupt bundle payload
	ErrB004 ErrorCode = "B004" // corrupt convention descriptor

	// Configuration errors.
	ErrC001 ErrorCode = "C001" // invalid configuration
)

var messages = map[ErrorCode]string{
	ErrL001: "cannot lower declaration kind %s",
	ErrL002: "handler dispatch requested for '%s', which is not marked for it",
	ErrL003: "default value of parameter '%s' was stripped during lowering and must not be evaluated",
	ErrL004: "call to '%s' supplies %d arguments, callee declares %d",
	ErrV001: "call to '%s' has an absent argument at position %d after lowering",
	ErrV002: "%s handle %d is out of range",
	ErrV003: "unbound type variable %s in declaration '%s'",
	ErrV004: "parameter '%s' of '%s' still carries a default value after lowering",
	ErrB001: "not a funir module bundle",
	ErrB002: "unsupported bundle version %d (expected %d)",
	ErrB003: "corrupt bundle: %s",
	ErrB004: "corrupt convention descriptor: %s",
	ErrC001: "invalid configuration: %s",
}

// DiagnosticError is an error with a stable code and a source location.
type DiagnosticError struct {
	Code    ErrorCode
	Span    source.Span
	Message string
}

// NewError builds a DiagnosticError from the code's message template.
// Args must match the template's verbs.
func NewError(code ErrorCode, span source.Span, args ...interface{}) *DiagnosticError {
	template, ok := messages[code]
	if !ok {
		template = "unknown error"
	}
	return &DiagnosticError{
		Code:    code,
		Span:    span,
		Message: fmt.Sprintf(template, args...),
	}
}

func (e *DiagnosticError) Error() string {
	if e.Span.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Span, e.Code, e.Message)
}
