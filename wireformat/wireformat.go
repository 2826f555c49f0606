// Package wireformat defines the JSON wire format between the host and wasm
// guests. These types are the ABI contract and must remain backward
// compatible.
package wireformat

import (
	"encoding/json"
)

// Op names one of the object operations the host module exports.
type Op string

const (
	OpGet  Op = "object_get"
	OpSet  Op = "object_set"
	OpCall Op = "object_call"
	OpKeys Op = "object_keys"
)

// Ops lists the object operations in export order.
var Ops = []Op{OpGet, OpSet, OpCall, OpKeys}

// LogMessage is the export receiving guest log records (see log.LogMessageWire).
const LogMessage = "log_message"

// ObjectRequest is the JSON payload of every object operation.
// object_keys with an empty Object lists the object names.
type ObjectRequest struct {
	Object string `json:"object"`
	Name   string `json:"name,omitempty"`
	Args   []any  `json:"args,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// ObjectResponse is the JSON reply of a successful object operation.
type ObjectResponse struct {
	Value any `json:"value"`
}

// FunctionKey is the key of a FunctionRef.
const FunctionKey = "$function"

// FunctionRef is how a callable member travels: guests pass the name back to
// object_call.
type FunctionRef struct {
	Function string `json:"$function"`
}

// ErrorResponse represents a structured error that can be returned as JSON to guests.
// Guests receive consistent, parseable errors instead of WASM traps.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "INTERNAL_ERROR").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// Error type identifiers.
const (
	ErrorValidation = "VALIDATION_ERROR"
	ErrorNotFound   = "NOT_FOUND"
	ErrorDenied     = "PERMISSION_DENIED"
	ErrorInternal   = "INTERNAL_ERROR"
)

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorValidation,
		Message: message,
		Code:    400,
	}
}

// NewNotFoundError creates an error response for unknown objects.
func NewNotFoundError(object string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorNotFound,
		Message: "unknown host object: " + object,
		Code:    404,
	}
}

// NewDeniedError creates an error response for properties the guest may not
// reach.
func NewDeniedError(property string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorDenied,
		Message: "access denied: " + property,
		Code:    403,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorInternal,
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	switch v := panicValue.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = "panic recovered"
	}
	return NewInternalError("panic: " + msg)
}
