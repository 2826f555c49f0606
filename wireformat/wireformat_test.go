package wireformat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_Constructors(t *testing.T) {
	tests := []struct {
		name string
		got  ErrorResponse
		want ErrorResponse
	}{
		{
			name: "validation",
			got:  NewValidationError("bad input"),
			want: ErrorResponse{Error: "VALIDATION_ERROR", Message: "bad input", Code: 400},
		},
		{
			name: "not found",
			got:  NewNotFoundError("toaster"),
			want: ErrorResponse{Error: "NOT_FOUND", Message: "unknown host object: toaster", Code: 404},
		},
		{
			name: "denied",
			got:  NewDeniedError("counter.increment"),
			want: ErrorResponse{Error: "PERMISSION_DENIED", Message: "access denied: counter.increment", Code: 403},
		},
		{
			name: "internal",
			got:  NewInternalError("broken"),
			want: ErrorResponse{Error: "INTERNAL_ERROR", Message: "broken", Code: 500},
		},
		{
			name: "panic error",
			got:  NewPanicError(errors.New("boom")),
			want: ErrorResponse{Error: "INTERNAL_ERROR", Message: "panic: boom", Code: 500},
		},
		{
			name: "panic string",
			got:  NewPanicError("boom"),
			want: ErrorResponse{Error: "INTERNAL_ERROR", Message: "panic: boom", Code: 500},
		},
		{
			name: "panic other",
			got:  NewPanicError(42),
			want: ErrorResponse{Error: "INTERNAL_ERROR", Message: "panic: panic recovered", Code: 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestErrorResponse_ToJSON(t *testing.T) {
	assert.JSONEq(t,
		`{"error":"NOT_FOUND","message":"unknown host object: x","code":404}`,
		string(NewNotFoundError("x").ToJSON()))
}

func TestObjectRequest_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(ObjectRequest{Object: "counter"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"object":"counter"}`, string(data))
}

func TestFunctionRef(t *testing.T) {
	data, err := json.Marshal(FunctionRef{Function: "increment"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"$function":"increment"}`, string(data))
}
