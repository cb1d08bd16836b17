package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeStorage, http.StatusBadGateway},
		{ErrorTypeDatabaseError, http.StatusInternalServerError},
		{ErrorTypeForbidden, http.StatusForbidden},
		{ErrorTypeCache, http.StatusInternalServerError},
		{ErrorType("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			if got := ErrorTypeToHTTPStatus(tt.errorType); got != tt.want {
				t.Errorf("ErrorTypeToHTTPStatus(%s) = %d, want %d", tt.errorType, got, tt.want)
			}
		})
	}
}

func TestAsError_KeepsWrappedType(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	inner := NewError(ctx, LayerRepository, ErrorTypeNotFound, "album not found", nil, "code-1")

	wrapped := AsError(ctx, LayerDomain, fmt.Errorf("lookup: %w", inner), "download album")

	if wrapped.Type != ErrorTypeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", wrapped.Type)
	}
	if wrapped.UUID != "code-1" {
		t.Fatalf("expected code to be kept, got %s", wrapped.UUID)
	}
	if wrapped.RequestID != "req-1" {
		t.Fatalf("expected request id req-1, got %q", wrapped.RequestID)
	}
	if !IsErrorType(wrapped, ErrorTypeNotFound) {
		t.Fatal("IsErrorType should see through the wrapper")
	}
}

func TestAsError_PlainErrorIsInternal(t *testing.T) {
	err := AsError(context.Background(), LayerDomain, errors.New("boom"), "failed")
	if err.Type != ErrorTypeInternal {
		t.Fatalf("expected INTERNAL, got %s", err.Type)
	}
	if AsError(context.Background(), LayerDomain, nil, "noop") != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestNewError_GeneratesCodeWhenMissing(t *testing.T) {
	first := NewError(context.Background(), LayerRoute, ErrorTypeValidation, "bad input", nil, "")
	second := NewError(context.Background(), LayerRoute, ErrorTypeValidation, "bad input", nil, "")

	if first.UUID == "" || first.UUID == second.UUID {
		t.Fatalf("expected distinct generated codes, got %q and %q", first.UUID, second.UUID)
	}
}
