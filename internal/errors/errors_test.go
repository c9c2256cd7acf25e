package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/estate-sync/internal/types"
)

func TestTransactionFailedReasonPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		cause  error
		want   string
	}{
		{
			name:   "provider reason wins",
			reason: "Not enough tokens available",
			cause:  fmt.Errorf("execution reverted"),
			want:   "Not enough tokens available",
		},
		{
			name:  "cause message when no reason",
			cause: fmt.Errorf("nonce too low"),
			want:  "nonce too low",
		},
		{
			name: "generic fallback",
			want: "transaction failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTransactionFailedError(tt.reason, tt.cause)
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.Code != types.CodeTransactionFailed {
				t.Errorf("Code = %s, want %s", err.Code, types.CodeTransactionFailed)
			}
		})
	}
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no provider", NewNoProviderError(), http.StatusServiceUnavailable},
		{"unauthenticated", NewUnauthenticatedError("listHoldings"), http.StatusUnauthorized},
		{"user denied", NewUserDeniedError(nil), http.StatusForbidden},
		{"not found", NewNotFoundError("property", 7), http.StatusNotFound},
		{"remote unavailable", NewRemoteUnavailableError("getAllSellOrders", nil), http.StatusBadGateway},
		{"transaction failed", NewTransactionFailedError("reverted", nil), http.StatusUnprocessableEntity},
		{"invalid parameter", NewInvalidParameterError("amount", "must be positive"), http.StatusBadRequest},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewRemoteUnavailableError("getAllPropertiesCount", fmt.Errorf("timeout"))) {
		t.Error("ledger read failures are retryable")
	}
	if IsRetryable(NewTransactionFailedError("reverted", nil)) {
		t.Error("transaction failures must never be retried automatically")
	}
	if IsRetryable(NewUserDeniedError(nil)) {
		t.Error("a user denial is final")
	}
}

func TestIsSoft(t *testing.T) {
	if !IsSoft(NewRemoteUnavailableError("getPropertyDetails", nil)) {
		t.Error("remote read failures are soft")
	}
	if IsSoft(NewNotFoundError("order", 1)) {
		t.Error("not-found is not soft")
	}
}

func TestCategorizePassthrough(t *testing.T) {
	original := NewNotFoundError("property", 3)
	if got := Categorize(original); got != original {
		t.Error("categorizing a categorized error must be identity")
	}
}

func TestCategorizeServiceError(t *testing.T) {
	svcErr := &types.ServiceError{Code: types.CodeUnauthenticated, Message: "no session"}
	got := Categorize(svcErr)
	if got.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, http.StatusUnauthorized)
	}
	if got.Category != CategorySession {
		t.Errorf("Category = %s, want %s", got.Category, CategorySession)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewRemoteUnavailableError("getMyTokens", cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap must return the cause")
	}
}
