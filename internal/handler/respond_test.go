package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/service/auth"
)

func TestRespondError_Kinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		// a commit-time conflict must be distinguishable from running out
		// of stock: the former is retryable, the latter is final
		{"conflict", fmt.Errorf("product 1 stock decrement: %w", repository.ErrConflict), http.StatusConflict, "conflict"},
		{"insufficient stock", &service.InsufficientStockError{ProductID: 1, Requested: 3, Available: 2}, http.StatusBadRequest, "insufficient_stock"},
		{"not found", fmt.Errorf("product 1: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
		{"validation", fmt.Errorf("quantity must be >= 1: %w", service.ErrInvalidInput), http.StatusBadRequest, "validation_error"},
		{"duplicate", fmt.Errorf("email taken: %w", repository.ErrDuplicate), http.StatusBadRequest, "validation_error"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)

			respondError(w, r, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.kind, resp.Kind)
		})
	}
}

func TestRespondError_InternalHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)

	respondError(w, r, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}
