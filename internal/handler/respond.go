package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"storefront/internal/obs"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/service/auth"
)

// errorResponse is the client-facing error payload: a stable machine
// readable kind plus a human message.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger.Error("failed to encode response", "error", err.Error())
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *service.InsufficientStockError

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Kind: "invalid_credentials", Message: "invalid authentication credentials"})
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Kind: "insufficient_stock", Message: stockErr.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, repository.ErrDuplicate):
		respondJSON(w, http.StatusBadRequest, errorResponse{Kind: "validation_error", Message: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Kind: "not_found", Message: err.Error()})
	case errors.Is(err, repository.ErrConflict):
		respondJSON(w, http.StatusConflict, errorResponse{Kind: "conflict", Message: "operation conflicted with a concurrent request, retry"})
	default:
		obs.Logger.Error("internal error",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
		respondJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal_error", Message: "internal server error"})
	}
}

// parseID rejects non-numeric ids; non-positive values flow through and
// surface as not-found like any other absent entity.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, service.ErrInvalidInput)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", service.ErrInvalidInput)
	}
	return nil
}
