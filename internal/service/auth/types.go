package auth

import (
	"fmt"
)

// Identity is the resolved caller: a stable external uid plus optional
// email.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

type verifyRequest struct {
	IDToken string `json:"id_token"`
}

type verifyResponse struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	ExpiresIn int64  `json:"expires_in"`
}

type APIError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Errors []APIError `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("identity provider error: %v", e.Errors)
}
