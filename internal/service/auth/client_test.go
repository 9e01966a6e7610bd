package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify_Success(t *testing.T) {
	// 1. Setup Mock Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Basic Auth check
		auth := r.Header.Get("Authorization")
		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("project_id:api_key"))
		if auth != expectedAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken != "good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorResponse{Errors: []APIError{{ID: "auth/invalid-token", Message: "token rejected"}}})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verifyResponse{UID: "uid-123", Email: "u@example.com", ExpiresIn: 3600})
	}))
	defer ts.Close()

	// 2. Setup Client
	client := NewClient(Config{
		APIURL:    ts.URL,
		ProjectID: "project_id",
		APIKey:    "api_key",
	})

	// 3. Execute
	identity, err := client.Verify(context.Background(), "good-token")

	// 4. Verify
	assert.NoError(t, err)
	assert.Equal(t, "uid-123", identity.UID)
	assert.Equal(t, "u@example.com", identity.Email)
}

func TestVerify_InvalidToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ErrorResponse{Errors: []APIError{{ID: "auth/expired", Message: "token expired"}}})
	}))
	defer ts.Close()

	client := NewClient(Config{APIURL: ts.URL})

	_, err := client.Verify(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_EmptyToken(t *testing.T) {
	client := NewClient(Config{APIURL: "http://unused"})

	_, err := client.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_Cache(t *testing.T) {
	requestCount := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		json.NewEncoder(w).Encode(verifyResponse{UID: "uid-123", ExpiresIn: 3600})
	}))
	defer ts.Close()

	client := NewClient(Config{APIURL: ts.URL})

	// First call - should hit the provider
	_, err := client.Verify(context.Background(), "tok")
	assert.NoError(t, err)
	assert.Equal(t, 1, requestCount)

	// Second call - should hit cache
	_, err = client.Verify(context.Background(), "tok")
	assert.NoError(t, err)
	assert.Equal(t, 1, requestCount, "Should not increment request count due to caching")

	// A different token is not served from cache
	_, err = client.Verify(context.Background(), "tok2")
	assert.NoError(t, err)
	assert.Equal(t, 2, requestCount)
}

func TestVerify_ProviderFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(Config{APIURL: ts.URL})

	_, err := client.Verify(context.Background(), "tok")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials, "provider outages must not look like bad credentials")
}
