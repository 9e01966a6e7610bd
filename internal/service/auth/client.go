// Package auth resolves externally-issued identity tokens against the
// token-verification endpoint of the identity provider.
package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

// ErrInvalidCredentials is returned for missing, malformed, or expired
// tokens.
var ErrInvalidCredentials = errors.New("invalid authentication credentials")

type Config struct {
	APIURL    string
	ProjectID string
	APIKey    string
}

type cachedIdentity struct {
	identity Identity
	expiry   time.Time
}

type Client struct {
	client *http.Client
	config Config

	cacheMu   sync.RWMutex
	cacheData map[string]cachedIdentity
}

func NewClient(cfg Config) *Client {
	return &Client{
		client: &http.Client{
			Transport: &AuthTransport{
				ProjectID: cfg.ProjectID,
				APIKey:    cfg.APIKey,
				Base:      http.DefaultTransport,
			},
			Timeout: 10 * time.Second,
		},
		config:    cfg,
		cacheData: make(map[string]cachedIdentity),
	}
}

// AuthTransport adds Basic Auth headers
type AuthTransport struct {
	ProjectID string
	APIKey    string
	Base      http.RoundTripper
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	auth := t.ProjectID + ":" + t.APIKey
	encodedAuth := base64.StdEncoding.EncodeToString([]byte(auth))
	req.Header.Set("Authorization", "Basic "+encodedAuth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	return t.Base.RoundTrip(req)
}

// Verify resolves an identity token to a stable external identity. Verified
// tokens are cached until their reported expiry (capped at 5 minutes) so
// repeated requests on the same session do not hit the provider.
func (c *Client) Verify(ctx context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrInvalidCredentials
	}

	c.cacheMu.RLock()
	data, ok := c.cacheData[idToken]
	if ok && time.Now().Before(data.expiry) {
		c.cacheMu.RUnlock()
		return data.identity, nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Double check logic
	data, ok = c.cacheData[idToken]
	if ok && time.Now().Before(data.expiry) {
		return data.identity, nil
	}

	result, err := c.verifyToken(ctx, idToken)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{UID: result.UID, Email: result.Email}

	ttl := 5 * time.Minute
	if result.ExpiresIn > 0 && time.Duration(result.ExpiresIn)*time.Second < ttl {
		ttl = time.Duration(result.ExpiresIn) * time.Second
	}
	c.cacheData[idToken] = cachedIdentity{
		identity: identity,
		expiry:   time.Now().Add(ttl),
	}

	return identity, nil
}

func (c *Client) verifyToken(ctx context.Context, idToken string) (*verifyResponse, error) {
	url := fmt.Sprintf("%s/tokens:verify", c.config.APIURL)

	body, err := json.Marshal(verifyRequest{IDToken: idToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && len(apiErr.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Error())
		}
		return nil, ErrInvalidCredentials
	default:
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(payload))
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.UID == "" {
		return nil, ErrInvalidCredentials
	}

	return &result, nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}
