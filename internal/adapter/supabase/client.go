// Package supabase talks to the Supabase Auth (GoTrue) HTTP API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/domain"
	"github.com/wozamali/admin-console/internal/platform/retry"
)

const (
	requestTimeout        = 10 * time.Second
	retryInitialBackoff   = 500 * time.Millisecond
	retryRateLimitBackoff = 5 * time.Second
)

// APIError is a non-2xx answer from the auth API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase auth: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase auth: status %d: %s", e.StatusCode, e.Message)
}

// Client implements domain.AuthProvider against /auth/v1.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	clock   clockwork.Clock
	policy  retry.Policy
}

var _ domain.AuthProvider = (*Client)(nil)

func NewClient(baseURL, anonKey string, clock clockwork.Clock) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: requestTimeout},
		clock:   clock,
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   retryInitialBackoff,
			MaxBackoff:       2 * time.Second,
			RateLimitBackoff: retryRateLimitBackoff,
		},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthTokens, error) {
	body := map[string]string{"email": email, "password": password}
	return c.grant(ctx, "password", body)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.grant(ctx, "refresh_token", body)
}

// SignOut revokes the refresh tokens behind accessToken. A token the API no
// longer recognises counts as signed out.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := retry.DoVoid(ctx, c.retryPolicy("logout"), classify, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
		return err
	})
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return fmt.Errorf("sign out failed: %w", err)
}

func (c *Client) grant(ctx context.Context, grantType string, body any) (*domain.AuthTokens, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s grant: %w", grantType, err)
	}

	raw, err := retry.Do(ctx, c.retryPolicy(grantType), classify, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grantType, "", payload)
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isCredentialRejection(apiErr.StatusCode) {
			return nil, fmt.Errorf("%s grant rejected: %w", grantType, domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s grant failed: %w", grantType, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return nil, errors.New("token response missing tokens")
	}

	return &domain.AuthTokens{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    c.expiry(tr),
	}, nil
}

func (c *Client) expiry(tr tokenResponse) time.Time {
	if tr.ExpiresAt > 0 {
		return time.Unix(tr.ExpiresAt, 0).UTC()
	}
	return c.clock.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
}

func (c *Client) do(ctx context.Context, method, path, bearer string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var er errorResponse
	if json.Unmarshal(body, &er) != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Code = firstNonEmpty(er.ErrorCode, er.Error)
	apiErr.Message = firstNonEmpty(er.ErrorDescription, er.Msg, er.Message, er.Error)
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isCredentialRejection(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden
}

func classify(err error) retry.Action {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return retry.Retry
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return retry.After
	case apiErr.StatusCode >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}

func (c *Client) retryPolicy(op string) retry.Policy {
	p := c.policy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Supabase auth call failed, retrying", "operation", op, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}
	return p
}
