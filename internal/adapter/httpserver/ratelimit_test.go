package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serveLimited(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, remoteAddr string, adminID *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if adminID != nil {
		c.Set(contextAdminID, *adminID)
	}
	require.NoError(t, handler(c))
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(10, 3, byIP)(okHandler) // 10 req/s, burst 3

	for range 3 {
		rec := serveLimited(t, e, handler, testRemoteAddr, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(0.2, 1, byIP)(okHandler)

	rec := serveLimited(t, e, handler, testRemoteAddr, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveLimited(t, e, handler, testRemoteAddr, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
	assert.Equal(t, "rate_limited", resp["type"])
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(0.01, 1, byIP)(okHandler)

	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, testRemoteAddr, nil).Code)
	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, "5.6.7.8:5678", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, e, handler, testRemoteAddr, nil).Code)
}

func TestRateLimiterByAdmin(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(0.01, 1, byAdmin)(okHandler)

	alice := uuid.New()
	bob := uuid.New()

	// Same IP, different admins: separate buckets.
	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, testRemoteAddr, &alice).Code)
	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, testRemoteAddr, &bob).Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, e, handler, "5.6.7.8:5678", &alice).Code)

	// Without an admin the IP bucket is used.
	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, testRemoteAddr, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, e, handler, testRemoteAddr, nil).Code)
}

func TestRateKeys(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = testRemoteAddr
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "ip:1.2.3.4", byIP(c))
	assert.Equal(t, "ip:1.2.3.4", byAdmin(c))

	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	c.Set(contextAdminID, id)
	assert.Equal(t, "admin:7c9e6679-7425-40de-944b-e07fc1f90ae7", byAdmin(c))
}
