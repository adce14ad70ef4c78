package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wozamali/admin-console/internal/domain"
)

func postLogin(srv *Server, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	auth := &mockAuth{
		loginFn: func(_ context.Context, email, password string) (*domain.AuthSession, error) {
			assert.Equal(t, "ops@wozamali.co.za", email)
			assert.Equal(t, "hunter2", password)
			return testSession(), nil
		},
	}
	srv := newTestServer(t, withAuth(auth))

	rec := postLogin(srv, "application/json", `{"email":"  ops@wozamali.co.za ","password":"hunter2"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testAdminID.String(), body.AdminID)
	assert.Equal(t, domain.RoleAdmin, body.Role)
	assert.True(t, testExpiresAt.Equal(body.ExpiresAt))
	assert.NotContains(t, rec.Body.String(), "access")
	assert.NotContains(t, rec.Body.String(), "refresh")

	cookie := findCookie(rec, sessionName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// The issued cookie authenticates the next request.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	next := httptest.NewRecorder()
	srv.echo.ServeHTTP(next, req)
	assert.Equal(t, http.StatusOK, next.Code)
}

func TestLogin_FormBody(t *testing.T) {
	auth := &mockAuth{
		loginFn: func(_ context.Context, email, _ string) (*domain.AuthSession, error) {
			assert.Equal(t, "ops@wozamali.co.za", email)
			return testSession(), nil
		},
	}
	srv := newTestServer(t, withAuth(auth))

	form := url.Values{"email": {"ops@wozamali.co.za"}, "password": {"hunter2"}}
	rec := postLogin(srv, "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		loginErr error
		wantCode int
		wantType string
	}{
		{"missing password", `{"email":"ops@wozamali.co.za"}`, nil, http.StatusBadRequest, "validation"},
		{"blank email", `{"email":"  ","password":"x"}`, nil, http.StatusBadRequest, "validation"},
		{"malformed body", `{"email":`, nil, http.StatusBadRequest, "validation"},
		{"wrong password", `{"email":"a@b.c","password":"x"}`, domain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"not an admin", `{"email":"a@b.c","password":"x"}`, domain.ErrNotAdmin, http.StatusForbidden, "forbidden"},
		{"provider down", `{"email":"a@b.c","password":"x"}`, errors.New("dial tcp: connection refused"), http.StatusBadGateway, "external"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{
				loginFn: func(context.Context, string, string) (*domain.AuthSession, error) {
					return nil, tt.loginErr
				},
			}
			srv := newTestServer(t, withAuth(auth))

			rec := postLogin(srv, "application/json", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantType, decodeError(t, rec)["type"])
			assert.Nil(t, findCookie(rec, sessionName))
		})
	}
}

func TestLogin_InvalidCredentialsMessage(t *testing.T) {
	auth := &mockAuth{
		loginFn: func(context.Context, string, string) (*domain.AuthSession, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	srv := newTestServer(t, withAuth(auth))

	rec := postLogin(srv, "application/json", `{"email":"a@b.c","password":"x"}`)

	assert.Equal(t, "invalid email or password", decodeError(t, rec)["error"])
}

func TestRequireAuth_NoCookie(t *testing.T) {
	srv := newTestServer(t)

	t.Run("api request gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rec)["type"])
	})

	t.Run("socket request gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/console", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("page request is sent home", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("json caller gets 401 on a page route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAuth_UnknownSessionClearsCookie(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(authCookie(t, srv, "evicted-session"))
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookie := findCookie(rec, sessionName)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	auth := &mockAuth{
		sessionFn: func(context.Context, string) (*domain.AuthSession, error) {
			return nil, errors.New("redis circuit breaker open")
		},
	}
	srv := newTestServer(t, withAuth(auth))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(authCookie(t, srv, testSessionID))
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestSession_ReturnsProfileAndCSRFToken(t *testing.T) {
	srv := newTestServer(t)
	ac := signedIn(t, srv)

	rec := ac.get("/api/session")

	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ops@wozamali.co.za", body.Email)
	assert.Equal(t, ac.csrfToken, body.CSRFToken)
}

func TestLogout_JSON(t *testing.T) {
	auth := &mockAuth{}
	srv := newTestServer(t, withAuth(auth))
	ac := signedIn(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Accept", "application/json")
	rec := ac.serve(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{testSessionID}, auth.loggedOut())
	cookie := findCookie(rec, sessionName)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestLogout_PageRedirectsHome(t *testing.T) {
	auth := &mockAuth{}
	srv := newTestServer(t, withAuth(auth))
	ac := signedIn(t, srv)

	rec := ac.do(http.MethodPost, "/auth/logout", "", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{testSessionID}, auth.loggedOut())
}

func TestLogout_Failure(t *testing.T) {
	auth := &mockAuth{
		logoutFn: func(context.Context, string) error { return errors.New("redis down") },
	}
	srv := newTestServer(t, withAuth(auth))
	ac := signedIn(t, srv)

	rec := ac.do(http.MethodPost, "/auth/logout", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCSRF(t *testing.T) {
	auth := &mockAuth{}
	srv := newTestServer(t, withAuth(auth))
	ac := signedIn(t, srv)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		for _, c := range ac.cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		for _, c := range ac.cookies {
			req.AddCookie(c)
		}
		req.Header.Set("X-CSRF-Token", "forged")
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	assert.Empty(t, auth.loggedOut())
}
