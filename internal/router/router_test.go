package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-listings/internal/handler"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/utils"
)

const secret = "router-test-secret"

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

// Handlers behind the guards are never reached in these tests, so nil
// receivers are fine.
func newServer(ready handler.Pinger) *echo.Echo {
	e := echo.New()
	Register(e, Handlers{
		Auth:     &handler.AuthHandler{},
		Listings: &handler.ListingHandler{},
		Images:   &handler.ImageHandler{},
		Library:  &handler.LibraryHandler{},
		Analysis: &handler.AnalysisHandler{},
		Ready:    handler.Ready(ready),
	}, Guards{JWTSecret: secret})
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "8d4c0f1e-0000-4000-8000-000000000001", role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer(pinger{})
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"POST /v1/auth/oauth/google",
		"POST /v1/auth/otp/send",
		"POST /v1/auth/password/reset",
		"GET /v1/me",
		"GET /v1/listings",
		"GET /v1/listings/:id",
		"POST /v1/analysis",
		"POST /v1/properties/search",
		"POST /v1/my/listings",
		"POST /v1/my/listings/:id/submit",
		"POST /v1/my/listings/:id/images/batch",
		"PUT /v1/my/listings/:id/images/:imageId/primary",
		"GET /v1/my/library",
		"POST /v1/admin/listings/:id/approve",
		"POST /v1/admin/listings/:id/reject",
		"POST /v1/admin/listings/:id/sold",
		"POST /v1/admin/listings/:id/revert-sold",
		"GET /v1/admin/stats",
		"GET /v1/admin/activity",
	} {
		assert.True(t, have[want], "missing route %s", want)
	}
	_, metrics := have["GET /metrics"]
	assert.False(t, metrics, "metrics is only mounted when a handler is given")
}

func TestHealthAndReady(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(pinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	newServer(pinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGuards(t *testing.T) {
	e := newServer(pinger{})
	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"owner area needs a token", http.MethodGet, "/v1/my/listings", "", http.StatusUnauthorized},
		{"library needs a token", http.MethodGet, "/v1/my/library", "", http.StatusUnauthorized},
		{"me needs a token", http.MethodGet, "/v1/me", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/my/listings", "Bearer nope", http.StatusUnauthorized},
		{"admin area needs a token", http.MethodGet, "/v1/admin/stats", "", http.StatusUnauthorized},
		{"users cannot moderate", http.MethodPost, "/v1/admin/listings/1/approve", bearer(t, model.RoleUser), http.StatusForbidden},
		{"users cannot read activity", http.MethodGet, "/v1/admin/activity", bearer(t, model.RoleUser), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
