package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carehub/internal/common/logger"
	"carehub/internal/common/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{
			name: "wrong secret",
			header: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(-time.Minute).Unix(),
			}),
		},
		{
			name: "no subject",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.routes.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "AUTHENTICATION_ERROR", string(body.Code))
		})
	}
}

func TestAuthenticate_PutsSubjectInContext(t *testing.T) {
	s := New(createTestConfig(), Deps{}, logger.NewTestLogger(t))

	var seen string
	h := s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "user-42"))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", seen)
}

func TestAuthenticate_Issuer(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Deps) {
		cfg.JWTIssuer = "https://auth.carehub.test"
	})

	wrong := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://elsewhere.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rec := httptest.NewRecorder()
	env.routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	right := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://auth.carehub.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+right)
	rec = httptest.NewRecorder()
	env.routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Deps) {
		cfg.RateLimit = 2
		cfg.RateWindow = 30 * time.Second
	})

	before := testutil.ToFloat64(metrics.RateLimitedRequests)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/cart", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := env.do(t, http.MethodGet, "/api/cart", "user-1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitedRequests))

	// public routes are not limited
	rec = env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_LimiterDownLetsRequestsThrough(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Deps) {
		cfg.RateLimit = 1
	})
	env.mr.SetError("LOADING")

	rec := env.do(t, http.MethodPost, "/api/wellness/score", "user-1", `{"mood": 5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/wellness/score", "user-1", `{"mood": 5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTelemetry_RecordsRoutePattern(t *testing.T) {
	env := newTestEnv(t, nil)
	env.expectMember("group-1", "user-1", false)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/care-groups/{id}/tasks", "403")
	before := testutil.ToFloat64(counter)

	rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/tasks", "user-1", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRouteOf(t *testing.T) {
	assert.Equal(t, "/api/cart/items/{productId}", routeOf("PATCH /api/cart/items/{productId}"))
	assert.Equal(t, "/metrics", routeOf("/metrics"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req))
}

func TestUserID_EmptyOutsideAuth(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
	assert.Equal(t, "u", UserID(withUserID(context.Background(), "u")))
}
