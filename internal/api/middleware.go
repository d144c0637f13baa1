package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/metrics"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated caller, or "" outside the auth middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// authenticate accepts HMAC-signed bearer tokens and puts the "sub" claim
// in the request context.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, r, errors.NewAuthenticationError("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.writeError(w, r, errors.NewAuthenticationError("invalid Authorization header format"))
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		}, s.jwtOptions...)
		if err != nil || !token.Valid {
			s.logger.Warn("invalid token", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err,
			})
			s.writeError(w, r, errors.NewAuthenticationError("invalid or expired token"))
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			s.writeError(w, r, errors.NewAuthenticationError("token has no subject"))
			return
		}

		next(w, r.WithContext(withUserID(r.Context(), sub)))
	}
}

// rateLimit rejects clients over the configured requests per window. A
// limiter failure lets the request through.
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.Cache == nil || s.config.RateLimit <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limited, err := s.Cache.IsRateLimited(r.Context(), ip, s.config.RateLimit, s.config.RateWindow)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", map[string]interface{}{"error": err})
		}
		if limited {
			metrics.RateLimitedRequests.Inc()
			s.logger.Warn("rate limit exceeded", map[string]interface{}{"ip": ip})
			w.Header().Set("Retry-After", strconv.Itoa(int(s.config.RateWindow.Seconds())))
			s.writeError(w, r, errors.NewRateLimitedError())
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps the event stream working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// telemetry records request count and latency labelled with the route
// pattern rather than the raw path.
func telemetry(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next(rw, r)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			route,
			strconv.Itoa(rw.statusCode),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			route,
		).Observe(time.Since(start).Seconds())
	}
}
