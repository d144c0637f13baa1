package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carehub/internal/cache"
	"carehub/internal/common/logger"
	"carehub/internal/common/validation"
	"carehub/internal/domain/cart"
	"carehub/internal/domain/wishlist"
	"carehub/internal/realtime"
	"carehub/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	server *Server
	routes http.Handler
	mock   sqlmock.Sqlmock
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	hub    *realtime.Hub
}

func createTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimit = 0
	return cfg
}

// newTestEnv wires a server over sqlmock and miniredis. configure may set
// function handlers or override config before the routes are built.
func newTestEnv(t *testing.T, configure func(cfg *Config, deps *Deps)) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	rdb8 := redisv8.NewClient(&redisv8.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb8.Close() })

	schemas, err := validation.Default()
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	hub := realtime.NewHub(rdb, time.Minute, log)

	cfg := createTestConfig()
	deps := Deps{
		Store:     store.New(db),
		Carts:     cart.NewStore(rdb, 0),
		Wishlists: wishlist.NewStore(rdb),
		Hub:       hub,
		Cache:     cache.NewFromRedis(rdb8),
		Schemas:   schemas,
	}
	if configure != nil {
		configure(cfg, &deps)
	}

	s := New(cfg, deps, log)
	return &testEnv{server: s, routes: s.Routes(), mock: mock, mr: mr, rdb: rdb, hub: hub}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func userToken(t *testing.T, userID string) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

// do sends a request as userID; an empty userID sends no token.
func (e *testEnv) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userToken(t, userID))
	}
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) expectMember(groupID, userID string, ok bool) {
	e.mock.ExpectQuery("SELECT EXISTS").
		WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(ok))
}

func (e *testEnv) expectRole(groupID, userID, role string) {
	e.mock.ExpectQuery("SELECT role FROM care_group_members").
		WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(role))
}

var productCols = []string{"id", "name", "description", "category", "price_cents", "image_url", "active"}

func (e *testEnv) expectProduct(id, name string, priceCents int64, active bool) {
	e.mock.ExpectQuery("FROM products WHERE id = ").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(id, name, "", "supplies", priceCents, "", active))
}

// nextEvent waits briefly for one event on ch.
func nextEvent(t *testing.T, ch <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return realtime.Event{}
	}
}

func subscribe(t *testing.T, hub *realtime.Hub, groupID string) <-chan realtime.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := hub.Subscribe(ctx, groupID)
	require.NoError(t, err)
	return ch
}
