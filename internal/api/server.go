// Package api is the HTTP surface: the serverless function proxies, the
// cart and wishlist state, care group collaboration, wellness and claims.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"carehub/internal/appshell"
	"carehub/internal/cache"
	"carehub/internal/common/logger"
	"carehub/internal/common/validation"
	"carehub/internal/domain/cart"
	"carehub/internal/domain/wishlist"
	"carehub/internal/realtime"
	"carehub/internal/store"
	gi "carehub/internal/workers/ai/generate-image"
	gt "carehub/internal/workers/ai/generate-text"
	ga "carehub/internal/workers/care/geocode-address"
	sf "carehub/internal/workers/care/search-facilities"
	cc "carehub/internal/workers/claims/check-coverage"
	co "carehub/internal/workers/marketplace/create-order"
	cpi "carehub/internal/workers/marketplace/create-payment-intent"
	rws "carehub/internal/workers/wellness/record-wellness-score"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	JWTSecret string
	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string

	RateLimit  int
	RateWindow time.Duration

	ClaimProcessID string
	SearchCacheTTL time.Duration
	SSEKeepAlive   time.Duration
	MaxBodyBytes   int64
	ReadyTimeout   time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		RateLimit:      120,
		RateWindow:     time.Minute,
		ClaimProcessID: "insurance-claim",
		SearchCacheTTL: time.Minute,
		SSEKeepAlive:   realtime.DefaultKeepAlive,
		MaxBodyBytes:   1 << 20,
		ReadyTimeout:   2 * time.Second,
	}
}

type PaymentIntentCreator interface {
	Execute(ctx context.Context, input *cpi.Input) (*cpi.Output, error)
}

type TextGenerator interface {
	Execute(ctx context.Context, input *gt.Input) (*gt.Output, error)
}

type ImageGenerator interface {
	Execute(ctx context.Context, input *gi.Input) (*gi.Output, error)
}

type Geocoder interface {
	Execute(ctx context.Context, input *ga.Input) (*ga.Output, error)
}

type FacilitySearcher interface {
	Execute(ctx context.Context, input *sf.Input) (*sf.Output, error)
}

type OrderCreator interface {
	Execute(ctx context.Context, input *co.Input) (*co.Output, error)
}

type WellnessRecorder interface {
	Execute(ctx context.Context, input *rws.Input) (*rws.Output, error)
}

type CoverageChecker interface {
	Execute(ctx context.Context, input *cc.Input) (*cc.Output, error)
}

// ProcessStarter starts workflow instances. camunda.Client satisfies it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, vars interface{}) (int64, error)
}

type AppShellSource interface {
	Current() *appshell.Config
}

// Deps are the collaborators behind the routes. Nil function handlers leave
// their route unregistered.
type Deps struct {
	Store     *store.Store
	Carts     *cart.Store
	Wishlists *wishlist.Store
	Hub       *realtime.Hub
	Cache     *cache.Client
	Schemas   *validation.Registry
	Process   ProcessStarter
	AppShell  AppShellSource

	PaymentIntents PaymentIntentCreator
	Text           TextGenerator
	Images         ImageGenerator
	Geocoder       Geocoder
	Facilities     FacilitySearcher
	Orders         OrderCreator
	Wellness       WellnessRecorder
	Coverage       CoverageChecker
	Matcher        CaregiverMatcher
	Notifications  NotificationSender

	// Ready maps a dependency name to its health probe.
	Ready map[string]func(context.Context) error
}

type Server struct {
	config *Config
	Deps
	jwtSecret  []byte
	jwtOptions []jwt.ParserOption
	logger     logger.Logger
}

func New(config *Config, deps Deps, log logger.Logger) *Server {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(config.JWTIssuer))
	}
	return &Server{
		config:     config,
		Deps:       deps,
		jwtSecret:  []byte(config.JWTSecret),
		jwtOptions: opts,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Routes builds the mux. Every route is instrumented; everything except
// health, readiness, metrics and the app shell config needs a bearer token.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	public := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry(routeOf(pattern), h))
	}
	private := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry(routeOf(pattern), s.rateLimit(s.authenticate(h))))
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	public("GET /health", s.health)
	public("GET /ready", s.ready)
	public("GET /api/app-config", s.appConfig)

	if s.PaymentIntents != nil {
		private("POST /functions/create-payment-intent", s.createPaymentIntent)
	}
	if s.Text != nil {
		private("POST /functions/generate-text", s.generateText)
	}
	if s.Images != nil {
		private("POST /functions/generate-image", s.generateImage)
	}
	if s.Geocoder != nil {
		private("POST /functions/geocode", s.geocode)
	}
	if s.Facilities != nil {
		private("POST /functions/search-facilities", s.searchFacilities)
	}

	private("GET /api/cart", s.getCart)
	private("POST /api/cart", s.replaceCart)
	private("DELETE /api/cart", s.clearCart)
	private("POST /api/cart/items", s.addCartItem)
	private("PATCH /api/cart/items/{productId}", s.updateCartItem)
	private("DELETE /api/cart/items/{productId}", s.removeCartItem)
	if s.Orders != nil {
		private("POST /api/orders", s.createOrder)
	}

	private("GET /api/wishlist", s.getWishlist)
	private("POST /api/wishlist/{productId}/toggle", s.toggleWishlist)
	private("DELETE /api/wishlist/{productId}", s.removeWishlist)

	private("GET /api/care-groups", s.listCareGroups)
	private("POST /api/care-groups", s.createCareGroup)
	private("POST /api/care-groups/{id}/members", s.addMember)
	private("GET /api/care-groups/{id}/overview", s.overview)
	private("GET /api/care-groups/{id}/tasks", s.listTasks)
	private("POST /api/care-groups/{id}/tasks", s.createTask)
	private("POST /api/care-groups/{id}/tasks/{taskId}/complete", s.completeTask)
	private("GET /api/care-groups/{id}/messages", s.listMessages)
	private("POST /api/care-groups/{id}/messages", s.postMessage)
	private("POST /api/care-groups/{id}/presence", s.heartbeat)
	private("DELETE /api/care-groups/{id}/presence", s.leave)
	private("GET /api/care-groups/{id}/events", s.events)
	if s.Matcher != nil {
		private("POST /api/care-groups/{id}/caregiver-matches", s.matchCaregivers)
	}

	if s.Wellness != nil {
		private("POST /api/wellness", s.recordWellness)
	}
	private("POST /api/wellness/score", s.scoreWellness)

	if s.Coverage != nil {
		private("GET /api/coverage/{memberId}", s.getCoverage)
	}
	private("POST /api/claims", s.submitClaim)
	private("GET /api/claims/{id}", s.getClaim)

	return mux
}

// routeOf strips the method from a mux pattern for metric labels.
func routeOf(pattern string) string {
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		return pattern[i+1:]
	}
	return pattern
}
