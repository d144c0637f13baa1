// cmd/api-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carehub/internal/api"
	"carehub/internal/appshell"
	"carehub/internal/bootstrap"
	"carehub/internal/common/camunda"
	"carehub/internal/common/config"
	"carehub/internal/common/logger"
	"carehub/internal/common/validation"
	"carehub/internal/domain/cart"
	"carehub/internal/domain/wishlist"
	"carehub/internal/realtime"
	"carehub/internal/store"
	gi "carehub/internal/workers/ai/generate-image"
	gt "carehub/internal/workers/ai/generate-text"
	ga "carehub/internal/workers/care/geocode-address"
	mc "carehub/internal/workers/care/match-caregivers"
	sf "carehub/internal/workers/care/search-facilities"
	cc "carehub/internal/workers/claims/check-coverage"
	sn "carehub/internal/workers/communication/send-notification"
	co "carehub/internal/workers/marketplace/create-order"
	cpi "carehub/internal/workers/marketplace/create-payment-intent"
	rws "carehub/internal/workers/wellness/record-wellness-score"

	"go.uber.org/zap"
)

func main() {
	bootLog, _ := zap.NewProduction()
	defer bootLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("Failed to load config", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLog.Info("Starting api server",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.HTTP.Port),
	)

	pg, err := bootstrap.ConnectPostgres(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := bootstrap.ConnectRedis(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := bootstrap.ConnectLimiter(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect to limiter Redis", zap.Error(err))
	}
	defer limiter.Close()

	es, err := bootstrap.ConnectElasticsearch(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
	}

	// Claims are stored even when the workflow engine is unreachable, so the
	// API starts without it.
	var zeebe *camunda.Client
	if cfg.Camunda.BrokerAddress != "" {
		zeebe, err = bootstrap.ConnectZeebe(cfg, zapLog)
		if err != nil {
			zapLog.Warn("Zeebe unavailable, claims will not start workflows", zap.Error(err))
			zeebe = nil
		} else {
			defer zeebe.Close()
		}
	}

	schemas, err := validation.Default()
	if err != nil {
		zapLog.Fatal("Failed to load request schemas", zap.Error(err))
	}

	db := pg.DB
	st := store.New(db)
	hub := realtime.NewHub(rdb.Client, 0, log)
	orderCfg := bootstrap.CreateOrderConfig(cfg)

	sesClient, snsClient, err := bootstrap.NotificationClients(ctx, cfg)
	if err != nil {
		zapLog.Fatal("Failed to create notification clients", zap.Error(err))
	}

	text, err := gt.NewHandler(bootstrap.GenerateTextConfig(cfg), log)
	if err != nil {
		zapLog.Fatal("Failed to create text generator", zap.Error(err))
	}

	deps := api.Deps{
		Store:     st,
		Carts:     cart.NewStore(rdb.Client, orderCfg.CartTTL),
		Wishlists: wishlist.NewStore(rdb.Client),
		Hub:       hub,
		Cache:     limiter,
		Schemas:   schemas,

		PaymentIntents: cpi.NewHandler(bootstrap.PaymentIntentConfig(cfg), db, log),
		Text:           text,
		Images:         gi.NewHandler(bootstrap.GenerateImageConfig(cfg), log),
		Geocoder:       ga.NewHandler(bootstrap.GeocodeConfig(cfg), rdb.Client, log),
		Facilities:     sf.NewHandler(bootstrap.SearchFacilitiesConfig(cfg), es.Client, log),
		Orders:         co.NewHandler(orderCfg, db, rdb.Client, log),
		Wellness:       rws.NewHandler(bootstrap.WellnessConfig(cfg), db, hub, log),
		Coverage:       cc.NewHandler(bootstrap.CheckCoverageConfig(cfg), st.Plans, rdb.Client, log),
		Matcher:        mc.NewHandler(bootstrap.MatchCaregiversConfig(cfg), db, rdb.Client, log),
		Notifications:  sn.NewHandler(bootstrap.SendNotificationConfig(cfg), db, sesClient, snsClient, hub, log),

		Ready: map[string]func(context.Context) error{
			"postgres":      pg.Ping,
			"redis":         rdb.Ping,
			"limiter":       limiter.Ping,
			"elasticsearch": es.Ping,
		},
	}
	if zeebe != nil {
		deps.Process = zeebe
		deps.Ready["zeebe"] = zeebe.HealthCheck
	}

	shell, err := appshell.NewWatcher(cfg.AppShell.Path, log)
	if err != nil {
		zapLog.Warn("App shell config not loaded", zap.String("path", cfg.AppShell.Path), zap.Error(err))
	} else {
		deps.AppShell = shell
		if cfg.AppShell.Watch {
			if err := shell.Start(ctx); err != nil {
				zapLog.Warn("App shell watch failed", zap.Error(err))
			} else {
				defer shell.Stop()
			}
		}
	}

	apiCfg := api.DefaultConfig()
	apiCfg.JWTSecret = cfg.Auth.JWT.Secret
	apiCfg.JWTIssuer = cfg.Auth.JWT.Issuer
	apiCfg.RateLimit = cfg.HTTP.RateLimit.Requests
	apiCfg.RateWindow = time.Duration(cfg.HTTP.RateLimit.Window) * time.Second
	if cfg.Camunda.ClaimProcessID != "" {
		apiCfg.ClaimProcessID = cfg.Camunda.ClaimProcessID
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           api.New(apiCfg, deps, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("API server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown error", zap.Error(err))
		os.Exit(1)
	}

	zapLog.Info("API server stopped")
}
