// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carehub/internal/bootstrap"
	"carehub/internal/common/camunda"
	"carehub/internal/common/config"
	"carehub/internal/common/logger"
	"carehub/internal/common/observability"
	"carehub/internal/common/validation"
	"carehub/internal/realtime"
	"carehub/internal/store"
	gi "carehub/internal/workers/ai/generate-image"
	gt "carehub/internal/workers/ai/generate-text"
	ga "carehub/internal/workers/care/geocode-address"
	mc "carehub/internal/workers/care/match-caregivers"
	sf "carehub/internal/workers/care/search-facilities"
	ac "carehub/internal/workers/claims/adjudicate-claim"
	cc "carehub/internal/workers/claims/check-coverage"
	rcd "carehub/internal/workers/claims/record-claim-decision"
	vc "carehub/internal/workers/claims/validate-claim"
	sn "carehub/internal/workers/communication/send-notification"
	co "carehub/internal/workers/marketplace/create-order"
	cpi "carehub/internal/workers/marketplace/create-payment-intent"
	rws "carehub/internal/workers/wellness/record-wellness-score"
	"carehub/pkg/registry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	var obsOpts []observability.Option
	if cfg.Tracing.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Tracing.JaegerEndpoint))
	}
	if cfg.Tracing.SampleRatio > 0 {
		obsOpts = append(obsOpts, observability.WithSampleRatio(cfg.Tracing.SampleRatio))
	}
	obs := observability.New("worker-manager", obsOpts...)
	defer obs.Shutdown()

	ctx := context.Background()

	zeebe, err := bootstrap.ConnectZeebe(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	pg, err := bootstrap.ConnectPostgres(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	es, err := bootstrap.ConnectElasticsearch(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	rdb, err := bootstrap.ConnectRedis(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	if len(cfg.Camunda.DeployResources) > 0 {
		key, err := zeebe.DeployResources(ctx, cfg.Camunda.DeployResources...)
		if err != nil {
			zapLog.Fatal("process deployment failed", zap.Error(err), zap.Strings("resources", cfg.Camunda.DeployResources))
		}
		zapLog.Info("Processes deployed", zap.Int64("deploymentKey", key), zap.Strings("resources", cfg.Camunda.DeployResources))
	}

	sesClient, snsClient, err := bootstrap.NotificationClients(ctx, cfg)
	if err != nil {
		zapLog.Fatal("notification clients failed", zap.Error(err))
	}

	schemas, err := validation.Default()
	if err != nil {
		zapLog.Fatal("schema registry failed", zap.Error(err))
	}

	db := pg.DB
	hub := realtime.NewHub(rdb.Client, 0, log)
	st := store.New(db)

	handlers := map[string]camunda.HandlerFunc{
		vc.TaskType:  vc.NewHandler(bootstrap.ValidateClaimConfig(cfg), schemas, st.Claims, log).Handle,
		cc.TaskType:  cc.NewHandler(bootstrap.CheckCoverageConfig(cfg), st.Plans, rdb.Client, log).Handle,
		ac.TaskType:  ac.NewHandler(bootstrap.AdjudicateClaimConfig(cfg), log).Handle,
		rcd.TaskType: rcd.NewHandler(bootstrap.RecordClaimDecisionConfig(cfg), db, log).Handle,
		sn.TaskType:  sn.NewHandler(bootstrap.SendNotificationConfig(cfg), db, sesClient, snsClient, hub, log).Handle,
		mc.TaskType:  mc.NewHandler(bootstrap.MatchCaregiversConfig(cfg), db, rdb.Client, log).Handle,
		ga.TaskType:  ga.NewHandler(bootstrap.GeocodeConfig(cfg), rdb.Client, log).Handle,
		sf.TaskType:  sf.NewHandler(bootstrap.SearchFacilitiesConfig(cfg), es.Client, log).Handle,
		co.TaskType:  co.NewHandler(bootstrap.CreateOrderConfig(cfg), db, rdb.Client, log).Handle,
		cpi.TaskType: cpi.NewHandler(bootstrap.PaymentIntentConfig(cfg), db, log).Handle,
		gi.TaskType:  gi.NewHandler(bootstrap.GenerateImageConfig(cfg), log).Handle,
		rws.TaskType: rws.NewHandler(bootstrap.WellnessConfig(cfg), db, hub, log).Handle,
	}
	if config.IsWorkerEnabled(cfg, gt.TaskType) {
		text, err := gt.NewHandler(bootstrap.GenerateTextConfig(cfg), log)
		if err != nil {
			zapLog.Fatal("generate-text handler failed", zap.Error(err))
		}
		handlers[gt.TaskType] = text.Handle
	}

	checkRegistry(cfg, handlers, zapLog)

	var workers []*camunda.CamundaWorker
	for taskType, handler := range handlers {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, wcfg, handler, obs, zapLog))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	health := newHealthServer(cfg.HTTP.HealthPort, map[string]func(context.Context) error{
		"zeebe":         zeebe.HealthCheck,
		"postgres":      pg.Ping,
		"redis":         rdb.Ping,
		"elasticsearch": es.Ping,
	})
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", health.Addr))
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := health.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// checkRegistry warns about enabled workers the activity registry does not
// describe. A missing registry is not fatal.
func checkRegistry(cfg *config.Config, handlers map[string]camunda.HandlerFunc, log *zap.Logger) {
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", cfg.Registry.Path), zap.Error(err))
		return
	}
	for taskType := range handlers {
		if !config.IsWorkerEnabled(cfg, taskType) {
			continue
		}
		if _, ok := reg.FindByTaskType(taskType); !ok {
			log.Warn("enabled worker missing from activity registry", zap.String("taskType", taskType))
		}
	}
}

func newHealthServer(port int, probes map[string]func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
