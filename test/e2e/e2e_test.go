//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carehub/internal/bootstrap"
	"carehub/internal/common/camunda"
	"carehub/internal/common/config"
	"carehub/internal/common/logger"
	"carehub/internal/common/observability"
	"carehub/internal/common/validation"
	"carehub/internal/domain/coverage"
	"carehub/internal/realtime"
	"carehub/internal/store"
	ac "carehub/internal/workers/claims/adjudicate-claim"
	cc "carehub/internal/workers/claims/check-coverage"
	rcd "carehub/internal/workers/claims/record-claim-decision"
	vc "carehub/internal/workers/claims/validate-claim"
	sn "carehub/internal/workers/communication/send-notification"
)

const configsDir = "../../configs"

var zapLog *zap.Logger

func TestMain(m *testing.M) {
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

type env struct {
	cfg   *config.Config
	zeebe *camunda.Client
	db    *sql.DB
	store *store.Store
}

// TestClaimLifecycle drives the insurance-claim process end to end against a
// local Zeebe, Postgres, Redis and Elasticsearch (docker-compose).
func TestClaimLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Claims.MockEligibility = false

	e := connectAll(ctx, t, cfg)
	applySchema(ctx, t, e.db)
	deployProcess(ctx, t, e.zeebe)
	startClaimWorkers(ctx, t, e)

	groupOwner := "e2e-" + uuid.NewString()
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, email) VALUES ($1, 'E2E Coordinator', 'e2e@carehub.test')`,
		groupOwner)
	require.NoError(t, err)
	group, err := e.store.CareGroups.Create(ctx, "E2E family", groupOwner)
	require.NoError(t, err)

	coveredMember := "member-" + uuid.NewString()
	seedPlan(ctx, t, e.db, coveredMember)

	t.Run("covered claim is decided", func(t *testing.T) {
		claim := submitClaim(ctx, t, e, group.ID, groupOwner, coveredMember, coverage.ServicePrimaryCare, 20000)
		decided := waitForDecision(ctx, t, e.store, claim.ID)

		require.NotNil(t, decided.Decision)
		assert.NotEqual(t, coverage.ClaimDenied, decided.Status)
		assert.Equal(t, decided.Status, decided.Decision.Status)
	})

	t.Run("member without plan is denied", func(t *testing.T) {
		claim := submitClaim(ctx, t, e, group.ID, groupOwner, "member-"+uuid.NewString(), coverage.ServiceLab, 5000)
		decided := waitForDecision(ctx, t, e.store, claim.ID)

		assert.Equal(t, coverage.ClaimDenied, decided.Status)
		require.NotNil(t, decided.Decision)
		assert.Equal(t, coverage.ReasonCoverageInactive, decided.Decision.Reason)
	})

	t.Run("invalid service code is denied", func(t *testing.T) {
		claim := submitClaim(ctx, t, e, group.ID, groupOwner, coveredMember, "not-a-service", 5000)
		decided := waitForDecision(ctx, t, e.store, claim.ID)

		assert.Equal(t, coverage.ClaimDenied, decided.Status)
		require.NotNil(t, decided.Decision)
		assert.Equal(t, "validation_failed", decided.Decision.Reason)
	})

	t.Run("submitter receives in-app notification", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			var n int
			err := e.db.QueryRowContext(ctx,
				`SELECT count(*) FROM notifications WHERE user_id = $1 AND event_type = 'claim_decided'`,
				groupOwner).Scan(&n)
			return err == nil && n >= 3
		}, 30*time.Second, 500*time.Millisecond)
	})
}

func connectAll(ctx context.Context, t *testing.T, cfg *config.Config) *env {
	t.Log("Checking service connectivity...")

	zeebe, err := bootstrap.ConnectZeebe(cfg, zapLog)
	require.NoError(t, err, "zeebe connection failed")
	t.Cleanup(func() { _ = zeebe.Close() })
	require.NoError(t, zeebe.HealthCheck(ctx), "zeebe topology request failed")

	pg, err := bootstrap.ConnectPostgres(ctx, cfg, zapLog)
	require.NoError(t, err, "postgres connection failed")
	t.Cleanup(func() { _ = pg.Close() })

	rdb, err := bootstrap.ConnectRedis(ctx, cfg, zapLog)
	require.NoError(t, err, "redis connection failed")
	t.Cleanup(func() { _ = rdb.Close() })

	es, err := bootstrap.ConnectElasticsearch(ctx, cfg, zapLog)
	require.NoError(t, err, "elasticsearch connection failed")
	require.NoError(t, es.Ping(ctx))

	return &env{
		cfg:   cfg,
		zeebe: zeebe,
		db:    pg.DB,
		store: store.New(pg.DB),
	}
}

func applySchema(ctx context.Context, t *testing.T, db *sql.DB) {
	ddl, err := os.ReadFile(filepath.Join(configsDir, "schema.sql"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(ddl))
	require.NoError(t, err, "schema apply failed")
}

func deployProcess(ctx context.Context, t *testing.T, zeebe *camunda.Client) {
	key, err := zeebe.DeployResources(ctx, filepath.Join(configsDir, "bpmn", "insurance-claim.bpmn"))
	require.NoError(t, err)
	t.Logf("deployed insurance-claim, key %d", key)
}

// startClaimWorkers runs the claim pipeline in-process. Email and SMS stay off
// so notifications land in-app only.
func startClaimWorkers(ctx context.Context, t *testing.T, e *env) {
	log := logger.NewZapAdapter(zapLog)
	obs := observability.New("carehub-e2e")
	t.Cleanup(obs.Shutdown)

	rdb, err := bootstrap.ConnectRedis(ctx, e.cfg, zapLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	schemas, err := validation.Default()
	require.NoError(t, err)
	hub := realtime.NewHub(rdb.Client, 0, log)

	handlers := map[string]camunda.HandlerFunc{
		vc.TaskType:  vc.NewHandler(bootstrap.ValidateClaimConfig(e.cfg), schemas, e.store.Claims, log).Handle,
		cc.TaskType:  cc.NewHandler(bootstrap.CheckCoverageConfig(e.cfg), e.store.Plans, rdb.Client, log).Handle,
		ac.TaskType:  ac.NewHandler(bootstrap.AdjudicateClaimConfig(e.cfg), log).Handle,
		rcd.TaskType: rcd.NewHandler(bootstrap.RecordClaimDecisionConfig(e.cfg), e.db, log).Handle,
		sn.TaskType:  sn.NewHandler(bootstrap.SendNotificationConfig(e.cfg), e.db, nil, nil, hub, log).Handle,
	}
	for taskType, handler := range handlers {
		w := camunda.NewWorker(e.zeebe.GetClient(), taskType, config.GetWorkerConfig(e.cfg, taskType), handler, obs, zapLog)
		t.Cleanup(func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			w.Stop(stopCtx)
		})
	}
}

func seedPlan(ctx context.Context, t *testing.T, db *sql.DB, memberID string) {
	year := time.Now().UTC().Year()
	_, err := db.ExecContext(ctx, `
		INSERT INTO insurance_plans (
			member_id, plan_id, payer_name, plan_name, status, effective_date,
			termination_date, deductible_cents, deductible_met_cents, coinsurance_rate,
			copay_cents, oop_max_cents, oop_met_cents, covered_services
		) VALUES ($1, 'plan-e2e', 'E2E Mutual', 'Silver', 'active', $2, $3,
			50000, 50000, 0.2, 2500, 600000, 0, '{primary_care,lab,home_health}')`,
		memberID,
		fmt.Sprintf("%d-01-01", year-1),
		fmt.Sprintf("%d-12-31", year))
	require.NoError(t, err)
}

// submitClaim mirrors POST /api/claims: insert, then start the process.
func submitClaim(ctx context.Context, t *testing.T, e *env, groupID, submittedBy, memberID, serviceCode string, billed int64) *store.ClaimRecord {
	serviceDate := time.Now().UTC().AddDate(0, 0, -1)
	claim, err := e.store.Claims.Insert(ctx, store.ClaimRecord{
		MemberID:    memberID,
		PlanID:      "plan-e2e",
		CareGroupID: groupID,
		SubmittedBy: submittedBy,
		ServiceCode: serviceCode,
		ServiceDate: serviceDate,
		BilledCents: billed,
	})
	require.NoError(t, err)

	key, err := e.zeebe.StartProcess(ctx, e.cfg.Camunda.ClaimProcessID, map[string]interface{}{
		"claimId":           claim.ID,
		"memberId":          memberID,
		"planId":            "plan-e2e",
		"careGroupId":       groupID,
		"serviceCode":       serviceCode,
		"serviceDate":       serviceDate.Format("2006-01-02"),
		"billedAmountCents": billed,
		"providerName":      "E2E Clinic",
		"submittedBy":       submittedBy,
	})
	require.NoError(t, err)
	require.NoError(t, e.store.Claims.SetProcessInstance(ctx, claim.ID, key))
	return claim
}

func waitForDecision(ctx context.Context, t *testing.T, s *store.Store, claimID string) *store.ClaimRecord {
	var latest *store.ClaimRecord
	require.Eventually(t, func() bool {
		c, err := s.Claims.Get(ctx, claimID)
		if err != nil {
			return false
		}
		latest = c
		return c.Status != coverage.ClaimSubmitted && c.Decision != nil
	}, 60*time.Second, time.Second, "claim %s was never decided", claimID)

	out, _ := json.Marshal(latest)
	t.Logf("claim decided: %s", out)
	return latest
}
