package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"carehub/internal/domain/coverage"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ClaimRecord struct {
	ID                 string             `json:"id"`
	MemberID           string             `json:"memberId"`
	PlanID             string             `json:"planId"`
	CareGroupID        string             `json:"careGroupId"`
	SubmittedBy        string             `json:"submittedBy"`
	ServiceCode        string             `json:"serviceCode"`
	ServiceDate        time.Time          `json:"serviceDate"`
	BilledCents        int64              `json:"billedAmountCents"`
	Status             string             `json:"status"`
	Decision           *coverage.Decision `json:"decision,omitempty"`
	ProcessInstanceKey int64              `json:"processInstanceKey,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

type Claims struct {
	db *sql.DB
}

func (r *Claims) Insert(ctx context.Context, c ClaimRecord) (*ClaimRecord, error) {
	c.ID = uuid.NewString()
	c.Status = coverage.ClaimSubmitted
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO insurance_claims (
			id, member_id, plan_id, care_group_id, submitted_by, service_code,
			service_date, billed_cents, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		c.ID, c.MemberID, c.PlanID, c.CareGroupID, c.SubmittedBy, c.ServiceCode,
		c.ServiceDate, c.BilledCents, c.Status, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Claims) Get(ctx context.Context, id string) (*ClaimRecord, error) {
	var (
		c           ClaimRecord
		decision    []byte
		instanceKey sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, member_id, plan_id, care_group_id, submitted_by, service_code, service_date,
		       billed_cents, status, decision, process_instance_key, created_at, updated_at
		FROM insurance_claims WHERE id = $1`, id).
		Scan(&c.ID, &c.MemberID, &c.PlanID, &c.CareGroupID, &c.SubmittedBy, &c.ServiceCode, &c.ServiceDate,
			&c.BilledCents, &c.Status, &decision, &instanceKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if len(decision) > 0 {
		var d coverage.Decision
		if err := json.Unmarshal(decision, &d); err != nil {
			return nil, fmt.Errorf("decode claim decision: %w", err)
		}
		c.Decision = &d
	}
	c.ProcessInstanceKey = instanceKey.Int64
	return &c, nil
}

// UpdateDecision stores the adjudication result and moves the claim to the
// decision's status. The write only applies from a status that may lead to
// it; otherwise ErrInvalidTransition is returned.
func (r *Claims) UpdateDecision(ctx context.Context, id string, d coverage.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE insurance_claims
		SET status = $1, decision = $2, updated_at = $3
		WHERE id = $4 AND status = ANY($5)`,
		d.Status, data, now(), id, pq.Array(coverage.AllowedFrom(d.Status)))
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, id, d.Status)
}

// Transition moves a claim to status without touching its decision.
func (r *Claims) Transition(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE insurance_claims
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = ANY($4)`,
		status, now(), id, pq.Array(coverage.AllowedFrom(status)))
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, id, status)
}

func (r *Claims) checkTransition(ctx context.Context, res sql.Result, id, to string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM insurance_claims WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return notFound(err)
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, to)
}

func (r *Claims) SetProcessInstance(ctx context.Context, id string, key int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE insurance_claims SET process_instance_key = $1, updated_at = $2 WHERE id = $3`,
		key, now(), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
