package store

import (
	"context"
	"database/sql"

	"carehub/internal/domain/coverage"

	"github.com/lib/pq"
)

type Plans struct {
	db *sql.DB
}

// GetForMember returns the member's most recent plan as eligibility.
func (r *Plans) GetForMember(ctx context.Context, memberID string) (*coverage.Eligibility, error) {
	e := &coverage.Eligibility{MemberID: memberID}
	var termination sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT plan_id, payer_name, plan_name, status, effective_date, termination_date,
		       deductible_cents, deductible_met_cents, coinsurance_rate, copay_cents,
		       oop_max_cents, oop_met_cents, covered_services
		FROM insurance_plans
		WHERE member_id = $1
		ORDER BY effective_date DESC
		LIMIT 1`, memberID).
		Scan(&e.PlanID, &e.PayerName, &e.PlanName, &e.Status, &e.EffectiveDate, &termination,
			&e.DeductibleCents, &e.DeductibleMetCents, &e.CoinsuranceRate, &e.CopayCents,
			&e.OutOfPocketMaxCents, &e.OutOfPocketMetCents, pq.Array(&e.CoveredServices))
	if err != nil {
		return nil, notFound(err)
	}
	if termination.Valid {
		e.TerminationDate = termination.Time
	}
	return e, nil
}
