package coverage

import (
	"math"
	"sort"
	"time"
)

// Claim statuses. The decision statuses double as adjudicated states.
const (
	ClaimSubmitted           = "submitted"
	ClaimValidated           = "validated"
	ClaimApproved            = "approved"
	ClaimPartiallyApproved   = "partially_approved"
	ClaimAppliedToDeductible = "applied_to_deductible"
	ClaimPendingReview       = "pending_review"
	ClaimDenied              = "denied"
	ClaimPaid                = "paid"
	ClaimClosed              = "closed"
)

const (
	ReasonCoverageInactive  = "coverage_inactive"
	ReasonServiceNotCovered = "service_not_covered"
	ReasonAboveThreshold    = "above_review_threshold"
)

type Claim struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"memberId"`
	ServiceCode string    `json:"serviceCode"`
	ServiceDate time.Time `json:"serviceDate"`
	BilledCents int64     `json:"billedCents"`
}

type Decision struct {
	Status                     string `json:"status"`
	AllowedCents               int64  `json:"allowedCents"`
	PlanPaysCents              int64  `json:"planPaysCents"`
	PatientResponsibilityCents int64  `json:"patientResponsibilityCents"`
	CopayCents                 int64  `json:"copayCents"`
	DeductibleAppliedCents     int64  `json:"deductibleAppliedCents"`
	CoinsuranceCents           int64  `json:"coinsuranceCents"`
	Reason                     string `json:"reason,omitempty"`
}

// Decide adjudicates a claim against eligibility. Claims billed above
// reviewThresholdCents go to manual review; a threshold of zero disables it.
func Decide(claim Claim, elig *Eligibility, reviewThresholdCents int64) Decision {
	if elig == nil || !elig.IsActiveOn(claim.ServiceDate) {
		return Decision{Status: ClaimDenied, Reason: ReasonCoverageInactive}
	}
	if !elig.Covers(claim.ServiceCode) {
		return Decision{Status: ClaimDenied, Reason: ReasonServiceNotCovered}
	}
	if reviewThresholdCents > 0 && claim.BilledCents > reviewThresholdCents {
		return Decision{
			Status:       ClaimPendingReview,
			AllowedCents: claim.BilledCents,
			Reason:       ReasonAboveThreshold,
		}
	}

	allowed := nonNegative(claim.BilledCents)
	rest := allowed

	copay := min(elig.CopayCents, rest)
	rest -= copay

	deductible := min(elig.RemainingDeductible(), rest)
	rest -= deductible

	coinsurance := int64(math.Round(float64(rest) * elig.CoinsuranceRate))

	// Cap at the remaining out-of-pocket, trimming coinsurance first.
	over := copay + deductible + coinsurance - elig.RemainingOutOfPocket()
	for _, part := range []*int64{&coinsurance, &deductible, &copay} {
		if over <= 0 {
			break
		}
		cut := min(*part, over)
		*part -= cut
		over -= cut
	}

	patient := copay + deductible + coinsurance
	d := Decision{
		AllowedCents:               allowed,
		PlanPaysCents:              allowed - patient,
		PatientResponsibilityCents: patient,
		CopayCents:                 copay,
		DeductibleAppliedCents:     deductible,
		CoinsuranceCents:           coinsurance,
	}

	switch {
	case d.PlanPaysCents == allowed:
		d.Status = ClaimApproved
	case d.PlanPaysCents > 0:
		d.Status = ClaimPartiallyApproved
	default:
		d.Status = ClaimAppliedToDeductible
	}
	return d
}

var transitions = map[string][]string{
	ClaimSubmitted:           {ClaimValidated, ClaimDenied, ClaimClosed},
	ClaimValidated:           {ClaimApproved, ClaimPartiallyApproved, ClaimAppliedToDeductible, ClaimPendingReview, ClaimDenied},
	ClaimPendingReview:       {ClaimApproved, ClaimPartiallyApproved, ClaimAppliedToDeductible, ClaimDenied},
	ClaimApproved:            {ClaimPaid, ClaimClosed},
	ClaimPartiallyApproved:   {ClaimPaid, ClaimClosed},
	ClaimAppliedToDeductible: {ClaimClosed},
	ClaimDenied:              {ClaimClosed},
	ClaimPaid:                {ClaimClosed},
}

// CanTransition reports whether a claim may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom lists the statuses a claim may be in to move to status, plus
// status itself so a replayed write is accepted.
func AllowedFrom(status string) []string {
	from := []string{status}
	for src, nexts := range transitions {
		for _, next := range nexts {
			if next == status && src != status {
				from = append(from, src)
			}
		}
	}
	sort.Strings(from[1:])
	return from
}

// IsDecisionStatus reports whether status is an adjudication outcome.
func IsDecisionStatus(status string) bool {
	switch status {
	case ClaimApproved, ClaimPartiallyApproved, ClaimAppliedToDeductible, ClaimPendingReview, ClaimDenied:
		return true
	}
	return false
}
