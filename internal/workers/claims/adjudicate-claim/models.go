// internal/workers/claims/adjudicate-claim/models.go
package adjudicateclaim

import "carehub/internal/domain/coverage"

type Input struct {
	ClaimID           string                `json:"claimId"`
	MemberID          string                `json:"memberId"`
	ServiceCode       string                `json:"serviceCode"`
	ServiceDate       string                `json:"serviceDate"`
	BilledAmountCents int64                 `json:"billedAmountCents"`
	Eligibility       *coverage.Eligibility `json:"eligibility"`
}

type Output struct {
	Decision       coverage.Decision `json:"decision"`
	ClaimStatus    string            `json:"claimStatus"`
	RequiresReview bool              `json:"requiresReview"`
}
