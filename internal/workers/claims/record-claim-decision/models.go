// internal/workers/claims/record-claim-decision/models.go
package recordclaimdecision

import "carehub/internal/domain/coverage"

type Input struct {
	ClaimID     string            `json:"claimId"`
	CareGroupID string            `json:"careGroupId,omitempty"`
	Decision    coverage.Decision `json:"decision"`
}

type Output struct {
	ClaimID     string `json:"claimId"`
	ClaimStatus string `json:"claimStatus"`
	RecordedAt  string `json:"recordedAt"`
}
