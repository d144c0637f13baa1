// internal/workers/claims/check-coverage/models.go
package checkcoverage

import "carehub/internal/domain/coverage"

const (
	SourceCache    = "cache"
	SourceDatabase = "database"
	SourceMock     = "mock"
)

type Input struct {
	ClaimID     string `json:"claimId,omitempty"`
	MemberID    string `json:"memberId"`
	ServiceDate string `json:"serviceDate,omitempty"`
}

type Output struct {
	Eligibility *coverage.Eligibility `json:"eligibility"`
	IsActive    bool                  `json:"isActive"`
	Source      string                `json:"coverageSource"`
}
