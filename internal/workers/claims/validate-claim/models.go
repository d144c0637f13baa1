// internal/workers/claims/validate-claim/models.go
package validateclaim

import "carehub/internal/common/validation"

type Input struct {
	ClaimID           string `json:"claimId,omitempty"`
	MemberID          string `json:"memberId"`
	PlanID            string `json:"planId"`
	CareGroupID       string `json:"careGroupId"`
	ServiceCode       string `json:"serviceCode"`
	ServiceDate       string `json:"serviceDate"`
	BilledAmountCents int64  `json:"billedAmountCents"`
	ProviderName      string `json:"providerName,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

type Output struct {
	IsValid bool                         `json:"isValid"`
	Errors  []validation.ValidationError `json:"errors"`
}
