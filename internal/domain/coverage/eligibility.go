// Package coverage holds insurance eligibility and the claim decision rules.
package coverage

import (
	"strings"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Service codes recognised by plans.
const (
	ServicePrimaryCare     = "primary_care"
	ServiceSpecialist      = "specialist"
	ServiceHomeHealth      = "home_health"
	ServicePhysicalTherapy = "physical_therapy"
	ServiceLab             = "lab"
	ServiceImaging         = "imaging"
	ServiceTelehealth      = "telehealth"
)

type Eligibility struct {
	MemberID            string    `json:"memberId"`
	PlanID              string    `json:"planId"`
	PayerName           string    `json:"payerName"`
	PlanName            string    `json:"planName"`
	Status              string    `json:"status"`
	EffectiveDate       time.Time `json:"effectiveDate"`
	TerminationDate     time.Time `json:"terminationDate,omitempty"`
	DeductibleCents     int64     `json:"deductibleCents"`
	DeductibleMetCents  int64     `json:"deductibleMetCents"`
	CoinsuranceRate     float64   `json:"coinsuranceRate"`
	CopayCents          int64     `json:"copayCents"`
	OutOfPocketMaxCents int64     `json:"outOfPocketMaxCents"`
	OutOfPocketMetCents int64     `json:"outOfPocketMetCents"`
	CoveredServices     []string  `json:"coveredServices"`
}

// MockEligibility returns the fixed eligibility used when no plan is on
// file. The plan year starts on January 1st of now's year.
func MockEligibility(memberID string, now time.Time) *Eligibility {
	year := now.UTC().Year()
	return &Eligibility{
		MemberID:            memberID,
		PlanID:              "mock-ppo",
		PayerName:           "CareHub Health",
		PlanName:            "Standard PPO",
		Status:              StatusActive,
		EffectiveDate:       time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		TerminationDate:     time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		DeductibleCents:     150000,
		DeductibleMetCents:  50000,
		CoinsuranceRate:     0.20,
		CopayCents:          2500,
		OutOfPocketMaxCents: 500000,
		OutOfPocketMetCents: 120000,
		CoveredServices: []string{
			ServicePrimaryCare,
			ServiceSpecialist,
			ServiceHomeHealth,
			ServicePhysicalTherapy,
			ServiceLab,
			ServiceImaging,
			ServiceTelehealth,
		},
	}
}

// IsActiveOn reports whether the plan covers the given day. A zero
// termination date means open-ended.
func (e *Eligibility) IsActiveOn(date time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	day := truncateDay(date)
	if !e.EffectiveDate.IsZero() && day.Before(truncateDay(e.EffectiveDate)) {
		return false
	}
	if !e.TerminationDate.IsZero() && day.After(truncateDay(e.TerminationDate)) {
		return false
	}
	return true
}

func (e *Eligibility) Covers(serviceCode string) bool {
	for _, s := range e.CoveredServices {
		if strings.EqualFold(s, serviceCode) {
			return true
		}
	}
	return false
}

func (e *Eligibility) RemainingDeductible() int64 {
	return nonNegative(e.DeductibleCents - e.DeductibleMetCents)
}

func (e *Eligibility) RemainingOutOfPocket() int64 {
	return nonNegative(e.OutOfPocketMaxCents - e.OutOfPocketMetCents)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
