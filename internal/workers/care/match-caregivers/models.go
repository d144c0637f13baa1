// internal/workers/care/match-caregivers/models.go
package matchcaregivers

type Input struct {
	CareGroupID string     `json:"careGroupId"`
	PatientID   string     `json:"patientId"`
	Needs       *CareNeeds `json:"careNeeds,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

type CareNeeds struct {
	Skills             []string `json:"skills"`
	Days               []string `json:"days"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	MaxDistanceKm      float64  `json:"maxDistanceKm,omitempty"`
	Languages          []string `json:"languages"`
	MaxHourlyRateCents int64    `json:"maxHourlyRateCents,omitempty"`
}

type Caregiver struct {
	ID              string
	Name            string
	Skills          []string
	AvailableDays   []string
	Latitude        *float64
	Longitude       *float64
	Languages       []string
	HourlyRateCents int64
}

type Output struct {
	Matches         []Match `json:"matches"`
	TotalCandidates int     `json:"totalCandidates"`
}

type Match struct {
	CaregiverID string       `json:"caregiverId"`
	Name        string       `json:"name"`
	Score       int          `json:"matchScore"`
	Factors     MatchFactors `json:"matchFactors"`
	DistanceKm  *float64     `json:"distanceKm,omitempty"`
}

type MatchFactors struct {
	SkillsFit       int `json:"skillsFit"`
	AvailabilityFit int `json:"availabilityFit"`
	LocationFit     int `json:"locationFit"`
	LanguageFit     int `json:"languageFit"`
	RateFit         int `json:"rateFit"`
}
