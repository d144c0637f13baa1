// internal/workers/wellness/record-wellness-score/models.go
package recordwellnessscore

import "carehub/internal/domain/wellness"

type Input struct {
	UserID      string            `json:"userId"`
	CareGroupID string            `json:"careGroupId,omitempty"`
	Metrics     *wellness.Metrics `json:"metrics"`
	Notes       string            `json:"notes,omitempty"`
}

type Output struct {
	LogID        string `json:"wellnessLogId"`
	Score        int    `json:"wellnessScore"`
	Trend        string `json:"trend"`
	RecentScores []int  `json:"recentScores"`
}
