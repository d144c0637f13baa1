package wellness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		metrics *Metrics
		want    int
	}{
		{"absent metrics", nil, 0},
		{"all zero", &Metrics{}, 0},
		{"exact mean", &Metrics{Mood: 8, Energy: 6, Sleep: 7, Activity: 7}, 7},
		{"rounds half up", &Metrics{Mood: 7, Energy: 7, Sleep: 6, Activity: 6}, 7}, // 6.5
		{"rounds down", &Metrics{Mood: 5, Energy: 5, Sleep: 5, Activity: 6}, 5},   // 5.25
		{"rounds up", &Metrics{Mood: 6, Energy: 6, Sleep: 6, Activity: 5}, 6},      // 5.75
		{"max", &Metrics{Mood: 10, Energy: 10, Sleep: 10, Activity: 10}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.metrics))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Metrics{Mood: 0, Energy: 10, Sleep: 5, Activity: 3}))

	err := Validate(Metrics{Mood: 11})
	assert.EqualError(t, err, "mood must be between 0 and 10, got 11")

	assert.Error(t, Validate(Metrics{Mood: 5, Energy: 5, Sleep: -1}))
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   string
	}{
		{"no data", nil, TrendInsufficientData},
		{"single", []int{5}, TrendInsufficientData},
		{"improving", []int{3, 4, 6, 7}, TrendImproving},
		{"declining", []int{8, 8, 5, 4}, TrendDeclining},
		{"within band", []int{5, 6, 6, 5}, TrendStable},
		{"odd count ignores middle", []int{4, 9, 5}, TrendImproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.scores))
		})
	}
}
