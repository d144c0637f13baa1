package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	rws "carehub/internal/workers/wellness/record-wellness-score"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWellness struct {
	executeFunc func(ctx context.Context, input *rws.Input) (*rws.Output, error)
}

func (m *mockWellness) Execute(ctx context.Context, input *rws.Input) (*rws.Output, error) {
	return m.executeFunc(ctx, input)
}

func TestScoreWellness(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		score  int
	}{
		{name: "all metrics", body: `{"mood": 8, "energy": 6, "sleep": 7, "activity": 7}`, status: http.StatusOK, score: 7},
		{name: "partial check-in", body: `{"mood": 8}`, status: http.StatusBadRequest},
		{name: "zeros are present values", body: `{"mood": 8, "energy": 0, "sleep": 0, "activity": 0}`, status: http.StatusOK, score: 2},
		{name: "no metrics", body: `{}`, status: http.StatusOK, score: 0},
		{name: "out of range", body: `{"mood": 11, "energy": 5, "sleep": 5, "activity": 5}`, status: http.StatusBadRequest},
		{name: "negative", body: `{"sleep": -1}`, status: http.StatusBadRequest},
	}

	env := newTestEnv(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/wellness/score", "user-1", tt.body)

			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				WellnessScore int `json:"wellnessScore"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.score, resp.WellnessScore)
		})
	}
}

func TestRecordWellness(t *testing.T) {
	t.Run("records for the caller", func(t *testing.T) {
		var got *rws.Input
		env := newTestEnv(t, func(_ *Config, deps *Deps) {
			deps.Wellness = &mockWellness{
				executeFunc: func(ctx context.Context, input *rws.Input) (*rws.Output, error) {
					got = input
					return &rws.Output{LogID: "log-1", Score: 7, Trend: "improving", RecentScores: []int{5, 6, 7}}, nil
				},
			}
		})

		rec := env.do(t, http.MethodPost, "/api/wellness", "user-1",
			`{"mood": 8, "energy": 6, "sleep": 7, "activity": 7, "notes": "slept well"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "user-1", got.UserID)
		require.NotNil(t, got.Metrics)
		assert.Equal(t, 6, got.Metrics.Energy)
		assert.Equal(t, "slept well", got.Notes)

		var out rws.Output
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "improving", out.Trend)
	})

	t.Run("partial check-in names missing metrics", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Config, deps *Deps) {
			deps.Wellness = &mockWellness{
				executeFunc: func(ctx context.Context, input *rws.Input) (*rws.Output, error) {
					t.Fatal("handler should not run")
					return nil, nil
				},
			}
		})

		rec := env.do(t, http.MethodPost, "/api/wellness", "user-1", `{"mood": 8, "sleep": 6}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Details, "missing energy, activity")
	})

	t.Run("care group needs membership", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Config, deps *Deps) {
			deps.Wellness = &mockWellness{
				executeFunc: func(ctx context.Context, input *rws.Input) (*rws.Output, error) {
					t.Fatal("handler should not run")
					return nil, nil
				},
			}
		})
		env.expectMember("group-1", "user-1", false)

		rec := env.do(t, http.MethodPost, "/api/wellness", "user-1", `{"careGroupId": "group-1", "mood": 5, "energy": 5, "sleep": 5, "activity": 5}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}
