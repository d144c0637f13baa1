package store

import (
	"context"
	"database/sql"
	"time"

	"carehub/internal/domain/wellness"

	"github.com/google/uuid"
)

type WellnessLog struct {
	ID       string           `json:"id"`
	UserID   string           `json:"userId"`
	GroupID  string           `json:"careGroupId,omitempty"`
	Metrics  wellness.Metrics `json:"metrics"`
	Score    int              `json:"score"`
	Notes    string           `json:"notes,omitempty"`
	LoggedAt time.Time        `json:"loggedAt"`
}

type WellnessLogs struct {
	db *sql.DB
}

func (r *WellnessLogs) Insert(ctx context.Context, l WellnessLog) (*WellnessLog, error) {
	l.ID = uuid.NewString()
	if l.LoggedAt.IsZero() {
		l.LoggedAt = now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wellness_logs (id, user_id, care_group_id, mood, energy, sleep, activity, score, notes, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.UserID, nullString(l.GroupID),
		l.Metrics.Mood, l.Metrics.Energy, l.Metrics.Sleep, l.Metrics.Activity,
		l.Score, l.Notes, l.LoggedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// RecentScores returns up to n of the user's latest scores, oldest first.
func (r *WellnessLogs) RecentScores(ctx context.Context, userID string, n int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT score FROM wellness_logs
		WHERE user_id = $1
		ORDER BY logged_at DESC
		LIMIT $2`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(scores)-1; i < j; i, j = i+1, j-1 {
		scores[i], scores[j] = scores[j], scores[i]
	}
	return scores, nil
}
