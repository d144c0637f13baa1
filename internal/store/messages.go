package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"careGroupId"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Messages struct {
	db *sql.DB
}

func (r *Messages) Post(ctx context.Context, groupID, senderID, body string) (*Message, error) {
	m := &Message{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: now(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, care_group_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.GroupID, m.SenderID, m.Body, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListByGroup pages backwards from before, newest first. A zero before
// starts from now.
func (r *Messages) ListByGroup(ctx context.Context, groupID string, limit int, before time.Time) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if before.IsZero() {
		before = now()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, body, created_at
		FROM messages
		WHERE care_group_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3`, groupID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m := Message{GroupID: groupID}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
