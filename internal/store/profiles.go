package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type Profiles struct {
	db *sql.DB
}

func (r *Profiles) Get(ctx context.Context, id string) (*Profile, error) {
	p := &Profile{ID: id}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(display_name, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM profiles WHERE id = $1`, id).
		Scan(&p.DisplayName, &p.Email, &p.Phone)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

type Notification struct {
	ID        string
	UserID    string
	GroupID   string
	EventType string
	Title     string
	Body      string
	Channels  []string
	Status    string
}

type Notifications struct {
	db *sql.DB
}

func (r *Notifications) Insert(ctx context.Context, n Notification) (string, error) {
	n.ID = uuid.NewString()
	channels, err := json.Marshal(n.Channels)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, care_group_id, event_type, title, body, channels, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, nullString(n.GroupID), n.EventType, n.Title, n.Body, channels, n.Status, now())
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

type AuditLog struct {
	db *sql.DB
}

func (r *AuditLog) Record(ctx context.Context, eventType, resourceType, resourceID string, details interface{}) error {
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType, resourceType, resourceID, data, now())
	return err
}
