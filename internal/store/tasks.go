package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	TaskOpen = "open"
	TaskDone = "done"
)

type Task struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"careGroupId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
}

type Tasks struct {
	db *sql.DB
}

func (r *Tasks) Create(ctx context.Context, t Task) (*Task, error) {
	t.ID = uuid.NewString()
	t.Status = TaskOpen
	t.CreatedAt = now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO care_tasks (id, care_group_id, title, description, assignee_id, status, due_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.GroupID, t.Title, t.Description, nullString(t.AssigneeID),
		t.Status, nullTime(t.DueAt), t.CreatedBy, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByGroup returns the group's tasks, optionally filtered by status.
func (r *Tasks) ListByGroup(ctx context.Context, groupID, status string) ([]Task, error) {
	query := `
		SELECT id, care_group_id, title, description, assignee_id, status, due_at,
		       created_by, created_at, completed_at, completed_by
		FROM care_tasks
		WHERE care_group_id = $1`
	args := []interface{}{groupID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY due_at NULLS LAST, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var (
			t                     Task
			assignee, completedBy sql.NullString
			dueAt, completedAt    sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.GroupID, &t.Title, &t.Description, &assignee, &t.Status,
			&dueAt, &t.CreatedBy, &t.CreatedAt, &completedAt, &completedBy); err != nil {
			return nil, err
		}
		t.AssigneeID = assignee.String
		t.CompletedBy = completedBy.String
		t.DueAt = timePtr(dueAt)
		t.CompletedAt = timePtr(completedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Complete marks an open task done. Unknown or already completed tasks
// return ErrNotFound.
func (r *Tasks) Complete(ctx context.Context, groupID, taskID, by string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE care_tasks
		SET status = $1, completed_at = $2, completed_by = $3
		WHERE id = $4 AND care_group_id = $5 AND status <> $1`,
		TaskDone, now(), by, taskID, groupID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
