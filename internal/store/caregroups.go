package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carehub/internal/common/database"

	"github.com/google/uuid"
)

type CareGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	GroupID     string    `json:"careGroupId"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type CareGroups struct {
	db *sql.DB
}

// Create inserts the group and the owner's coordinator membership together.
func (r *CareGroups) Create(ctx context.Context, name, ownerID string) (*CareGroup, error) {
	g := &CareGroup{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Role:      RoleCoordinator,
		CreatedAt: now(),
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO care_groups (id, name, owner_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			g.ID, g.Name, g.OwnerID, g.CreatedAt); err != nil {
			return fmt.Errorf("insert care group: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO care_group_members (care_group_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`,
			g.ID, ownerID, RoleCoordinator, g.CreatedAt); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *CareGroups) Get(ctx context.Context, id string) (*CareGroup, error) {
	g := &CareGroup{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at FROM care_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

func (r *CareGroups) ListForUser(ctx context.Context, userID string) ([]CareGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.owner_id, g.created_at, m.role
		FROM care_groups g
		JOIN care_group_members m ON m.care_group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []CareGroup{}
	for rows.Next() {
		var g CareGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt, &g.Role); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *CareGroups) AddMember(ctx context.Context, groupID, userID, role string) (*Member, error) {
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	m := &Member{GroupID: groupID, UserID: userID, Role: role, JoinedAt: now()}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO care_group_members (care_group_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		groupID, userID, role, m.JoinedAt)
	switch {
	case database.IsUniqueViolation(err):
		return nil, ErrConflict
	case database.IsForeignKeyViolation(err):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return m, nil
}

func (r *CareGroups) Members(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.user_id, m.role, COALESCE(p.display_name, ''), m.joined_at
		FROM care_group_members m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.care_group_id = $1
		ORDER BY m.joined_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m := Member{GroupID: groupID}
		if err := rows.Scan(&m.UserID, &m.Role, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Role returns userID's role in the group, or ErrNotFound for non-members.
func (r *CareGroups) Role(ctx context.Context, groupID, userID string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT role FROM care_group_members WHERE care_group_id = $1 AND user_id = $2`,
		groupID, userID).Scan(&role)
	if err != nil {
		return "", notFound(err)
	}
	return role, nil
}

func (r *CareGroups) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM care_group_members
			WHERE care_group_id = $1 AND user_id = $2
		)`, groupID, userID).Scan(&ok)
	return ok, err
}
