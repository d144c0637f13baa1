// Package store holds the Postgres repositories. Care-scoped queries are
// always filtered by care_group_id.
package store

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: already exists")
	ErrInvalidRole = errors.New("store: invalid role")

	// ErrInvalidTransition means the row exists but its status does not
	// allow the requested move.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// Care group roles.
const (
	RolePatient     = "patient"
	RoleFamily      = "family"
	RoleCaregiver   = "caregiver"
	RoleCoordinator = "coordinator"
)

func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleFamily, RoleCaregiver, RoleCoordinator:
		return true
	}
	return false
}

type Store struct {
	db *sql.DB

	CareGroups    *CareGroups
	Tasks         *Tasks
	Messages      *Messages
	Wellness      *WellnessLogs
	Products      *Products
	Orders        *Orders
	Claims        *Claims
	Plans         *Plans
	Profiles      *Profiles
	Notifications *Notifications
	Audit         *AuditLog
}

func New(db *sql.DB) *Store {
	return &Store{
		db:            db,
		CareGroups:    &CareGroups{db: db},
		Tasks:         &Tasks{db: db},
		Messages:      &Messages{db: db},
		Wellness:      &WellnessLogs{db: db},
		Products:      &Products{db: db},
		Orders:        &Orders{db: db},
		Claims:        &Claims{db: db},
		Plans:         &Plans{db: db},
		Profiles:      &Profiles{db: db},
		Notifications: &Notifications{db: db},
		Audit:         &AuditLog{db: db},
	}
}

func (s *Store) DB() *sql.DB { return s.db }

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
