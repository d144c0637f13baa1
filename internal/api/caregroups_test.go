package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/realtime"
	"carehub/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskCols = []string{
	"id", "care_group_id", "title", "description", "assignee_id", "status", "due_at",
	"created_by", "created_at", "completed_at", "completed_by",
}

func TestCreateCareGroup(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.ExpectBegin()
	env.mock.ExpectExec("INSERT INTO care_groups").
		WithArgs(sqlmock.AnyArg(), "Mom's care team", "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec("INSERT INTO care_group_members").
		WithArgs(sqlmock.AnyArg(), "user-1", store.RoleCoordinator, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	rec := env.do(t, http.MethodPost, "/api/care-groups", "user-1", `{"name": "  Mom's care team "}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var g store.CareGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "Mom's care team", g.Name)
	assert.Equal(t, "user-1", g.OwnerID)
	assert.Equal(t, store.RoleCoordinator, g.Role)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCreateCareGroup_RequiresName(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/care-groups", "user-1", `{"name": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCareGroups(t *testing.T) {
	env := newTestEnv(t, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.mock.ExpectQuery("FROM care_groups g").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "created_at", "role"}).
			AddRow("group-1", "Dad", "user-1", created, store.RoleCoordinator).
			AddRow("group-2", "Aunt June", "user-7", created, store.RoleFamily))

	rec := env.do(t, http.MethodGet, "/api/care-groups", "user-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		CareGroups []store.CareGroup `json:"careGroups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.CareGroups, 2)
	assert.Equal(t, store.RoleFamily, resp.CareGroups[1].Role)
}

func TestAddMember(t *testing.T) {
	t.Run("publishes member joined", func(t *testing.T) {
		env := newTestEnv(t, nil)
		events := subscribe(t, env.hub, "group-1")
		env.expectRole("group-1", "user-1", store.RoleCoordinator)
		env.mock.ExpectExec("INSERT INTO care_group_members").
			WithArgs("group-1", "user-2", store.RoleCaregiver, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/members", "user-1",
			`{"userId": "user-2", "role": "caregiver"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		e := nextEvent(t, events)
		assert.Equal(t, realtime.EventMemberJoined, e.Type)
		assert.Equal(t, "user-1", e.ActorID)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("already a member", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectRole("group-1", "user-1", store.RoleCoordinator)
		env.mock.ExpectExec("INSERT INTO care_group_members").
			WillReturnError(&pq.Error{Code: "23505"})

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/members", "user-1",
			`{"userId": "user-2", "role": "family"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, errors.ErrCodeDuplicateRecord, body.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectRole("group-1", "user-1", store.RoleCoordinator)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/members", "user-1",
			`{"userId": "user-2", "role": "landlord"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("outsider", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.mock.ExpectQuery("SELECT role FROM care_group_members").
			WithArgs("group-1", "user-9").
			WillReturnError(sql.ErrNoRows)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/members", "user-9",
			`{"userId": "user-9", "role": "coordinator"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("caregiver cannot add members", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectRole("group-1", "user-2", store.RoleCaregiver)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/members", "user-2",
			`{"userId": "user-7", "role": "coordinator"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, errors.ErrCodeForbidden, body.Code)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.MatchExpectationsInOrder(false)

	ctx := t.Context()
	require.NoError(t, env.hub.Heartbeat(ctx, "group-1", "user-2"))

	joined := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	env.expectMember("group-1", "user-1", true)
	env.mock.ExpectQuery("LEFT JOIN profiles").
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "display_name", "joined_at"}).
			AddRow("user-1", store.RoleCoordinator, "Ana", joined).
			AddRow("user-2", store.RoleCaregiver, "Ben", joined))
	env.mock.ExpectQuery("FROM care_tasks").
		WithArgs("group-1", store.TaskOpen).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("task-1", "group-1", "Pick up prescription", "", nil, store.TaskOpen, nil,
				"user-1", joined, nil, nil))
	env.mock.ExpectQuery("FROM messages").
		WithArgs("group-1", sqlmock.AnyArg(), overviewMessages).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "body", "created_at"}).
			AddRow("msg-1", "user-2", "On my way", joined))

	rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/overview", "user-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp overviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "group-1", resp.CareGroupID)
	assert.Len(t, resp.Members, 2)
	require.Len(t, resp.OpenTasks, 1)
	assert.Equal(t, "Pick up prescription", resp.OpenTasks[0].Title)
	require.Len(t, resp.RecentMessages, 1)
	assert.Equal(t, []string{"user-2"}, resp.Online)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestOverview_DatabaseFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.MatchExpectationsInOrder(false)
	env.expectMember("group-1", "user-1", true)
	env.mock.ExpectQuery("LEFT JOIN profiles").WillReturnError(assert.AnError)
	env.mock.ExpectQuery("FROM care_tasks").WillReturnRows(sqlmock.NewRows(taskCols))
	env.mock.ExpectQuery("FROM messages").WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "body", "created_at"}))

	rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/overview", "user-1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Details)
}

func TestCreateTask(t *testing.T) {
	t.Run("assigned task", func(t *testing.T) {
		env := newTestEnv(t, nil)
		events := subscribe(t, env.hub, "group-1")
		env.expectMember("group-1", "user-1", true)
		env.expectMember("group-1", "user-2", true)
		env.mock.ExpectExec("INSERT INTO care_tasks").
			WithArgs(sqlmock.AnyArg(), "group-1", "Book physio", "", "user-2", store.TaskOpen,
				sqlmock.AnyArg(), "user-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks", "user-1",
			`{"title": "Book physio", "assigneeId": "user-2", "dueAt": "2026-11-02T15:00:00Z"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var task store.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
		assert.Equal(t, store.TaskOpen, task.Status)
		require.NotNil(t, task.DueAt)
		assert.Equal(t, 2026, task.DueAt.Year())

		e := nextEvent(t, events)
		assert.Equal(t, realtime.EventTaskCreated, e.Type)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("assignee outside the group", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectMember("group-1", "user-1", true)
		env.expectMember("group-1", "user-9", false)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks", "user-1",
			`{"title": "Book physio", "assigneeId": "user-9"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("missing title", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectMember("group-1", "user-1", true)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks", "user-1", `{"description": "?"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCompleteTask(t *testing.T) {
	t.Run("open task", func(t *testing.T) {
		env := newTestEnv(t, nil)
		events := subscribe(t, env.hub, "group-1")
		env.expectMember("group-1", "user-2", true)
		env.mock.ExpectExec("UPDATE care_tasks").
			WithArgs(store.TaskDone, sqlmock.AnyArg(), "user-2", "task-1", "group-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks/task-1/complete", "user-2", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, realtime.EventTaskCompleted, nextEvent(t, events).Type)
	})

	t.Run("already done", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectMember("group-1", "user-2", true)
		env.mock.ExpectExec("UPDATE care_tasks").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks/task-1/complete", "user-2", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListTasks_RejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.expectMember("group-1", "user-1", true)

	rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/tasks?status=blocked", "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages(t *testing.T) {
	t.Run("post", func(t *testing.T) {
		env := newTestEnv(t, nil)
		events := subscribe(t, env.hub, "group-1")
		env.expectMember("group-1", "user-1", true)
		env.mock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), "group-1", "user-1", "Appointment moved to 3pm", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/messages", "user-1",
			`{"body": " Appointment moved to 3pm "}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		e := nextEvent(t, events)
		assert.Equal(t, realtime.EventMessageCreated, e.Type)
		var m store.Message
		require.NoError(t, json.Unmarshal(e.Payload, &m))
		assert.Equal(t, "Appointment moved to 3pm", m.Body)
	})

	t.Run("empty body", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectMember("group-1", "user-1", true)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/messages", "user-1", `{"body": "  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list before cursor", func(t *testing.T) {
		env := newTestEnv(t, nil)
		before := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		env.expectMember("group-1", "user-1", true)
		env.mock.ExpectQuery("FROM messages").
			WithArgs("group-1", before, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "body", "created_at"}).
				AddRow("msg-1", "user-2", "Fed the cat", before.Add(-time.Hour)))

		rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/messages?limit=10&before=2026-10-01T12:00:00Z", "user-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Messages []store.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 1)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("bad cursor", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.expectMember("group-1", "user-1", true)

		rec := env.do(t, http.MethodGet, "/api/care-groups/group-1/messages?before=yesterday", "user-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPresence(t *testing.T) {
	env := newTestEnv(t, nil)
	env.expectMember("group-1", "user-1", true)
	env.expectMember("group-1", "user-1", true)

	rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/presence", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Online []string `json:"online"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"user-1"}, resp.Online)

	rec = env.do(t, http.MethodDelete, "/api/care-groups/group-1/presence", "user-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	online, err := env.hub.Online(t.Context(), "group-1")
	require.NoError(t, err)
	assert.Empty(t, online)
}
