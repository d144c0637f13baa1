package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"carehub/internal/store"
	mc "carehub/internal/workers/care/match-caregivers"
	sn "carehub/internal/workers/communication/send-notification"
	co "carehub/internal/workers/marketplace/create-order"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sn.Input
	err  error
}

func (n *recordingNotifier) Execute(_ context.Context, input *sn.Input) (*sn.Output, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *input)
	if n.err != nil {
		return nil, n.err
	}
	return &sn.Output{Status: sn.StatusInApp}, nil
}

// byRecipient returns the notifications sorted by recipient.
func (n *recordingNotifier) byRecipient() []sn.Input {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := append([]sn.Input(nil), n.sent...)
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out
}

type mockMatcher struct{ mock.Mock }

func (m *mockMatcher) Execute(ctx context.Context, input *mc.Input) (*mc.Output, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*mc.Output)
	return out, args.Error(1)
}

var memberCols = []string{"user_id", "role", "display_name", "joined_at"}

func (e *testEnv) expectMembers(groupID string, rows ...[]interface{}) {
	r := sqlmock.NewRows(memberCols)
	for _, row := range rows {
		r.AddRow(row[0], row[1], row[2], time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	}
	e.mock.ExpectQuery("LEFT JOIN profiles").WithArgs(groupID).WillReturnRows(r)
}

func TestCreateTask_NotifiesAssignee(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Notifications = notifier })
	env.expectMember("group-1", "user-1", true)
	env.expectMember("group-1", "user-2", true)
	env.mock.ExpectExec("INSERT INTO care_tasks").WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectMembers("group-1",
		[]interface{}{"user-1", store.RoleCoordinator, "Ana"},
		[]interface{}{"user-2", store.RoleCaregiver, "Ben"})

	rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks", "user-1",
		`{"title": "Book physio", "assigneeId": "user-2", "dueAt": "2026-11-02T15:00:00Z"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	sent := notifier.byRecipient()
	require.Len(t, sent, 1)
	assert.Equal(t, "user-2", sent[0].RecipientID)
	assert.Equal(t, sn.TypeTaskAssigned, sent[0].NotificationType)
	assert.Equal(t, "group-1", sent[0].CareGroupID)
	assert.Equal(t, map[string]interface{}{
		"taskId":     sent[0].Metadata["taskId"],
		"taskTitle":  "Book physio",
		"assignedBy": "Ana",
		"dueDate":    "Mon Nov 2",
	}, sent[0].Metadata)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCreateTask_SelfAssignedIsSilent(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Notifications = notifier })
	env.expectMember("group-1", "user-1", true)
	env.expectMember("group-1", "user-1", true)
	env.mock.ExpectExec("INSERT INTO care_tasks").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/tasks", "user-1",
		`{"title": "Refill pill box", "assigneeId": "user-1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, notifier.byRecipient())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPostMessage_NotifiesOtherMembers(t *testing.T) {
	notifier := &recordingNotifier{err: assert.AnError}
	env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Notifications = notifier })
	env.expectMember("group-1", "user-1", true)
	env.mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery("FROM care_groups WHERE id").
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "created_at"}).
			AddRow("group-1", "Dad's care", "user-1", time.Now()))
	env.expectMembers("group-1",
		[]interface{}{"user-1", store.RoleCoordinator, "Ana"},
		[]interface{}{"user-2", store.RoleCaregiver, "Ben"},
		[]interface{}{"user-3", store.RoleFamily, "Cy"})

	rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/messages", "user-1",
		`{"body": "Appointment moved to 3pm"}`)

	require.Equal(t, http.StatusCreated, rec.Code, "notification failures must not fail the post")
	sent := notifier.byRecipient()
	require.Len(t, sent, 2)
	assert.Equal(t, "user-2", sent[0].RecipientID)
	assert.Equal(t, "user-3", sent[1].RecipientID)
	for _, n := range sent {
		assert.Equal(t, sn.TypeNewMessage, n.NotificationType)
		assert.Equal(t, "Dad's care", n.Metadata["groupName"])
		assert.Equal(t, "Ana", n.Metadata["senderName"])
		assert.Equal(t, "Appointment moved to 3pm", n.Metadata["preview"])
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCreateOrder_NotifiesBuyer(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, func(_ *Config, deps *Deps) {
		deps.Notifications = notifier
		deps.Orders = &mockOrders{
			executeFunc: func(context.Context, *co.Input) (*co.Output, error) {
				return &co.Output{OrderID: "order-1", Status: "pending", TotalCents: 2397, Currency: "usd", ItemCount: 3}, nil
			},
		}
	})

	rec := env.do(t, http.MethodPost, "/api/orders", "user-1", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	sent := notifier.byRecipient()
	require.Len(t, sent, 1)
	assert.Equal(t, sn.TypeOrderPlaced, sent[0].NotificationType)
	assert.Equal(t, "order-1", sent[0].Metadata["orderId"])
	assert.Equal(t, int64(2397), sent[0].Metadata["totalCents"])
}

func TestMatchCaregivers(t *testing.T) {
	t.Run("ranks and notifies the requester", func(t *testing.T) {
		notifier := &recordingNotifier{}
		matcher := &mockMatcher{}
		matcher.On("Execute", mock.Anything, mock.MatchedBy(func(in *mc.Input) bool {
			return in.CareGroupID == "group-1" && in.PatientID == "user-5" && in.Limit == 3
		})).Return(&mc.Output{
			Matches:         []mc.Match{{CaregiverID: "cg-1", Name: "Dana", Score: 91}, {CaregiverID: "cg-2", Name: "Eli", Score: 77}},
			TotalCandidates: 12,
		}, nil).Once()

		env := newTestEnv(t, func(_ *Config, deps *Deps) {
			deps.Notifications = notifier
			deps.Matcher = matcher
		})
		env.expectMember("group-1", "user-1", true)
		env.expectMember("group-1", "user-5", true)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/caregiver-matches", "user-1",
			`{"patientId": "user-5", "limit": 3}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var out mc.Output
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out.Matches, 2)
		assert.Equal(t, "cg-1", out.Matches[0].CaregiverID)

		sent := notifier.byRecipient()
		require.Len(t, sent, 1)
		assert.Equal(t, "user-1", sent[0].RecipientID)
		assert.Equal(t, sn.TypeCaregiverMatched, sent[0].NotificationType)
		assert.Equal(t, 2, sent[0].Metadata["matchCount"])
		assert.Equal(t, "Dana", sent[0].Metadata["topCaregiver"])
		matcher.AssertExpectations(t)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("needs or patient required", func(t *testing.T) {
		matcher := &mockMatcher{}
		env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Matcher = matcher })
		env.expectMember("group-1", "user-1", true)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/caregiver-matches", "user-1", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		matcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("patient outside the group", func(t *testing.T) {
		matcher := &mockMatcher{}
		env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Matcher = matcher })
		env.expectMember("group-1", "user-1", true)
		env.expectMember("group-1", "user-9", false)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/caregiver-matches", "user-1",
			`{"patientId": "user-9"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		matcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("outsider", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Config, deps *Deps) { deps.Matcher = &mockMatcher{} })
		env.expectMember("group-1", "user-9", false)

		rec := env.do(t, http.MethodPost, "/api/care-groups/group-1/caregiver-matches", "user-9",
			`{"careNeeds": {"skills": ["dementia_care"]}}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}
