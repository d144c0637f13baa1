package api

import (
	"context"
	"net/http"
	"unicode/utf8"

	"carehub/internal/common/errors"
	"carehub/internal/store"
	mc "carehub/internal/workers/care/match-caregivers"
	sn "carehub/internal/workers/communication/send-notification"

	"golang.org/x/sync/errgroup"
)

const (
	previewChars     = 80
	notifyFanout     = 4
	fallbackSender   = "A care team member"
	dueDateLayout    = "Mon Jan 2"
	maxMatchesPerRun = 25
)

// NotificationSender delivers one notification. The send-notification
// handler satisfies it.
type NotificationSender interface {
	Execute(ctx context.Context, input *sn.Input) (*sn.Output, error)
}

type CaregiverMatcher interface {
	Execute(ctx context.Context, input *mc.Input) (*mc.Output, error)
}

// notify is best effort: a failed notification never fails the request.
func (s *Server) notify(ctx context.Context, input *sn.Input) {
	if s.Notifications == nil {
		return
	}
	if _, err := s.Notifications.Execute(ctx, input); err != nil {
		s.logger.Warn("notification failed", map[string]interface{}{
			"recipientId":      input.RecipientID,
			"notificationType": input.NotificationType,
			"error":            err,
		})
	}
}

func displayName(members []store.Member, userID string) string {
	for _, m := range members {
		if m.UserID == userID && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	return fallbackSender
}

// notifyTaskAssigned tells the assignee about a task someone else gave them.
func (s *Server) notifyTaskAssigned(ctx context.Context, t *store.Task) {
	if s.Notifications == nil || t.AssigneeID == "" || t.AssigneeID == t.CreatedBy {
		return
	}
	members, err := s.Store.CareGroups.Members(ctx, t.GroupID)
	if err != nil {
		s.logger.Warn("task notification skipped", map[string]interface{}{
			"taskId": t.ID,
			"error":  err,
		})
		return
	}

	metadata := map[string]interface{}{
		"taskId":     t.ID,
		"taskTitle":  t.Title,
		"assignedBy": displayName(members, t.CreatedBy),
	}
	if t.DueAt != nil {
		metadata["dueDate"] = t.DueAt.Format(dueDateLayout)
	}
	s.notify(ctx, &sn.Input{
		RecipientID:      t.AssigneeID,
		CareGroupID:      t.GroupID,
		NotificationType: sn.TypeTaskAssigned,
		Priority:         sn.PriorityNormal,
		Metadata:         metadata,
	})
}

// notifyNewMessage fans a message out to every other group member.
func (s *Server) notifyNewMessage(ctx context.Context, m *store.Message) {
	if s.Notifications == nil {
		return
	}
	group, err := s.Store.CareGroups.Get(ctx, m.GroupID)
	if err != nil {
		s.logger.Warn("message notification skipped", map[string]interface{}{
			"messageId": m.ID,
			"error":     err,
		})
		return
	}
	members, err := s.Store.CareGroups.Members(ctx, m.GroupID)
	if err != nil {
		s.logger.Warn("message notification skipped", map[string]interface{}{
			"messageId": m.ID,
			"error":     err,
		})
		return
	}

	sender := displayName(members, m.SenderID)
	preview := truncate(m.Body, previewChars)

	var g errgroup.Group
	g.SetLimit(notifyFanout)
	for _, member := range members {
		if member.UserID == m.SenderID {
			continue
		}
		recipient := member.UserID
		g.Go(func() error {
			s.notify(ctx, &sn.Input{
				RecipientID:      recipient,
				CareGroupID:      m.GroupID,
				NotificationType: sn.TypeNewMessage,
				Priority:         sn.PriorityLow,
				Metadata: map[string]interface{}{
					"messageId":  m.ID,
					"groupName":  group.Name,
					"senderName": sender,
					"preview":    preview,
				},
			})
			return nil
		})
	}
	_ = g.Wait()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// matchCaregivers ranks caregivers for a group's care needs. The caller must
// belong to the group, and so must the patient when one is named.
func (s *Server) matchCaregivers(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	var input mc.Input
	if _, ok := s.decode(w, r, "", &input); !ok {
		return
	}
	if input.Limit < 0 || input.Limit > maxMatchesPerRun {
		s.writeError(w, r, errors.NewInvalidInputError("limit must be between 0 and 25"))
		return
	}
	if input.Needs == nil && input.PatientID == "" {
		s.writeError(w, r, errors.NewInvalidInputError("careNeeds or patientId is required"))
		return
	}

	ctx := r.Context()
	if input.PatientID != "" {
		ok, err := s.Store.CareGroups.IsMember(ctx, groupID, input.PatientID)
		if err != nil {
			s.writeError(w, r, storeError(err, "care_group_members", input.PatientID))
			return
		}
		if !ok {
			s.writeError(w, r, errors.NewInvalidInputError("patient is not a member of this care group"))
			return
		}
	}
	input.CareGroupID = groupID

	out, err := s.Matcher.Execute(ctx, &input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	metadata := map[string]interface{}{"matchCount": len(out.Matches)}
	if len(out.Matches) > 0 {
		metadata["topCaregiver"] = out.Matches[0].Name
	}
	s.notify(ctx, &sn.Input{
		RecipientID:      UserID(ctx),
		CareGroupID:      groupID,
		NotificationType: sn.TypeCaregiverMatched,
		Priority:         sn.PriorityNormal,
		Metadata:         metadata,
	})
	writeJSON(w, http.StatusOK, out)
}
