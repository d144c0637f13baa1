package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/validation"
	"carehub/internal/realtime"
	"carehub/internal/store"

	"golang.org/x/sync/errgroup"
)

const (
	overviewMessages = 20
	maxMessageChars  = 4000
	maxGroupName     = 120
)

func (s *Server) listCareGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Store.CareGroups.ListForUser(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, storeError(err, "care_groups", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"careGroups": groups})
}

func (s *Server) createCareGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if _, ok := s.decode(w, r, "", &req); !ok {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxGroupName {
		s.writeError(w, r, errors.NewInvalidInputError("name is required and at most 120 characters"))
		return
	}

	g, err := s.Store.CareGroups.Create(r.Context(), req.Name, UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, errors.NewDatabaseInsertFailedError(err))
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// addMember is limited to the group's coordinators.
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	role, err := s.Store.CareGroups.Role(r.Context(), groupID, UserID(r.Context()))
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		s.writeError(w, r, errors.NewForbiddenError("not a member of this care group"))
		return
	case err != nil:
		s.writeError(w, r, errors.NewQueryExecutionFailedError("care_group_membership", err))
		return
	case role != store.RoleCoordinator:
		s.writeError(w, r, errors.NewForbiddenError("only coordinators can add members"))
		return
	}

	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if _, ok := s.decode(w, r, "", &req); !ok {
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, errors.NewInvalidInputError("userId is required"))
		return
	}

	ctx := r.Context()
	m, err := s.Store.CareGroups.AddMember(ctx, groupID, req.UserID, req.Role)
	if err != nil {
		s.writeError(w, r, storeError(err, "care_group_members", req.UserID))
		return
	}
	s.publish(ctx, realtime.EventMemberJoined, groupID, m)
	writeJSON(w, http.StatusCreated, m)
}

type overviewResponse struct {
	CareGroupID    string          `json:"careGroupId"`
	Members        []store.Member  `json:"members"`
	OpenTasks      []store.Task    `json:"openTasks"`
	RecentMessages []store.Message `json:"recentMessages"`
	Online         []string        `json:"online"`
}

// overview loads the group dashboard concurrently. Presence is best effort;
// any database failure fails the request.
func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	resp := overviewResponse{CareGroupID: groupID, Online: []string{}}
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		members, err := s.Store.CareGroups.Members(ctx, groupID)
		resp.Members = members
		return err
	})
	g.Go(func() error {
		tasks, err := s.Store.Tasks.ListByGroup(ctx, groupID, store.TaskOpen)
		resp.OpenTasks = tasks
		return err
	})
	g.Go(func() error {
		msgs, err := s.Store.Messages.ListByGroup(ctx, groupID, overviewMessages, time.Time{})
		resp.RecentMessages = msgs
		return err
	})
	g.Go(func() error {
		online, err := s.Hub.Online(ctx, groupID)
		if err != nil {
			s.logger.Warn("presence lookup failed", map[string]interface{}{
				"careGroupId": groupID,
				"error":       err,
			})
			return nil
		}
		resp.Online = online
		return nil
	})

	if err := g.Wait(); err != nil {
		s.writeError(w, r, errors.NewQueryExecutionFailedError("care_group_overview", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && status != store.TaskOpen && status != store.TaskDone {
		s.writeError(w, r, errors.NewInvalidInputError("status must be open or done"))
		return
	}

	tasks, err := s.Store.Tasks.ListByGroup(r.Context(), groupID, status)
	if err != nil {
		s.writeError(w, r, storeError(err, "care_tasks", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		AssigneeID  string     `json:"assigneeId"`
		DueAt       *time.Time `json:"dueAt"`
	}
	if _, ok := s.decode(w, r, validation.SchemaCareTask, &req); !ok {
		return
	}

	ctx := r.Context()
	if req.AssigneeID != "" {
		ok, err := s.Store.CareGroups.IsMember(ctx, groupID, req.AssigneeID)
		if err != nil {
			s.writeError(w, r, storeError(err, "care_group_members", req.AssigneeID))
			return
		}
		if !ok {
			s.writeError(w, r, errors.NewInvalidInputError("assignee is not a member of this care group"))
			return
		}
	}

	t, err := s.Store.Tasks.Create(ctx, store.Task{
		GroupID:     groupID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueAt:       req.DueAt,
		CreatedBy:   UserID(ctx),
	})
	if err != nil {
		s.writeError(w, r, errors.NewDatabaseInsertFailedError(err))
		return
	}
	s.publish(ctx, realtime.EventTaskCreated, groupID, t)
	s.notifyTaskAssigned(ctx, t)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	ctx := r.Context()
	taskID := r.PathValue("taskId")
	if err := s.Store.Tasks.Complete(ctx, groupID, taskID, UserID(ctx)); err != nil {
		s.writeError(w, r, storeError(err, "care_tasks", taskID))
		return
	}
	s.publish(ctx, realtime.EventTaskCompleted, groupID, map[string]string{"taskId": taskID})
	writeJSON(w, http.StatusOK, map[string]string{"taskId": taskID, "status": store.TaskDone})
}

// listMessages pages backwards with ?before=<RFC3339>&limit=<n>.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, errors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = n
	}
	var before time.Time
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidInputError("before must be an RFC 3339 timestamp"))
			return
		}
		before = t
	}

	msgs, err := s.Store.Messages.ListByGroup(r.Context(), groupID, limit, before)
	if err != nil {
		s.writeError(w, r, storeError(err, "messages", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if _, ok := s.decode(w, r, "", &req); !ok {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" || len(body) > maxMessageChars {
		s.writeError(w, r, errors.NewInvalidInputError("body is required and at most 4000 characters"))
		return
	}

	ctx := r.Context()
	m, err := s.Store.Messages.Post(ctx, groupID, UserID(ctx), body)
	if err != nil {
		s.writeError(w, r, errors.NewDatabaseInsertFailedError(err))
		return
	}
	s.publish(ctx, realtime.EventMessageCreated, groupID, m)
	s.notifyNewMessage(ctx, m)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	ctx := r.Context()
	if err := s.Hub.Heartbeat(ctx, groupID, UserID(ctx)); err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	online, err := s.Hub.Online(ctx, groupID)
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"online": online})
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}

	ctx := r.Context()
	if err := s.Hub.Leave(ctx, groupID, UserID(ctx)); err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events streams the group's realtime events as server-sent events.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if !s.requireMember(w, r, groupID) {
		return
	}
	s.Hub.ServeSSE(w, r, groupID, UserID(r.Context()), s.config.SSEKeepAlive)
}

// publish fans an event out to the group. Delivery is best effort.
func (s *Server) publish(ctx context.Context, eventType, groupID string, payload interface{}) {
	if s.Hub == nil {
		return
	}
	e, err := realtime.NewEvent(eventType, groupID, UserID(ctx), payload)
	if err == nil {
		err = s.Hub.Publish(ctx, e)
	}
	if err != nil && !stderrors.Is(err, context.Canceled) {
		s.logger.Warn("failed to publish event", map[string]interface{}{
			"type":        eventType,
			"careGroupId": groupID,
			"error":       err,
		})
	}
}
