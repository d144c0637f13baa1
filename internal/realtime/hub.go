// Package realtime tracks who is online in a care group and fans group
// events out over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"carehub/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultPresenceTTL = 60 * time.Second

// Event types published to group channels.
const (
	EventMessageCreated = "message.created"
	EventTaskCreated    = "task.created"
	EventTaskCompleted  = "task.completed"
	EventMemberJoined   = "member.joined"
	EventPresence       = "presence.changed"
	EventNotification   = "notification"
	EventClaimSubmitted = "claim.submitted"
	EventWellnessLogged = "wellness.logged"
)

type Event struct {
	Type    string          `json:"type"`
	GroupID string          `json:"careGroupId"`
	ActorID string          `json:"actorId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent marshals payload into an event stamped with the current time.
func NewEvent(eventType, groupID, actorID string, payload interface{}) (Event, error) {
	e := Event{Type: eventType, GroupID: groupID, ActorID: actorID, At: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode event payload: %w", err)
		}
		e.Payload = data
	}
	return e, nil
}

type Hub struct {
	rdb         *redis.Client
	presenceTTL time.Duration
	logger      logger.Logger
}

func NewHub(rdb *redis.Client, presenceTTL time.Duration, log logger.Logger) *Hub {
	if presenceTTL <= 0 {
		presenceTTL = DefaultPresenceTTL
	}
	return &Hub{rdb: rdb, presenceTTL: presenceTTL, logger: log}
}

func presenceKey(groupID, userID string) string {
	return "presence:" + groupID + ":" + userID
}

func channel(groupID string) string {
	return "group:" + groupID
}

// Heartbeat marks the user online for one presence TTL.
func (h *Hub) Heartbeat(ctx context.Context, groupID, userID string) error {
	return h.rdb.Set(ctx, presenceKey(groupID, userID), time.Now().UTC().Unix(), h.presenceTTL).Err()
}

func (h *Hub) Leave(ctx context.Context, groupID, userID string) error {
	return h.rdb.Del(ctx, presenceKey(groupID, userID)).Err()
}

// Online lists users with a live presence key, sorted.
func (h *Hub) Online(ctx context.Context, groupID string) ([]string, error) {
	prefix := presenceKey(groupID, "")
	users := []string{}

	iter := h.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		users = append(users, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence: %w", err)
	}
	return sortedUnique(users), nil
}

// sortedUnique sorts ids in place and drops repeats; SCAN may return a key
// more than once.
func sortedUnique(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (h *Hub) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, channel(e.GroupID), data).Err()
}

// Subscribe returns the group's event stream. The channel is closed and the
// Redis subscription released once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, groupID string) (<-chan Event, error) {
	ps := h.rdb.Subscribe(ctx, channel(groupID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", groupID, err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					h.logger.Warn("dropping malformed event", map[string]interface{}{
						"careGroupId": groupID,
						"error":       err,
					})
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
