package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 30 * 24 * time.Hour

	maxUpdateAttempts = 8
)

// ErrContention is returned when concurrent writers keep invalidating an
// update.
var ErrContention = errors.New("cart: too many concurrent updates")

// Store persists carts as JSON under cart:<userID>.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func Key(userID string) string {
	return "cart:" + userID
}

// Load returns an empty cart when nothing is stored for the user.
func (s *Store) Load(ctx context.Context, userID string) (*Cart, error) {
	return load(ctx, s.rdb, userID)
}

func load(ctx context.Context, rdb redis.Cmdable, userID string) (*Cart, error) {
	val, err := rdb.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	c := New(userID)
	if err := json.Unmarshal(val, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.UserID = userID
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

func (s *Store) Save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.rdb.Set(ctx, Key(c.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, Key(userID)).Err()
}

// Update loads the cart, applies fn and saves the result. The key is watched
// so a concurrent write makes the update start over; fn may run more than
// once.
func (s *Store) Update(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	key := Key(userID)
	var updated *Cart

	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrContention
}
