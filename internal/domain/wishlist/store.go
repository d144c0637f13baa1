package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 8

// ErrContention is returned when concurrent writers keep invalidating an
// update.
var ErrContention = errors.New("wishlist: too many concurrent updates")

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func Key(userID string) string {
	return "wishlist:" + userID
}

func (s *Store) Load(ctx context.Context, userID string) (*Wishlist, error) {
	return load(ctx, s.rdb, userID)
}

func load(ctx context.Context, rdb redis.Cmdable, userID string) (*Wishlist, error) {
	val, err := rdb.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}

	w := New(userID)
	if err := json.Unmarshal(val, w); err != nil {
		return nil, fmt.Errorf("decode wishlist: %w", err)
	}
	w.UserID = userID
	if w.Entries == nil {
		w.Entries = []Entry{}
	}
	w.dedupe()
	return w, nil
}

func (s *Store) Save(ctx context.Context, w *Wishlist) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wishlist: %w", err)
	}
	return s.rdb.Set(ctx, Key(w.UserID), data, 0).Err()
}

// Update applies fn under WATCH, retrying when another writer got there
// first. fn may run more than once.
func (s *Store) Update(ctx context.Context, userID string, fn func(*Wishlist)) (*Wishlist, error) {
	key := Key(userID)
	var updated *Wishlist

	txf := func(tx *redis.Tx) error {
		w, err := load(ctx, tx, userID)
		if err != nil {
			return err
		}
		fn(w)
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("encode wishlist: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = w
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
