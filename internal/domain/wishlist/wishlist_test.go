package wishlist

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist_NeverDuplicates(t *testing.T) {
	w := New("u-1")
	ops := []string{"a", "b", "a", "c", "b", "a"}
	for _, id := range ops {
		w.Add(Entry{ProductID: id})
	}

	assert.Equal(t, []string{"a", "b", "c"}, w.IDs())
}

func TestWishlist_AddReportsChange(t *testing.T) {
	w := New("u-1")
	assert.True(t, w.Add(Entry{ProductID: "a"}))
	assert.False(t, w.Add(Entry{ProductID: "a"}))
	assert.False(t, w.Add(Entry{}))
	assert.False(t, w.Entries[0].AddedAt.IsZero())
}

func TestWishlist_Toggle(t *testing.T) {
	w := New("u-1")
	assert.True(t, w.Toggle(Entry{ProductID: "a"}))
	assert.True(t, w.Contains("a"))
	assert.False(t, w.Toggle(Entry{ProductID: "a"}))
	assert.False(t, w.Contains("a"))
}

func TestWishlist_Remove(t *testing.T) {
	w := New("u-1")
	w.Add(Entry{ProductID: "a"})
	assert.True(t, w.Remove("a"))
	assert.False(t, w.Remove("a"))
	assert.Empty(t, w.IDs())
}

func TestStore_LoadDedupesStoredList(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	require.NoError(t, mr.Set("wishlist:u-1",
		`{"entries":[{"productId":"a","name":"first"},{"productId":"b"},{"productId":"a","name":"second"}]}`))

	s := NewStore(rdb)
	w, err := s.Load(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, w.IDs())
	assert.Equal(t, "first", w.Entries[0].Name)
	assert.Equal(t, "u-1", w.UserID)
}

func TestStore_UpdatePersists(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewStore(rdb)
	ctx := context.Background()

	_, err := s.Update(ctx, "u-1", func(w *Wishlist) { w.Toggle(Entry{ProductID: "p9"}) })
	require.NoError(t, err)

	w, err := s.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, w.Contains("p9"))
}

func TestStore_UpdateKeepsConcurrentToggle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewStore(rdb)
	ctx := context.Background()

	attempts := 0
	_, err := s.Update(ctx, "u-1", func(w *Wishlist) {
		attempts++
		if attempts == 1 {
			_, err := s.Update(ctx, "u-1", func(other *Wishlist) { other.Add(Entry{ProductID: "p1"}) })
			require.NoError(t, err)
		}
		w.Add(Entry{ProductID: "p2"})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	w, err := s.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, w.IDs())
}
