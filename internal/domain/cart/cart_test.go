package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddMergesQuantities(t *testing.T) {
	c := New("u-1")
	require.NoError(t, c.Add(Item{ProductID: "p1", PriceCents: 250, Quantity: 2}))
	require.NoError(t, c.Add(Item{ProductID: "p2", PriceCents: 1000}))
	require.NoError(t, c.Add(Item{ProductID: "p1", PriceCents: 250, Quantity: 3}))

	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, 6, c.Count())
}

func TestCart_AddRejectsInvalidItems(t *testing.T) {
	c := New("u-1")
	assert.ErrorIs(t, c.Add(Item{PriceCents: 100}), ErrInvalidItem)
	assert.ErrorIs(t, c.Add(Item{ProductID: "p1", PriceCents: -1}), ErrInvalidItem)
	assert.True(t, c.IsEmpty())
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New("u-1")
	require.NoError(t, c.Add(Item{ProductID: "p1", PriceCents: 100}))
	require.NoError(t, c.Add(Item{ProductID: "p2", PriceCents: 100}))

	require.NoError(t, c.UpdateQuantity("p1", 4))
	assert.Equal(t, 4, c.Items[0].Quantity)

	require.NoError(t, c.UpdateQuantity("p1", 0))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)

	assert.ErrorIs(t, c.UpdateQuantity("missing", 1), ErrItemNotFound)
}

func TestCart_TotalIsSumOfPriceTimesQuantity(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  int64
	}{
		{"empty", nil, 0},
		{"single", []Item{{ProductID: "a", PriceCents: 1999, Quantity: 1}}, 1999},
		{"mixed", []Item{
			{ProductID: "a", PriceCents: 1999, Quantity: 2},
			{ProductID: "b", PriceCents: 350, Quantity: 3},
			{ProductID: "c", PriceCents: 0, Quantity: 5},
		}, 1999*2 + 350*3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("u")
			for _, it := range tt.items {
				require.NoError(t, c.Add(it))
			}
			assert.Equal(t, tt.want, c.Total())
		})
	}
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := New("u")
	require.NoError(t, c.Add(Item{ProductID: "a", PriceCents: 1}))
	require.NoError(t, c.Add(Item{ProductID: "b", PriceCents: 1}))

	c.Remove("a")
	c.Remove("unknown")
	assert.Len(t, c.Items, 1)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.Total())
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestStore_RoundTripWithTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = s.Update(ctx, "u-1", func(c *Cart) error {
		return c.Add(Item{ProductID: "p1", Name: "Pill organizer", PriceCents: 899, Quantity: 2})
	})
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL("cart:u-1"))

	loaded, err := s.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1798), loaded.Total())

	require.NoError(t, s.Delete(ctx, "u-1"))
	assert.False(t, mr.Exists("cart:u-1"))
}

func TestStore_UpdateDoesNotSaveOnError(t *testing.T) {
	s, mr := newTestStore(t)

	_, err := s.Update(context.Background(), "u-2", func(c *Cart) error {
		return c.UpdateQuantity("nope", 1)
	})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.False(t, mr.Exists("cart:u-2"))
}

func TestStore_UpdateRetriesAfterConcurrentWrite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	attempts := 0
	c, err := s.Update(ctx, "u-3", func(c *Cart) error {
		attempts++
		if attempts == 1 {
			// Another request lands between our read and write.
			_, err := s.Update(ctx, "u-3", func(other *Cart) error {
				return other.Add(Item{ProductID: "gloves", PriceCents: 500, Quantity: 1})
			})
			require.NoError(t, err)
		}
		return c.Add(Item{ProductID: "mask", PriceCents: 300, Quantity: 2})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1100), c.Total())

	loaded, err := s.Load(ctx, "u-3")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Count())
	assert.Equal(t, int64(1100), loaded.Total())
}
