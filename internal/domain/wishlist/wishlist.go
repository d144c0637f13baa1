// Package wishlist keeps a per-user, duplicate-free list of saved products.
package wishlist

import "time"

type Entry struct {
	ProductID  string    `json:"productId"`
	Name       string    `json:"name,omitempty"`
	PriceCents int64     `json:"priceCents,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}

type Wishlist struct {
	UserID  string  `json:"userId"`
	Entries []Entry `json:"entries"`
}

func New(userID string) *Wishlist {
	return &Wishlist{UserID: userID, Entries: []Entry{}}
}

// Add appends e unless the product is already listed. It reports whether
// the list changed.
func (w *Wishlist) Add(e Entry) bool {
	if e.ProductID == "" || w.Contains(e.ProductID) {
		return false
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	w.Entries = append(w.Entries, e)
	return true
}

func (w *Wishlist) Remove(productID string) bool {
	for i, e := range w.Entries {
		if e.ProductID == productID {
			w.Entries = append(w.Entries[:i], w.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func (w *Wishlist) Contains(productID string) bool {
	for _, e := range w.Entries {
		if e.ProductID == productID {
			return true
		}
	}
	return false
}

// Toggle adds or removes the product and returns the new membership.
func (w *Wishlist) Toggle(e Entry) bool {
	if w.Remove(e.ProductID) {
		return false
	}
	return w.Add(e)
}

func (w *Wishlist) IDs() []string {
	ids := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		ids = append(ids, e.ProductID)
	}
	return ids
}

// dedupe drops repeated product ids, keeping the first occurrence.
func (w *Wishlist) dedupe() {
	seen := make(map[string]struct{}, len(w.Entries))
	out := w.Entries[:0]
	for _, e := range w.Entries {
		if e.ProductID == "" {
			continue
		}
		if _, ok := seen[e.ProductID]; ok {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e)
	}
	w.Entries = out
}
