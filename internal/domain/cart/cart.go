// Package cart holds the shopping cart state and its Redis persistence.
package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidItem  = errors.New("cart: invalid item")
	ErrItemNotFound = errors.New("cart: item not found")
)

type Item struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Items: []Item{}}
}

// Add merges item into the cart. A line for an existing product has its
// quantity increased; new products are appended so line order is stable.
func (c *Cart) Add(item Item) error {
	if item.ProductID == "" || item.PriceCents < 0 {
		return ErrInvalidItem
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	if i := c.index(item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	c.touch()
	return nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(productID string, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		c.removeAt(i)
	} else {
		c.Items[i].Quantity = qty
	}
	c.touch()
	return nil
}

func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.removeAt(i)
		c.touch()
	}
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.touch()
}

// Total is the sum of price times quantity over all lines, in cents.
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

// Count is the number of units, not lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) index(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
