package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/pkg/money"
)

const (
	ItemProduct = "product"
	ItemService = "service"
)

var validItemTypes = map[string]bool{
	ItemProduct: true,
	ItemService: true,
}

type Item struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Type     string  `json:"type"`
	Category string  `json:"category,omitempty"`
}

// Cart is the per-user basket. TotalAmount always equals the sum of
// price*quantity over Items; every mutator recomputes it.
type Cart struct {
	UserID      uuid.UUID `json:"user_id"`
	Items       []Item    `json:"items"`
	TotalAmount float64   `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Cart) index(itemID string) int {
	for i, it := range c.Items {
		if it.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Add appends item with qty, or increases the quantity when the item is
// already present.
func (c *Cart) Add(item Item, qty int) {
	if i := c.index(item.ItemID); i >= 0 {
		c.Items[i].Quantity += qty
	} else {
		item.Quantity = qty
		c.Items = append(c.Items, item)
	}
	c.recompute()
}

// Remove drops itemID. It reports whether the item was present.
func (c *Cart) Remove(itemID string) bool {
	i := c.index(itemID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.recompute()
	return true
}

// SetQuantity sets the quantity of itemID; qty <= 0 removes it.
func (c *Cart) SetQuantity(itemID string, qty int) bool {
	if qty <= 0 {
		return c.Remove(itemID)
	}
	i := c.index(itemID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = qty
	c.recompute()
	return true
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.recompute()
}

func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return money.Round2(total)
}

func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) recompute() {
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.TotalAmount = c.Total()
	c.ItemCount = c.Count()
}
