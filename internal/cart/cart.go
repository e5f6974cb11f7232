// Package cart holds the shopping cart reducer and its per-user persistence.
//
// Cart operations are pure state transitions over an insertion-ordered list of
// line items keyed by product id. Prices are kobo.
package cart

import "errors"

// ErrExceedsStock is returned when a quantity is set above the known stock ceiling.
var ErrExceedsStock = errors.New("cart: quantity exceeds available stock")

// Item is one cart line. ID is the product id.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"quantity"`
	Stock    *int   `json:"stock,omitempty"`
}

// Cart is an insertion-ordered collection of line items, at most one per product id.
type Cart struct {
	Items []Item `json:"items"`
}

// Add inserts item with quantity 1 when its id is absent. Adding an id already
// present is a no-op; quantities only grow through UpdateQuantity.
// It reports whether the cart changed.
func (c *Cart) Add(item Item) bool {
	if c.Contains(item.ID) {
		return false
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
	return true
}

// UpdateQuantity sets the quantity of id. A quantity <= 0 removes the line.
// A quantity above a known stock ceiling returns ErrExceedsStock and leaves the
// cart unchanged. Updating an absent id is a no-op.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	i := c.index(id)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		c.removeAt(i)
		return nil
	}
	if s := c.Items[i].Stock; s != nil && quantity > *s {
		return ErrExceedsStock
	}
	c.Items[i].Quantity = quantity
	return nil
}

// SetStock refreshes the stock ceiling of the line for id.
func (c *Cart) SetStock(id string, stock int) {
	if i := c.index(id); i >= 0 {
		c.Items[i].Stock = &stock
	}
}

// Remove deletes the line for id if present.
func (c *Cart) Remove(id string) {
	if i := c.index(id); i >= 0 {
		c.removeAt(i)
	}
}

// Contains reports whether a line exists for id.
func (c *Cart) Contains(id string) bool {
	return c.index(id) >= 0
}

// Get returns the line for id.
func (c *Cart) Get(id string) (Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// TotalItems is the sum of all quantities.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// TotalPrice is the sum of price*quantity over all lines, in kobo.
func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.Items)
}

func (c *Cart) index(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}
