// Package cart holds the variant-aware shopping cart ledger and its
// synchronization with the remote cart store.
package cart

import (
	"sync"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// Notifier receives toast side effects emitted by cart mutations.
type Notifier interface {
	Toast(message, kind string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message, kind string)

// Toast implements Notifier.
func (f NotifierFunc) Toast(message, kind string) { f(message, kind) }

// Cart is the quantity ledger, keyed per product variant. Count and Total
// are always folds over the current lines; nothing is cached.
type Cart struct {
	mu       sync.Mutex
	lines    []models.CartLine
	notifier Notifier
	onChange func()
}

// New returns an empty cart. The notifier may be nil.
func New(notifier Notifier) *Cart {
	return &Cart{notifier: notifier}
}

// SetOnChange registers a hook invoked after every mutation. Used to trigger
// the debounced remote sync.
func (c *Cart) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// UpdateQuantity upserts the line for the product's variant. A quantity of
// zero or less removes the line. The first time a variant appears, an
// "added" toast is emitted.
func (c *Cart) UpdateQuantity(p models.Product, qty int) {
	key := p.VariantKey()

	c.mu.Lock()
	var changed bool
	idx := -1
	for i, l := range c.lines {
		if l.Product.VariantKey() == key {
			idx = i
			break
		}
	}

	switch {
	case qty <= 0:
		if idx >= 0 {
			c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
			changed = true
		}
	case idx >= 0:
		if c.lines[idx].Quantity != qty {
			c.lines[idx].Quantity = qty
			changed = true
		}
	default:
		c.lines = append(c.lines, models.CartLine{Product: p, Quantity: qty})
		changed = true
		if c.notifier != nil {
			c.notifier.Toast("Added "+p.Name, "success")
		}
	}
	hook := c.onChange
	c.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
}

// Quantity returns the current quantity for the product's variant, zero if
// the variant is not in the cart.
func (c *Cart) Quantity(p models.Product) int {
	key := p.VariantKey()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.Product.VariantKey() == key {
			return l.Quantity
		}
	}
	return 0
}

// Lines returns a copy of the current cart lines in insertion order.
func (c *Cart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct variant lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Count is the total item count across all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Total is the cart total in whole currency units.
func (c *Cart) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0
	for _, l := range c.lines {
		sum += l.Subtotal()
	}
	return sum
}

// Clear removes every line. Used after a successful order.
func (c *Cart) Clear() {
	c.mu.Lock()
	changed := len(c.lines) > 0
	c.lines = nil
	hook := c.onChange
	c.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
}

// replace swaps in lines loaded from the remote store without firing the
// change hook (hydration must not immediately write back).
func (c *Cart) replace(lines []models.CartLine) {
	c.mu.Lock()
	c.lines = make([]models.CartLine, len(lines))
	copy(c.lines, lines)
	c.mu.Unlock()
}
