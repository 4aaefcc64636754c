package sim

// Book holds open orders in insertion order so fills replay identically.
type Book struct {
	orders []Order
}

func (b *Book) Add(o Order) { b.orders = append(b.orders, o) }

func (b *Book) Len() int { return len(b.orders) }

// Orders returns a copy of the open orders.
func (b *Book) Orders() []Order {
	out := make([]Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// Remove drops the order with id and reports whether it was present.
func (b *Book) Remove(id string) bool {
	for i, o := range b.orders {
		if o.ID == id {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Drain empties the book and returns what it held.
func (b *Book) Drain() []Order {
	out := b.orders
	b.orders = nil
	return out
}
