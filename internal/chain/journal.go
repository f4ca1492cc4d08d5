package chain

// Map is a key/value store whose writes are undone when the enclosing
// Atomic call fails. Stored values must be treated as immutable.
type Map[K comparable, V any] struct {
	ledger *Ledger
	items  map[K]V
}

// NewMap creates an empty journaled map bound to l.
func NewMap[K comparable, V any](l *Ledger) *Map[K, V] {
	return &Map[K, V]{ledger: l, items: make(map[K]V)}
}

// Get returns the stored value or the zero value of V.
func (m *Map[K, V]) Get(key K) V {
	return m.items[key]
}

// Lookup returns the stored value and whether the key is present.
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

func (m *Map[K, V]) Set(key K, value V) {
	prev, existed := m.items[key]
	m.items[key] = value
	m.ledger.record(func() {
		if existed {
			m.items[key] = prev
			return
		}
		delete(m.items, key)
	})
}

func (m *Map[K, V]) Delete(key K) {
	prev, existed := m.items[key]
	if !existed {
		return
	}
	delete(m.items, key)
	m.ledger.record(func() {
		m.items[key] = prev
	})
}

func (m *Map[K, V]) Len() int {
	return len(m.items)
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for k, v := range m.items {
		if !fn(k, v) {
			return
		}
	}
}

// Value is a single journaled cell.
type Value[T any] struct {
	ledger *Ledger
	v      T
}

func NewValue[T any](l *Ledger, initial T) *Value[T] {
	return &Value[T]{ledger: l, v: initial}
}

func (c *Value[T]) Get() T {
	return c.v
}

func (c *Value[T]) Set(v T) {
	prev := c.v
	c.v = v
	c.ledger.record(func() {
		c.v = prev
	})
}

// List is an append-only journaled sequence.
type List[T any] struct {
	ledger *Ledger
	items  []T
}

func NewList[T any](l *Ledger) *List[T] {
	return &List[T]{ledger: l}
}

func (s *List[T]) Append(v T) {
	n := len(s.items)
	s.items = append(s.items, v)
	s.ledger.record(func() {
		var zero T
		s.items[n] = zero
		s.items = s.items[:n]
	})
}

func (s *List[T]) Len() int {
	return len(s.items)
}

func (s *List[T]) At(i int) T {
	return s.items[i]
}

// All returns a copy of the list.
func (s *List[T]) All() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
