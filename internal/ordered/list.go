// Package ordered provides an immutable ordered list keyed by stable ids.
// Every mutation returns a new list; the receiver is never modified.
package ordered

import "github.com/rotisserie/eris"

var (
	ErrNotFound  = eris.New("ordered: id not found")
	ErrDuplicate = eris.New("ordered: duplicate id")
)

// List is an ordered sequence of items with unique ids.
type List[K comparable, T any] struct {
	items []T
	key   func(T) K
}

// New builds a list from items. It fails if two items share an id.
func New[K comparable, T any](key func(T) K, items ...T) (List[K, T], error) {
	l := List[K, T]{key: key}
	seen := make(map[K]bool, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			return List[K, T]{}, eris.Wrapf(ErrDuplicate, "id %v", k)
		}
		seen[k] = true
	}
	l.items = append([]T(nil), items...)
	return l, nil
}

func (l List[K, T]) Len() int { return len(l.items) }

// Items returns a copy of the items in order.
func (l List[K, T]) Items() []T { return append([]T(nil), l.items...) }

// IDs returns the ids in order.
func (l List[K, T]) IDs() []K {
	out := make([]K, len(l.items))
	for i, it := range l.items {
		out[i] = l.key(it)
	}
	return out
}

func (l List[K, T]) index(id K) int {
	for i, it := range l.items {
		if l.key(it) == id {
			return i
		}
	}
	return -1
}

// Get returns the item with the given id.
func (l List[K, T]) Get(id K) (T, bool) {
	if i := l.index(id); i >= 0 {
		return l.items[i], true
	}
	var zero T
	return zero, false
}

// Contains reports whether id is present.
func (l List[K, T]) Contains(id K) bool { return l.index(id) >= 0 }

func (l List[K, T]) with(items []T) List[K, T] {
	return List[K, T]{items: items, key: l.key}
}

// Append adds an item at the end.
func (l List[K, T]) Append(it T) (List[K, T], error) {
	if l.Contains(l.key(it)) {
		return l, eris.Wrapf(ErrDuplicate, "id %v", l.key(it))
	}
	items := make([]T, 0, len(l.items)+1)
	items = append(items, l.items...)
	return l.with(append(items, it)), nil
}

// Replace swaps the item sharing its id, keeping its position.
func (l List[K, T]) Replace(it T) (List[K, T], error) {
	i := l.index(l.key(it))
	if i < 0 {
		return l, eris.Wrapf(ErrNotFound, "id %v", l.key(it))
	}
	items := l.Items()
	items[i] = it
	return l.with(items), nil
}

// Remove drops the item with the given id.
func (l List[K, T]) Remove(id K) (List[K, T], error) {
	i := l.index(id)
	if i < 0 {
		return l, eris.Wrapf(ErrNotFound, "id %v", id)
	}
	items := make([]T, 0, len(l.items)-1)
	items = append(items, l.items[:i]...)
	return l.with(append(items, l.items[i+1:]...)), nil
}

// MoveBefore moves id so it directly precedes target.
func (l List[K, T]) MoveBefore(id, target K) (List[K, T], error) {
	from, to := l.index(id), l.index(target)
	if from < 0 {
		return l, eris.Wrapf(ErrNotFound, "id %v", id)
	}
	if to < 0 {
		return l, eris.Wrapf(ErrNotFound, "target %v", target)
	}
	if id == target {
		return l.with(l.Items()), nil
	}
	moving := l.items[from]
	items := make([]T, 0, len(l.items))
	for i, it := range l.items {
		if i == from {
			continue
		}
		if i == to {
			items = append(items, moving)
		}
		items = append(items, it)
	}
	return l.with(items), nil
}

// MoveUp swaps id with its predecessor. The first item stays put.
func (l List[K, T]) MoveUp(id K) (List[K, T], error) {
	return l.swap(id, -1)
}

// MoveDown swaps id with its successor. The last item stays put.
func (l List[K, T]) MoveDown(id K) (List[K, T], error) {
	return l.swap(id, 1)
}

func (l List[K, T]) swap(id K, delta int) (List[K, T], error) {
	i := l.index(id)
	if i < 0 {
		return l, eris.Wrapf(ErrNotFound, "id %v", id)
	}
	items := l.Items()
	j := i + delta
	if j >= 0 && j < len(items) {
		items[i], items[j] = items[j], items[i]
	}
	return l.with(items), nil
}
