package planner

// deque is a bounded double-ended queue. Pushing onto a full deque evicts
// from the opposite end, so the newest elements always win. All three
// planner queues (waypoint queue, lookahead buffer, local target queue) are
// built on it.
type deque[T any] struct {
	elems    []T
	capacity int
}

func newDeque[T any](capacity int) *deque[T] {
	return &deque[T]{elems: make([]T, 0, capacity), capacity: capacity}
}

// PushBack appends an element, evicting the front element if full.
func (d *deque[T]) PushBack(v T) {
	if len(d.elems) == d.capacity {
		d.elems = d.elems[1:]
	}
	d.elems = append(d.elems, v)
}

// PushFront prepends an element, evicting the back element if full.
func (d *deque[T]) PushFront(v T) {
	if len(d.elems) == d.capacity {
		d.elems = d.elems[:len(d.elems)-1]
	}
	d.elems = append([]T{v}, d.elems...)
}

// PopFront removes and returns the front element.
func (d *deque[T]) PopFront() (T, bool) {
	var zero T
	if len(d.elems) == 0 {
		return zero, false
	}
	v := d.elems[0]
	d.elems[0] = zero
	d.elems = d.elems[1:]
	return v, true
}

// Front returns the front element without removing it.
func (d *deque[T]) Front() (T, bool) {
	if len(d.elems) == 0 {
		var zero T
		return zero, false
	}
	return d.elems[0], true
}

// Back returns the back element without removing it.
func (d *deque[T]) Back() (T, bool) {
	if len(d.elems) == 0 {
		var zero T
		return zero, false
	}
	return d.elems[len(d.elems)-1], true
}

// At returns the element at index i from the front.
func (d *deque[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(d.elems) {
		var zero T
		return zero, false
	}
	return d.elems[i], true
}

func (d *deque[T]) Len() int {
	return len(d.elems)
}

func (d *deque[T]) Clear() {
	d.elems = d.elems[:0]
}
