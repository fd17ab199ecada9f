// Package observe provides an ordered, synchronous observer list.
//
// A Feed delivers each value to its subscribers in subscription order on the
// caller's goroutine. Feeds are not safe for concurrent use; owners serialize
// access the same way they serialize the state they publish.
package observe

// Feed is an observer list for values of type T.
type Feed[T any] struct {
	nextID   int
	handlers []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, subscription[T]{id: id, fn: fn})
	return func() {
		for i, h := range f.handlers {
			if h.id == id {
				f.handlers = append(f.handlers[:i:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to every subscriber in subscription order.
func (f *Feed[T]) Emit(v T) {
	// Snapshot so a handler that unsubscribes does not skip its neighbour.
	handlers := append([]subscription[T](nil), f.handlers...)
	for _, h := range handlers {
		h.fn(v)
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	return len(f.handlers)
}
