package flow

import (
	"context"
	"sync"
	"time"
)

// ActionEvent is published after an executor completes successfully. Callers
// typically refresh the item from the backend and rebuild its workflow.
type ActionEvent[S, I comparable] struct {
	ItemID   string
	Role     string
	ActionID string
	State    S
	Type     I
	At       time.Time
}

// Listener receives dispatch events. It runs on the dispatching goroutine.
type Listener[S, I comparable] func(ctx context.Context, evt ActionEvent[S, I])

// Subscription detaches a listener.
type Subscription interface {
	Unsubscribe()
}

type listeners[S, I comparable] struct {
	mu    sync.RWMutex
	next  int
	items map[int]Listener[S, I]
	order []int
}

func (l *listeners[S, I]) add(fn Listener[S, I]) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.items == nil {
		l.items = make(map[int]Listener[S, I])
	}
	id := l.next
	l.next++
	l.items[id] = fn
	l.order = append(l.order, id)
	return &subscription[S, I]{owner: l, id: id}
}

func (l *listeners[S, I]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[id]; !ok {
		return
	}
	delete(l.items, id)
	kept := l.order[:0]
	for _, existing := range l.order {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	l.order = kept
}

func (l *listeners[S, I]) publish(ctx context.Context, evt ActionEvent[S, I]) {
	l.mu.RLock()
	fns := make([]Listener[S, I], 0, len(l.order))
	for _, id := range l.order {
		fns = append(fns, l.items[id])
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, evt)
	}
}

type subscription[S, I comparable] struct {
	owner *listeners[S, I]
	id    int
	once  sync.Once
}

func (s *subscription[S, I]) Unsubscribe() {
	s.once.Do(func() { s.owner.remove(s.id) })
}
