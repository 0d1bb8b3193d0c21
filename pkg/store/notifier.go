package store

import (
	"context"
	"sync"
)

// Notifier fans reload events out to subscribers in subscription order.
// The zero value is ready to use.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// OnReload subscribes fn and returns a function that removes it.
func (n *Notifier) OnReload(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Watch returns a channel that receives reload events until ctx is done.
// Events that arrive while the previous one is still unread are dropped, so
// a slow reader only ever sees the latest pending tree.
func (n *Notifier) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 1)
	var mu sync.Mutex
	closed := false

	cancel := n.OnReload(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			// replace the stale event with the newer one
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	})

	go func() {
		<-ctx.Done()
		cancel()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

// Emit delivers ev to every current subscriber on the calling goroutine.
func (n *Notifier) Emit(ev Event) {
	n.mu.Lock()
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
