// Package eventbus is the page-level bus that lifecycle signals travel on.
package eventbus

import "sync"

const (
	PageLoadingStart = "phx:page-loading-start"
	PageLoadingStop  = "phx:page-loading-stop"
)

// Detail kinds carried by page-loading signals.
const (
	KindInitial  = "initial"
	KindRedirect = "redirect"
	KindPatch    = "patch"
	KindError    = "error"
)

type Detail struct {
	Kind string `json:"kind,omitempty"`
	To   string `json:"to,omitempty"`
}

type Event struct {
	Name   string
	Detail Detail
}

type listener struct {
	id uint64
	fn func(Event)
}

// Bus delivers events synchronously, in registration order, on the
// dispatching goroutine.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listener
}

func New() *Bus {
	return &Bus{listeners: make(map[string][]listener)}
}

func (b *Bus) On(name string, fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], listener{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			current := b.listeners[name]
			for i, l := range current {
				if l.id == id {
					b.listeners[name] = append(current[:i:i], current[i+1:]...)
					break
				}
			}
			if len(b.listeners[name]) == 0 {
				delete(b.listeners, name)
			}
		})
	}
}

// Dispatch calls every listener registered for name and reports how many
// were called. Listeners may subscribe or unsubscribe while being called.
func (b *Bus) Dispatch(name string, detail Detail) int {
	b.mu.Lock()
	snapshot := append([]listener(nil), b.listeners[name]...)
	b.mu.Unlock()

	event := Event{Name: name, Detail: detail}
	for _, l := range snapshot {
		l.fn(event)
	}
	return len(snapshot)
}

func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[name])
}
