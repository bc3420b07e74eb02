package engine

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

// EventHandler receives engine events. Delivery is synchronous and at most
// once; a handler registered after an event fired never sees it.
type EventHandler func(evt domain.WorkflowEvent)

type subscription struct {
	id      int
	handler EventHandler
}

// eventBus is a minimal in-process pub/sub keyed by event type. Handlers run
// in registration order and each handler's panic is isolated so one bad
// listener cannot block the others or the engine.
type eventBus struct {
	mu   sync.RWMutex
	next int
	subs map[domain.EventType][]subscription
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[domain.EventType][]subscription)}
}

func (b *eventBus) on(t domain.EventType, h EventHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[t] = append(b.subs[t], subscription{id: b.next, handler: h})
	return b.next
}

func (b *eventBus) off(t domain.EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = slices.DeleteFunc(slices.Clone(b.subs[t]), func(s subscription) bool {
		return s.id == id
	})
}

func (b *eventBus) emit(evt domain.WorkflowEvent) {
	b.mu.RLock()
	handlers := b.subs[evt.Type]
	b.mu.RUnlock()

	for _, s := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event handler panicked", "event", evt.Type, "workflow_id", evt.InstanceID, "panic", r)
				}
			}()
			s.handler(evt)
		}()
	}
}
