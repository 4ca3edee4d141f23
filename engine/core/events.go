package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// A shader binding descriptor was (re)registered.
	/* Context usage:
	 * string shader_name = data.Name;
	 * string file = data.Path;
	 */
	EVENT_CODE_BINDINGS_CHANGED SystemEventCode = 0x02

	// A shader binding descriptor file was removed.
	EVENT_CODE_BINDINGS_REMOVED SystemEventCode = 0x03

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Name string
	Path string
}

type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus can be fired from any goroutine; callbacks run on the firing goroutine.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]registeredEvent),
	}
}

func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire stops at the first listener that reports the event as handled.
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	b.mu.RLock()
	events := make([]registeredEvent, len(b.registered[code]))
	copy(events, b.registered[code])
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[SystemEventCode][]registeredEvent)
}
