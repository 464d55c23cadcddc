package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for export event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish publishes an event to all subscribers. Dispatch happens on
// subscriber goroutines, so publishing from the stderr-draining loop never
// blocks on a slow consumer.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ExportProgress:
		event.Publish(b.dispatcher, e)
	case ExportCompleted:
		event.Publish(b.dispatcher, e)
	case ExportFailed:
		event.Publish(b.dispatcher, e)
	case ExportCanceled:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler and returns an unsubscribe function.
// The handler's parameter type selects which events it receives.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ExportProgress):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportCompleted):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportFailed):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportCanceled):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges callback subscriptions to a channel. Events are
// dropped rather than blocking when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
