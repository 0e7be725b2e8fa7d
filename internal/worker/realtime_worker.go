package worker

import (
	"github.com/supportrelay/chat-relay/internal/events"
	"github.com/supportrelay/chat-relay/internal/realtime"
)

// StartRealtimeWorker subscribes the fanout hub to domain events so
// mutations are pushed to connected subscribers.
func StartRealtimeWorker(hub *realtime.Hub, dispatcher events.Dispatcher) {
	if hub == nil || dispatcher == nil {
		return
	}
	hub.RegisterHandlers(dispatcher)
}
