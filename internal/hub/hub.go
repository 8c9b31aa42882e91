// Package hub fans execution events out to any number of subscribers,
// typically websocket clients
package hub

import (
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/flowchat/engine/pkg/api"
)

// Hub is a broadcast topic of execution events. Every consumer sees
// every event published after it subscribed; there is no replay
type Hub struct {
	topic     topic.Topic[*api.ExecutionEvent]
	prod      topic.Producer[*api.ExecutionEvent]
	closeOnce sync.Once
}

// New creates an empty hub
func New() *Hub {
	t := caravan.NewTopic[*api.ExecutionEvent]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Publish stamps and broadcasts an event to all current subscribers
func (h *Hub) Publish(ev *api.ExecutionEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	message.Send(h.prod, ev)
}

// NewConsumer subscribes to all events published from now on. The
// caller owns the consumer and must Close it
func (h *Hub) NewConsumer() topic.Consumer[*api.ExecutionEvent] {
	return h.topic.NewConsumer()
}

// Close shuts down the producer side. Consumers drain and then see
// their channel closed
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.prod.Close()
	})
}
