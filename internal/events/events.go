package events

import (
	"context"
	"strings"
	"sync"
)

// TurnEvent is one observable step of a conversation turn, keyed by the
// thread it belongs to.
type TurnEvent struct {
	ThreadID string         `json:"thread_id"`
	Seq      int64          `json:"seq"`
	Type     string         `json:"type"`
	Ts       string         `json:"ts"`
	Payload  map[string]any `json:"payload"`
}

type Broker struct {
	mu          sync.RWMutex
	seq         map[string]int64
	subscribers map[string]map[chan TurnEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		seq:         map[string]int64{},
		subscribers: map[string]map[chan TurnEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, threadID string) <-chan TurnEvent {
	ch := make(chan TurnEvent, 16)

	b.mu.Lock()
	if b.subscribers[threadID] == nil {
		b.subscribers[threadID] = map[chan TurnEvent]struct{}{}
	}
	b.subscribers[threadID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[threadID] != nil {
			delete(b.subscribers[threadID], ch)
			if len(b.subscribers[threadID]) == 0 {
				delete(b.subscribers, threadID)
			}
		}
		// Close while holding the lock so Publish can never send on a
		// closed channel.
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish assigns the event the next per-thread sequence number and fans
// it out without blocking; slow subscribers drop events.
func (b *Broker) Publish(event TurnEvent) {
	event.Type = NormalizeType(event.Type)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq[event.ThreadID]++
	event.Seq = b.seq[event.ThreadID]
	for ch := range b.subscribers[event.ThreadID] {
		select {
		case ch <- event:
		default:
		}
	}
}
