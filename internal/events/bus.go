// Package events is a lightweight in-process pub/sub broker.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event enumerates the topics flowing through the core.
type Event string

const (
	EventSessionStarted Event = "session.started"
	EventSessionStopped Event = "session.stopped"
	EventSessionTick    Event = "session.tick"
	EventSignal         Event = "signal"
	EventExecution      Event = "execution"
	EventPositionClosed Event = "position.closed"
)

// Message is the envelope delivered to subscribers. At is stamped at
// publish time so slow consumers can see how stale a message is.
type Message struct {
	Topic   Event     `json:"topic"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Bus fans messages out to channel subscribers. Slow subscribers drop
// messages rather than block the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Event][]chan Message
	dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan Message)}
}

// Subscribe registers a listener on a topic and returns the message
// channel plus an unsubscribe function that closes it.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	b.subs[e] = append(b.subs[e], ch)
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}

	return ch, unsub
}

// Publish delivers the payload to every subscriber of the topic without
// blocking. Messages to full subscriber buffers are counted and dropped.
func (b *Bus) Publish(e Event, payload any) {
	msg := Message{Topic: e, At: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many messages were discarded on full buffers since
// the bus was created.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
