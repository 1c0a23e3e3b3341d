package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tremornet/tremor-monitor/internal/model"
)

// Event is one filter's trigger/alarm summary for a single minute,
// published to every connected /api/v1/stream client.
type Event struct {
	ID          string           `json:"id"`
	Filter      model.Filter     `json:"filter"`
	Time        time.Time        `json:"time"`
	Triggered   bool             `json:"triggered"`
	AlarmFired  bool             `json:"alarm_fired"`
	Stations    model.StationSet `json:"stations"`
}

// Broadcaster fans a stream of per-minute Events out to SSE subscribers,
// keeping a small ring buffer so a client that reconnects with
// Last-Event-ID doesn't lose events it missed during the gap. Grounded
// on the teacher's ingest.EventBus.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	seq         atomic.Uint64

	ringMu   sync.RWMutex
	ring     []Event
	ringHead int
}

// NewBroadcaster returns a Broadcaster retaining the last ringSize
// events for replay.
func NewBroadcaster(ringSize int) *Broadcaster {
	if ringSize < 1 {
		ringSize = 1
	}
	return &Broadcaster{
		subscribers: make(map[uint64]chan Event),
		ring:        make([]Event, ringSize),
	}
}

// Subscribe registers a new subscriber, returning its event channel and
// a cancel function to unregister it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 32)
	b.subscribers[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// ReplaySince returns every ring-buffered event after lastEventID, in
// publish order. An empty lastEventID replays the whole buffer.
func (b *Broadcaster) ReplaySince(lastEventID string) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""
	for i := 0; i < len(b.ring); i++ {
		idx := (b.ringHead + i) % len(b.ring)
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		events = append(events, e)
	}
	return events
}

// Publish assigns e an ID, stores it in the ring buffer, and delivers it
// to every current subscriber. A subscriber too slow to keep up simply
// misses the event rather than stalling the publisher.
func (b *Broadcaster) Publish(e Event) {
	e.ID = fmt.Sprintf("%d-%d", time.Now().UnixMilli(), b.seq.Add(1))

	b.ringMu.Lock()
	b.ring[b.ringHead] = e
	b.ringHead = (b.ringHead + 1) % len(b.ring)
	b.ringMu.Unlock()

	b.mu.RLock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.RUnlock()
}

// MarshalData renders e's JSON payload for the SSE "data:" field.
func (e Event) MarshalData() []byte {
	data, _ := json.Marshal(e)
	return data
}
