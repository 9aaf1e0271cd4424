package engine

import (
	"log/slog"
	"slices"
)

// subscriberBuffer is how many events a slow subscriber may fall behind
// before events are dropped for it.
const subscriberBuffer = 64

// Subscribe registers a listener for every event emitted from now on.
// Callers must Unsubscribe when done.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// SubscribeRecent registers a listener and copies up to n of the latest
// logged events under the world lock, so every event lands in exactly one of
// the backlog or the channel.
func (s *Simulation) SubscribeRecent(n int) (int, <-chan Event, []Event) {
	s.World.Lock()
	defer s.World.Unlock()
	id, ch := s.Subscribe()
	start := max(0, len(s.Events)-n)
	return id, ch, slices.Clone(s.Events[start:])
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// broadcast never blocks the tick: a full subscriber misses the event.
func (s *Simulation) broadcast(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("event dropped for slow subscriber", "sub_id", id, "category", e.Category)
		}
	}
}
