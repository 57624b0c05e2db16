package events

import "sync"

// Queue buffers produced events until the first consumer subscribes,
// then replays the buffer in sequence order and switches to direct
// pass-through delivery for the rest of the process lifetime. It never
// re-buffers, even if every consumer later detaches.
type Queue struct {
	mu       sync.Mutex
	seq      uint64
	attached bool
	buffer   []Event
	subs     map[*Subscription]struct{}
	onAttach func()
	dropped  uint64
}

func NewQueue() *Queue {
	return &Queue{subs: make(map[*Subscription]struct{})}
}

// SetAttachHook registers a callback invoked exactly once, when the
// first consumer subscribes. Must be called before any Subscribe.
func (q *Queue) SetAttachHook(hook func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onAttach = hook
}

// Emit assigns the next sequence number and either buffers the event
// (no consumer has ever attached) or delivers it to every live
// subscription. A subscription whose channel is full loses the event
// rather than blocking the producer.
func (q *Queue) Emit(name Name, p Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	ev := Event{Name: name, Payload: p, Seq: q.seq}

	if !q.attached {
		q.buffer = append(q.buffer, ev)
		return
	}
	for sub := range q.subs {
		select {
		case sub.ch <- ev:
		default:
			q.dropped++
		}
	}
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	q  *Queue
	ch chan Event
}

// Subscribe attaches a consumer. The first subscription ever receives
// the buffered events in their original sequence order before anything
// else; the buffer is then discarded for good.
func (q *Queue) Subscribe(capacity int) *Subscription {
	if capacity <= 0 {
		capacity = 256
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if capacity < len(q.buffer) {
		capacity = len(q.buffer)
	}
	sub := &Subscription{q: q, ch: make(chan Event, capacity)}

	if !q.attached {
		for _, ev := range q.buffer {
			sub.ch <- ev
		}
		q.buffer = nil
		q.attached = true
		if q.onAttach != nil {
			hook := q.onAttach
			q.onAttach = nil
			go hook()
		}
	}

	q.subs[sub] = struct{}{}
	return sub
}

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close detaches the subscription. Pass-through mode persists even when
// no subscriptions remain.
func (s *Subscription) Close() {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	if _, ok := s.q.subs[s]; !ok {
		return
	}
	delete(s.q.subs, s)
	close(s.ch)
}

// Attached reports whether the queue has switched to direct delivery.
func (q *Queue) Attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attached
}

// Dropped reports how many events were lost to saturated subscribers.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
