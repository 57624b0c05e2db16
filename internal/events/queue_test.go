package events

import (
	"testing"
	"time"
)

func TestQueueBuffersUntilFirstSubscribe(t *testing.T) {
	q := NewQueue()

	q.Emit(DidDisplayIncomingCall, Payload{CallID: "c1"})
	q.Emit(AnswerCall, Payload{CallID: "c1"})
	q.Emit(DidToggleHoldAction, Payload{CallID: "c1", Hold: Bool(true)})

	if q.Attached() {
		t.Fatalf("queue attached before any subscriber")
	}

	sub := q.Subscribe(8)
	defer sub.Close()

	want := []Name{DidDisplayIncomingCall, AnswerCall, DidToggleHoldAction}
	var lastSeq uint64
	for i, name := range want {
		select {
		case ev := <-sub.Events():
			if ev.Name != name {
				t.Fatalf("event %d = %q, want %q", i, ev.Name, name)
			}
			if ev.Seq <= lastSeq {
				t.Fatalf("seq not increasing: %d after %d", ev.Seq, lastSeq)
			}
			lastSeq = ev.Seq
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for replayed event %d", i)
		}
	}

	// Exactly once: nothing further is pending.
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event %q", ev.Name)
	default:
	}
}

func TestQueueDirectDeliveryAfterAttach(t *testing.T) {
	q := NewQueue()
	sub := q.Subscribe(8)
	defer sub.Close()

	q.Emit(EndCall, Payload{CallID: "c9"})
	select {
	case ev := <-sub.Events():
		if ev.Name != EndCall || ev.Payload.CallID != "c9" {
			t.Fatalf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for direct event")
	}
}

func TestQueueNeverRebuffers(t *testing.T) {
	q := NewQueue()
	sub := q.Subscribe(8)
	sub.Close()

	// All consumers detached: events are dropped, not re-buffered.
	q.Emit(EndCall, Payload{CallID: "c1"})

	sub2 := q.Subscribe(8)
	defer sub2.Close()
	select {
	case ev := <-sub2.Events():
		t.Fatalf("re-buffered event delivered: %+v", ev)
	default:
	}
}

func TestQueueReplayLargerThanRequestedCapacity(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 50; i++ {
		q.Emit(DidPerformDTMFAction, Payload{CallID: "c1", Digits: "5"})
	}

	sub := q.Subscribe(4)
	defer sub.Close()

	count := 0
	for {
		select {
		case <-sub.Events():
			count++
		case <-time.After(200 * time.Millisecond):
			if count != 50 {
				t.Fatalf("replayed %d events, want 50", count)
			}
			return
		}
	}
}

func TestQueueAttachHookRunsOnce(t *testing.T) {
	q := NewQueue()
	attached := make(chan struct{}, 2)
	q.SetAttachHook(func() { attached <- struct{}{} })

	sub1 := q.Subscribe(4)
	defer sub1.Close()
	sub2 := q.Subscribe(4)
	defer sub2.Close()

	select {
	case <-attached:
	case <-time.After(time.Second):
		t.Fatalf("attach hook never ran")
	}
	select {
	case <-attached:
		t.Fatalf("attach hook ran twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueueFanOut(t *testing.T) {
	q := NewQueue()
	a := q.Subscribe(4)
	defer a.Close()
	b := q.Subscribe(4)
	defer b.Close()

	q.Emit(DidResetProvider, Payload{})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			if ev.Name != DidResetProvider {
				t.Fatalf("got %q", ev.Name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber missed fan-out event")
		}
	}
}
