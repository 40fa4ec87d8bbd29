package server

import (
	"fmt"
	"testing"
	"time"
)

func ev(stage string, percent int) map[string]any {
	return map[string]any{"stage": stage, "percent": percent}
}

func TestBroadcaster_ReplayThenLive(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev("setting", 8))
	b.Send(ev("cast", 16))

	events, _, unsub := b.Subscribe()
	defer unsub()

	for _, want := range []string{"setting", "cast"} {
		got := <-events
		if got["stage"] != want {
			t.Fatalf("replay stage = %v, want %v", got["stage"], want)
		}
	}

	b.Send(ev("structure_build", 28))
	got := <-events
	if got["stage"] != "structure_build" {
		t.Fatalf("live stage = %v", got["stage"])
	}
}

func TestBroadcaster_CloseEndsSubscribers(t *testing.T) {
	b := NewBroadcaster()
	events, doneCh, unsub := b.Subscribe()
	defer unsub()

	b.Send(ev("setting", 8))
	b.Close()

	<-events // the one event
	if _, ok := <-events; ok {
		t.Fatal("channel must be closed after Close")
	}
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("done channel must close on Close")
	}
}

func TestBroadcaster_SubscribeAfterCloseReplaysHistory(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev("setting", 8))
	b.Send(ev("terminal", 100))
	b.Close()

	events, doneCh, unsub := b.Subscribe()
	defer unsub()

	n := 0
	for range events {
		n++
	}
	if n != 2 {
		t.Fatalf("replayed %d events, want 2", n)
	}
	select {
	case <-doneCh:
	default:
		t.Fatal("done channel must already be closed")
	}
}

func TestBroadcaster_SlowClientDroppedWithoutDone(t *testing.T) {
	b := NewBroadcaster()
	events, doneCh, unsub := b.Subscribe()
	defer unsub()

	// Overflow the client's buffer so the broadcaster drops it.
	for i := 0; i < cap(events)+8; i++ {
		b.Send(ev("clue_build", i))
	}

	drained := 0
	for range events {
		drained++
	}
	if drained == 0 {
		t.Fatal("buffered events must still be readable after the drop")
	}
	// The run is still live: done must NOT be signalled for a dropped client.
	select {
	case <-doneCh:
		t.Fatal("done channel closed on slow-client drop")
	default:
	}

	// The broadcaster itself keeps working for other clients.
	events2, _, unsub2 := b.Subscribe()
	defer unsub2()
	b.Send(ev("prose", 94))
	deadline := time.After(time.Second)
	for {
		select {
		case got := <-events2:
			if got["stage"] == "prose" {
				return
			}
		case <-deadline:
			t.Fatal("new subscriber never saw the live event")
		}
	}
}

func TestBroadcaster_SendAfterCloseIsNoop(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev("setting", 8))
	b.Close()
	b.Send(ev("cast", 16))
	if got := len(b.History()); got != 1 {
		t.Fatalf("history length = %d, want 1", got)
	}
}

func TestBroadcaster_HistoryIsACopy(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev("setting", 8))
	h := b.History()
	h[0] = map[string]any{"stage": "tampered"}
	if b.History()[0]["stage"] != "setting" {
		t.Fatal("History must return a copy")
	}
}

func TestBroadcaster_ManySubscribers(t *testing.T) {
	b := NewBroadcaster()
	var chans []<-chan map[string]any
	for i := 0; i < 5; i++ {
		events, _, unsub := b.Subscribe()
		defer unsub()
		chans = append(chans, events)
	}
	b.Send(ev("outline", 86))
	for i, ch := range chans {
		select {
		case got := <-ch:
			if got["stage"] != "outline" {
				t.Fatalf("subscriber %d got %v", i, got["stage"])
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBroadcaster_UnsubscribeIdempotent(t *testing.T) {
	b := NewBroadcaster()
	_, _, unsub := b.Subscribe()
	unsub()
	unsub() // second call must not panic or double-close

	// Broadcaster still usable.
	b.Send(ev("setting", 8))
	if len(b.History()) != 1 {
		t.Fatal("broadcaster broken after unsubscribe")
	}
}

func TestBroadcaster_OrderPreserved(t *testing.T) {
	b := NewBroadcaster()
	for i := 0; i < 20; i++ {
		b.Send(ev(fmt.Sprintf("stage-%02d", i), i))
	}
	events, _, unsub := b.Subscribe()
	defer unsub()
	for i := 0; i < 20; i++ {
		got := <-events
		if got["stage"] != fmt.Sprintf("stage-%02d", i) {
			t.Fatalf("event %d out of order: %v", i, got["stage"])
		}
	}
}
