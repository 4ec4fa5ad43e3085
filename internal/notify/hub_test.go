package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestHub(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers only to the team's subscribers", func(t *testing.T) {
		hub := NewHub()
		var gotA, gotB []Event
		unsubA := hub.Subscribe("team-a", func(ev Event) { gotA = append(gotA, ev) })
		defer unsubA()
		unsubB := hub.Subscribe("team-b", func(ev Event) { gotB = append(gotB, ev) })
		defer unsubB()

		hub.Publish(ctx, Event{TeamID: "team-a", Kind: KindTransactionCreated})

		if len(gotA) != 1 || gotA[0].Kind != KindTransactionCreated {
			t.Errorf("team-a received %v", gotA)
		}
		if gotA[0].At.IsZero() {
			t.Error("expected At to be stamped")
		}
		if len(gotB) != 0 {
			t.Errorf("team-b received %v", gotB)
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		hub := NewHub()
		calls := 0
		unsub := hub.Subscribe("team", func(Event) { calls++ })
		hub.Publish(ctx, Event{TeamID: "team"})
		unsub()
		unsub()
		hub.Publish(ctx, Event{TeamID: "team"})

		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		if n := hub.Subscribers("team"); n != 0 {
			t.Errorf("subscribers = %d, want 0", n)
		}
	})

	t.Run("callback may unsubscribe itself", func(t *testing.T) {
		hub := NewHub()
		var unsub func()
		unsub = hub.Subscribe("team", func(Event) { unsub() })
		hub.Publish(ctx, Event{TeamID: "team"})
		if n := hub.Subscribers("team"); n != 0 {
			t.Errorf("subscribers = %d, want 0", n)
		}
	})

	t.Run("concurrent subscribe and publish", func(t *testing.T) {
		hub := NewHub()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unsub := hub.Subscribe("team", func(Event) {})
				unsub()
			}()
			go func() {
				defer wg.Done()
				hub.Publish(ctx, Event{TeamID: "team"})
			}()
		}
		wg.Wait()
	})
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	hub := NewHub()
	delivered := 0
	defer hub.Subscribe("team", func(Event) { delivered++ })()

	boom := errors.New("boom")
	err := Multi{failingPublisher{boom}, nil, hub}.Publish(context.Background(), Event{TeamID: "team"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if delivered != 1 {
		t.Errorf("hub should still receive the event, delivered = %d", delivered)
	}
}
