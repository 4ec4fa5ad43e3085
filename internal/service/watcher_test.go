package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/teamtab/internal/metrics"
	"github.com/mmynk/teamtab/internal/notify"
	"github.com/mmynk/teamtab/pkg/api"
)

func TestWatcher_CoalescesBursts(t *testing.T) {
	hub := notify.NewHub()
	m := metrics.New()
	w := NewWatcher(hub, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan int, 10)
	release := make(chan struct{})
	count := 0
	snapshot := func(context.Context) error {
		count++
		calls <- count
		if count == 2 {
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, "team-1", snapshot) }()

	waitCall(t, calls, 1)
	if n := testutil.ToFloat64(m.Watchers); n != 1 {
		t.Errorf("watchers gauge: expected 1, got %v", n)
	}

	publish := func() {
		if err := hub.Publish(ctx, notify.Event{TeamID: "team-1", Kind: notify.KindTransactionCreated}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	publish()
	waitCall(t, calls, 2)

	// Three writes while the second snapshot is in flight become one read.
	publish()
	publish()
	publish()
	// Another team's events are ignored.
	_ = hub.Publish(ctx, notify.Event{TeamID: "team-2", Kind: notify.KindTransactionCreated})
	close(release)
	waitCall(t, calls, 3)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v, want nil on cancel", err)
	}
	select {
	case n := <-calls:
		t.Errorf("unexpected snapshot %d after burst", n)
	default:
	}
	if n := hub.Subscribers("team-1"); n != 0 {
		t.Errorf("expected subscription released, %d left", n)
	}
	if n := testutil.ToFloat64(m.Watchers); n != 0 {
		t.Errorf("watchers gauge: expected 0, got %v", n)
	}
}

func TestWatcher_SnapshotError(t *testing.T) {
	hub := notify.NewHub()
	w := NewWatcher(hub, nil)
	boom := errors.New("boom")

	err := w.Watch(context.Background(), "team-1", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected snapshot error, got %v", err)
	}
	if n := hub.Subscribers("team-1"); n != 0 {
		t.Errorf("expected subscription released, %d left", n)
	}
}

func waitCall(t *testing.T, calls <-chan int, want int) {
	t.Helper()
	select {
	case got := <-calls:
		if got != want {
			t.Fatalf("snapshot: expected call %d, got %d", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for snapshot %d", want)
	}
}

func TestWatchBalances(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := ts.ledger.WatchBalances(ctx, connect.NewRequest(&api.WatchBalancesRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("WatchBalances failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("expected initial snapshot: %v", stream.Err())
	}
	initial := stream.Msg()
	if len(initial.Balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(initial.Balances))
	}

	ts.addExpense(t, teamID, ids[0], "2025-03-01", "12", map[string]string{ids[1]: "12"})

	if !stream.Receive() {
		t.Fatalf("expected snapshot after write: %v", stream.Err())
	}
	update := stream.Msg()
	if update.Version <= initial.Version {
		t.Errorf("version: expected > %d, got %d", initial.Version, update.Version)
	}
	if got := balancesOf(update)[ids[1]]; got != "-12.00" {
		t.Errorf("balance: expected -12.00, got %s", got)
	}
}

func TestWatchBalances_UnknownTeam(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	stream, err := ts.ledger.WatchBalances(context.Background(), connect.NewRequest(&api.WatchBalancesRequest{TeamID: "missing"}))
	if err != nil {
		assertCode(t, err, connect.CodeNotFound)
		return
	}
	defer stream.Close()
	if stream.Receive() {
		t.Fatal("expected no snapshot for an unknown team")
	}
	assertCode(t, stream.Err(), connect.CodeNotFound)
}
