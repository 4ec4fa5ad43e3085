// Package storagetest holds the behavioural tests every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/storage"
)

// Run exercises a store created by newStore. Each subtest gets a fresh
// store, closed when the subtest ends.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateTeam populates fields", testCreateTeam},
		{"GetTeam returns ErrNotFound", testGetTeamNotFound},
		{"participants keep insertion order", testParticipantOrder},
		{"RemoveParticipant tombstones", testRemoveParticipant},
		{"AddParticipant to missing team", testAddParticipantMissingTeam},
		{"CreateTransaction round trip", testTransactionRoundTrip},
		{"self-paid transaction has no splits", testTransactionWithoutSplits},
		{"ListTransactions filters by month", testListByMonth},
		{"transactions are team scoped", testTeamScoping},
		{"DeleteTransaction cascades", testDeleteTransaction},
		{"reads never see a half-deleted transaction", testReadsDuringDeletes},
		{"writes bump team version", testVersionBumps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustTeam(t *testing.T, s storage.Store, name string) *models.Team {
	t.Helper()
	team := &models.Team{Name: name}
	if err := s.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	return team
}

func mustParticipant(t *testing.T, s storage.Store, teamID, name string) *models.Participant {
	t.Helper()
	p := &models.Participant{TeamID: teamID, Name: name}
	if err := s.AddParticipant(context.Background(), p); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	return p
}

func mustTransaction(t *testing.T, s storage.Store, tx *models.Transaction) *models.Transaction {
	t.Helper()
	if err := s.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return tx
}

func version(t *testing.T, s storage.Store, teamID string) int64 {
	t.Helper()
	v, err := s.TeamVersion(context.Background(), teamID)
	if err != nil {
		t.Fatalf("TeamVersion failed: %v", err)
	}
	return v
}

func testCreateTeam(t *testing.T, s storage.Store) {
	team := mustTeam(t, s, "Roommates")
	if team.ID == "" {
		t.Error("Expected team ID to be generated")
	}
	if team.CreatedAt == 0 {
		t.Error("Expected CreatedAt to be set")
	}

	got, err := s.GetTeam(context.Background(), team.ID)
	if err != nil {
		t.Fatalf("GetTeam failed: %v", err)
	}
	if got.Name != "Roommates" || got.Version != team.Version {
		t.Errorf("GetTeam = %+v, want %+v", got, team)
	}
}

func testGetTeamNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetTeam(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTeam error = %v, want ErrNotFound", err)
	}
	if _, err := s.TeamVersion(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("TeamVersion error = %v, want ErrNotFound", err)
	}
}

func testParticipantOrder(t *testing.T, s storage.Store) {
	team := mustTeam(t, s, "Trip")
	names := []string{"Zoe", "Adam", "Mia", "Bob"}
	for _, n := range names {
		mustParticipant(t, s, team.ID, n)
	}

	got, err := s.ListParticipants(context.Background(), team.ID, false)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("expected %d participants, got %d", len(names), len(got))
	}
	for i, p := range got {
		if p.Name != names[i] {
			t.Errorf("participant %d = %s, want %s", i, p.Name, names[i])
		}
		if p.TeamID != team.ID {
			t.Errorf("participant %s has team %s", p.Name, p.TeamID)
		}
	}
}

func testRemoveParticipant(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Flat")
	alice := mustParticipant(t, s, team.ID, "Alice")
	bob := mustParticipant(t, s, team.ID, "Bob")

	if err := s.RemoveParticipant(ctx, team.ID, bob.ID); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}

	active, err := s.ListParticipants(ctx, team.ID, false)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != alice.ID {
		t.Errorf("active participants = %v, want only Alice", active)
	}

	all, err := s.ListParticipants(ctx, team.ID, true)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 participants including removed, got %d", len(all))
	}
	if !all[1].Removed() || all[1].Name != "Bob" {
		t.Errorf("expected Bob to be tombstoned, got %+v", all[1])
	}

	v := version(t, s, team.ID)
	if err := s.RemoveParticipant(ctx, team.ID, bob.ID); err != nil {
		t.Errorf("second RemoveParticipant should be a no-op, got %v", err)
	}
	if err := s.RemoveParticipant(ctx, team.ID, "missing"); err != nil {
		t.Errorf("removing a missing participant should be a no-op, got %v", err)
	}
	if got := version(t, s, team.ID); got != v {
		t.Errorf("no-op removals changed version %d -> %d", v, got)
	}
}

func testAddParticipantMissingTeam(t *testing.T, s storage.Store) {
	err := s.AddParticipant(context.Background(), &models.Participant{TeamID: "missing", Name: "Ghost"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("AddParticipant error = %v, want ErrNotFound", err)
	}
}

func testTransactionRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Office")
	alice := mustParticipant(t, s, team.ID, "Alice")
	bob := mustParticipant(t, s, team.ID, "Bob")

	original := mustTransaction(t, s, &models.Transaction{
		TeamID:    team.ID,
		Title:     "Lunch",
		Date:      date("2025-03-14"),
		PayerID:   alice.ID,
		Total:     d("33.33"),
		CreatedBy: "user-1",
		Splits: []models.Split{
			{ParticipantID: bob.ID, Amount: d("22.22")},
			{ParticipantID: alice.ID, Amount: d("11.11")},
		},
	})
	if original.ID == "" || original.CreatedAt == 0 {
		t.Fatalf("expected ID and CreatedAt to be populated, got %+v", original)
	}
	for _, split := range original.Splits {
		if split.TransactionID != original.ID {
			t.Errorf("split transaction id = %s, want %s", split.TransactionID, original.ID)
		}
	}

	got, err := s.GetTransaction(ctx, team.ID, original.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Title != "Lunch" || got.PayerID != alice.ID || got.CreatedBy != "user-1" || got.IsRepayment {
		t.Errorf("unexpected transaction %+v", got)
	}
	if !got.Date.Equal(original.Date) {
		t.Errorf("date = %v, want %v", got.Date, original.Date)
	}
	if !got.Total.Equal(d("33.33")) {
		t.Errorf("total = %s, want 33.33", got.Total)
	}
	if len(got.Splits) != 2 {
		t.Fatalf("expected 2 splits, got %d", len(got.Splits))
	}
	if got.Splits[0].ParticipantID != bob.ID || !got.Splits[0].Amount.Equal(d("22.22")) {
		t.Errorf("split order or amount changed: %+v", got.Splits)
	}

	repayment := mustTransaction(t, s, &models.Transaction{
		TeamID:      team.ID,
		Title:       "Repayment",
		Date:        date("2025-03-15"),
		PayerID:     bob.ID,
		Total:       d("22.22"),
		IsRepayment: true,
		Splits:      []models.Split{{ParticipantID: alice.ID, Amount: d("22.22")}},
	})
	got, err = s.GetTransaction(ctx, team.ID, repayment.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if !got.IsRepayment {
		t.Error("expected IsRepayment to round trip")
	}

	if _, err := s.GetTransaction(ctx, team.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTransaction error = %v, want ErrNotFound", err)
	}
}

func testTransactionWithoutSplits(t *testing.T, s storage.Store) {
	team := mustTeam(t, s, "Solo")
	alice := mustParticipant(t, s, team.ID, "Alice")

	tx := mustTransaction(t, s, &models.Transaction{
		TeamID: team.ID, Title: "Own coffee", Date: date("2025-01-02"), PayerID: alice.ID, Total: d("4.50"),
	})

	got, err := s.GetTransaction(context.Background(), team.ID, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if len(got.Splits) != 0 {
		t.Errorf("expected no splits, got %+v", got.Splits)
	}
}

func testListByMonth(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Monthly")
	alice := mustParticipant(t, s, team.ID, "Alice")

	add := func(title, day string, createdAt int64) {
		mustTransaction(t, s, &models.Transaction{
			TeamID: team.ID, Title: title, Date: date(day), PayerID: alice.ID, Total: d("1"), CreatedAt: createdAt,
			Splits: []models.Split{{ParticipantID: alice.ID, Amount: d("1")}},
		})
	}
	add("feb", "2025-02-28", 100)
	add("mar-early", "2025-03-01", 101)
	add("mar-late-old", "2025-03-31", 102)
	add("mar-late-new", "2025-03-31", 103)
	add("apr", "2025-04-01", 104)

	titles := func(txs []*models.Transaction) []string {
		var out []string
		for _, tx := range txs {
			out = append(out, tx.Title)
		}
		return out
	}

	got, err := s.ListTransactions(ctx, team.ID, storage.TransactionFilter{Month: "2025-03"})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	want := []string{"mar-late-new", "mar-late-old", "mar-early"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", titles(got), want)
	}
	for i := range want {
		if got[i].Title != want[i] {
			t.Errorf("got %v, want %v", titles(got), want)
			break
		}
		if len(got[i].Splits) != 1 {
			t.Errorf("%s: expected splits to be loaded", got[i].Title)
		}
	}

	all, err := s.ListTransactions(ctx, team.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(all) != 5 || all[0].Title != "apr" || all[4].Title != "feb" {
		t.Errorf("unfiltered = %v", titles(all))
	}

	if _, err := s.ListTransactions(ctx, team.ID, storage.TransactionFilter{Month: "March"}); err == nil {
		t.Error("expected error for invalid month")
	}
}

func testTeamScoping(t *testing.T, s storage.Store) {
	ctx := context.Background()
	teamA := mustTeam(t, s, "A")
	teamB := mustTeam(t, s, "B")
	alice := mustParticipant(t, s, teamA.ID, "Alice")
	mustParticipant(t, s, teamB.ID, "Bob")

	tx := mustTransaction(t, s, &models.Transaction{
		TeamID: teamA.ID, Title: "Rent", Date: date("2025-05-01"), PayerID: alice.ID, Total: d("900"),
	})

	if _, err := s.GetTransaction(ctx, teamB.ID, tx.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-team GetTransaction error = %v, want ErrNotFound", err)
	}
	list, err := s.ListTransactions(ctx, teamB.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("team B sees %d transactions, want 0", len(list))
	}
	if err := s.DeleteTransaction(ctx, teamB.ID, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if _, err := s.GetTransaction(ctx, teamA.ID, tx.ID); err != nil {
		t.Errorf("cross-team delete removed the transaction: %v", err)
	}
	participants, err := s.ListParticipants(ctx, teamB.ID, true)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(participants) != 1 || participants[0].Name != "Bob" {
		t.Errorf("team B participants = %v", participants)
	}
}

func testDeleteTransaction(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Deletes")
	alice := mustParticipant(t, s, team.ID, "Alice")
	bob := mustParticipant(t, s, team.ID, "Bob")

	keep := mustTransaction(t, s, &models.Transaction{
		TeamID: team.ID, Title: "Keep", Date: date("2025-06-01"), PayerID: alice.ID, Total: d("10"),
		Splits: []models.Split{{ParticipantID: bob.ID, Amount: d("10")}},
	})
	drop := mustTransaction(t, s, &models.Transaction{
		TeamID: team.ID, Title: "Drop", Date: date("2025-06-02"), PayerID: bob.ID, Total: d("8"),
		Splits: []models.Split{{ParticipantID: alice.ID, Amount: d("4")}, {ParticipantID: bob.ID, Amount: d("4")}},
	})

	if err := s.DeleteTransaction(ctx, team.ID, drop.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if _, err := s.GetTransaction(ctx, team.ID, drop.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted transaction still readable: %v", err)
	}

	list, err := s.ListTransactions(ctx, team.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != keep.ID || len(list[0].Splits) != 1 {
		t.Errorf("unexpected remaining transactions %+v", list)
	}

	v := version(t, s, team.ID)
	if err := s.DeleteTransaction(ctx, team.ID, drop.ID); err != nil {
		t.Errorf("deleting twice should be a no-op, got %v", err)
	}
	if got := version(t, s, team.ID); got != v {
		t.Errorf("no-op delete changed version %d -> %d", v, got)
	}
}

func testReadsDuringDeletes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Churn")
	alice := mustParticipant(t, s, team.ID, "Alice")
	bob := mustParticipant(t, s, team.ID, "Bob")

	var ids []string
	for i := 0; i < 20; i++ {
		tx := mustTransaction(t, s, &models.Transaction{
			TeamID: team.ID, Title: fmt.Sprintf("Lunch %d", i), Date: date("2025-07-01"), PayerID: alice.ID, Total: d("10"),
			Splits: []models.Split{{ParticipantID: alice.ID, Amount: d("5")}, {ParticipantID: bob.ID, Amount: d("5")}},
		})
		ids = append(ids, tx.ID)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, id := range ids {
			if err := s.DeleteTransaction(ctx, team.ID, id); err != nil {
				t.Errorf("DeleteTransaction failed: %v", err)
				return
			}
		}
	}()

	check := func(tx *models.Transaction) {
		if len(tx.Splits) != 2 {
			t.Errorf("transaction %s read with %d splits, want 2", tx.Title, len(tx.Splits))
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		list, err := s.ListTransactions(ctx, team.ID, storage.TransactionFilter{Month: "2025-07"})
		if err != nil {
			t.Errorf("ListTransactions failed: %v", err)
			break
		}
		for _, tx := range list {
			check(tx)
		}
		got, err := s.GetTransaction(ctx, team.ID, ids[len(ids)-1])
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			t.Errorf("GetTransaction failed: %v", err)
			break
		}
		check(got)
	}
	<-done
}

func testVersionBumps(t *testing.T, s storage.Store) {
	ctx := context.Background()
	team := mustTeam(t, s, "Versions")
	v0 := version(t, s, team.ID)

	alice := mustParticipant(t, s, team.ID, "Alice")
	v1 := version(t, s, team.ID)
	if v1 <= v0 {
		t.Errorf("AddParticipant did not bump version: %d -> %d", v0, v1)
	}

	tx := mustTransaction(t, s, &models.Transaction{
		TeamID: team.ID, Title: "Snacks", Date: date("2025-07-07"), PayerID: alice.ID, Total: d("3"),
	})
	v2 := version(t, s, team.ID)
	if v2 <= v1 {
		t.Errorf("CreateTransaction did not bump version: %d -> %d", v1, v2)
	}

	if err := s.DeleteTransaction(ctx, team.ID, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	v3 := version(t, s, team.ID)
	if v3 <= v2 {
		t.Errorf("DeleteTransaction did not bump version: %d -> %d", v2, v3)
	}

	if err := s.RemoveParticipant(ctx, team.ID, alice.ID); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	if v4 := version(t, s, team.ID); v4 <= v3 {
		t.Errorf("RemoveParticipant did not bump version: %d -> %d", v3, v4)
	}

	err := s.CreateTransaction(ctx, &models.Transaction{
		TeamID: "missing", Title: "x", Date: date("2025-07-07"), PayerID: alice.ID, Total: d("1"),
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("CreateTransaction on missing team error = %v, want ErrNotFound", err)
	}
}
