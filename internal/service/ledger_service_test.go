package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/cache"
	"github.com/mmynk/teamtab/pkg/api"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func splitsOf(splits []*api.SplitAmount) map[string]string {
	out := make(map[string]string, len(splits))
	for _, s := range splits {
		out[s.ParticipantID] = s.Amount.StringFixed(2)
	}
	return out
}

func balancesOf(resp *api.GetBalancesResponse) map[string]string {
	out := make(map[string]string, len(resp.Balances))
	for _, b := range resp.Balances {
		out[b.ParticipantID] = b.NetBalance.StringFixed(2)
	}
	return out
}

func (ts *testServer) addExpense(t *testing.T, teamID, payerID, date, total string, splits map[string]string) *api.Transaction {
	t.Helper()
	req := &api.CreateTransactionRequest{
		TeamID:  teamID,
		Title:   "Expense",
		Date:    date,
		PayerID: payerID,
		Total:   d(total),
	}
	for id, amount := range splits {
		req.Splits = append(req.Splits, &api.SplitAmount{ParticipantID: id, Amount: d(amount)})
	}
	resp, err := ts.ledger.CreateTransaction(context.Background(), connect.NewRequest(req))
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return resp.Msg.Transaction
}

func TestCalculateSplit(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob", "Carol")
	alice, bob, carol := ids[0], ids[1], ids[2]

	tests := []struct {
		name         string
		req          *api.CalculateSplitRequest
		wantSplits   map[string]string
		wantBalanced bool
		wantDiff     string
	}{
		{
			name:         "even over team members",
			req:          &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "100"},
			wantSplits:   map[string]string{alice: "33.33", bob: "33.33", carol: "33.34"},
			wantBalanced: true,
			wantDiff:     "0.00",
		},
		{
			name: "manual derives total",
			req: &api.CalculateSplitRequest{
				TeamID:  teamID,
				Mode:    "manual",
				Amounts: map[string]string{alice: "$12.50", bob: "7.5", carol: ""},
			},
			wantSplits:   map[string]string{alice: "12.50", bob: "7.50"},
			wantBalanced: true,
			wantDiff:     "0.00",
		},
		{
			name: "manual mismatch is reported, not rejected",
			req: &api.CalculateSplitRequest{
				TeamID:  teamID,
				Mode:    "manual",
				Total:   "50",
				Amounts: map[string]string{alice: "20", bob: "20"},
			},
			wantSplits:   map[string]string{alice: "20.00", bob: "20.00"},
			wantBalanced: false,
			wantDiff:     "10.00",
		},
		{
			name: "hybrid even over selected",
			req: &api.CalculateSplitRequest{
				TeamID:     teamID,
				Mode:       "hybrid",
				HybridMode: "even",
				Total:      "10",
				Selected:   []string{alice, carol},
			},
			wantSplits:   map[string]string{alice: "5.00", carol: "5.00"},
			wantBalanced: true,
			wantDiff:     "0.00",
		},
		{
			name: "hybrid manual ignores excluded amounts",
			req: &api.CalculateSplitRequest{
				TeamID:   teamID,
				Mode:     "hybrid",
				Total:    "15",
				Selected: []string{bob},
				Amounts:  map[string]string{alice: "5", bob: "15"},
			},
			wantSplits:   map[string]string{bob: "15.00"},
			wantBalanced: true,
			wantDiff:     "0.00",
		},
		{
			name:         "explicit participants without a team",
			req:          &api.CalculateSplitRequest{Mode: "even", Total: "1", ParticipantIDs: []string{"x", "y", "z"}},
			wantSplits:   map[string]string{"x": "0.33", "y": "0.33", "z": "0.34"},
			wantBalanced: true,
			wantDiff:     "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.ledger.CalculateSplit(context.Background(), connect.NewRequest(tt.req))
			if err != nil {
				t.Fatalf("CalculateSplit failed: %v", err)
			}
			got := splitsOf(resp.Msg.Splits)
			if len(got) != len(tt.wantSplits) {
				t.Fatalf("splits: expected %v, got %v", tt.wantSplits, got)
			}
			for id, want := range tt.wantSplits {
				if got[id] != want {
					t.Errorf("split %s: expected %s, got %s", id, want, got[id])
				}
			}
			if resp.Msg.Balanced != tt.wantBalanced {
				t.Errorf("balanced: expected %v, got %v", tt.wantBalanced, resp.Msg.Balanced)
			}
			if diff := resp.Msg.Difference.StringFixed(2); diff != tt.wantDiff {
				t.Errorf("difference: expected %s, got %s", tt.wantDiff, diff)
			}
		})
	}

	t.Run("splits follow team order", func(t *testing.T) {
		resp, err := ts.ledger.CalculateSplit(context.Background(), connect.NewRequest(
			&api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "3"},
		))
		if err != nil {
			t.Fatalf("CalculateSplit failed: %v", err)
		}
		for i, s := range resp.Msg.Splits {
			if s.ParticipantID != ids[i] {
				t.Errorf("split %d: expected %s, got %s", i, ids[i], s.ParticipantID)
			}
		}
	})
}

func TestCalculateSplit_Rejects(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")

	tests := []struct {
		name  string
		req   *api.CalculateSplitRequest
		code  connect.Code
		field string
	}{
		{"unknown mode", &api.CalculateSplitRequest{TeamID: teamID, Mode: "weighted", Total: "10"}, connect.CodeInvalidArgument, "mode"},
		{"bad total", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "ten"}, connect.CodeInvalidArgument, "total"},
		{"zero total", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "0"}, connect.CodeInvalidArgument, "total"},
		{"sub-cent total", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "1.005"}, connect.CodeInvalidArgument, "total"},
		{"huge exponent total", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "1e100000000"}, connect.CodeInvalidArgument, "total"},
		{"tiny exponent total", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "1e-10000000"}, connect.CodeInvalidArgument, "total"},
		{"tiny exponent amount", &api.CalculateSplitRequest{TeamID: teamID, Mode: "manual", Amounts: map[string]string{ids[0]: "1e-10000000"}}, connect.CodeInvalidArgument, "amounts"},
		{"bad amount", &api.CalculateSplitRequest{TeamID: teamID, Mode: "manual", Amounts: map[string]string{ids[0]: "abc"}}, connect.CodeInvalidArgument, "amounts"},
		{"stranger", &api.CalculateSplitRequest{TeamID: teamID, Mode: "even", Total: "10", ParticipantIDs: []string{ids[0], "stranger"}}, connect.CodeInvalidArgument, "participant_ids"},
		{"nothing selected", &api.CalculateSplitRequest{TeamID: teamID, Mode: "hybrid", HybridMode: "even", Total: "10"}, connect.CodeInvalidArgument, "selected"},
		{"unknown team", &api.CalculateSplitRequest{TeamID: "missing", Mode: "even", Total: "10"}, connect.CodeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.ledger.CalculateSplit(context.Background(), connect.NewRequest(tt.req))
			assertCode(t, err, tt.code)
			if tt.field != "" {
				if field := errorMeta(t, err, headerField); field != tt.field {
					t.Errorf("field: expected %q, got %q", tt.field, field)
				}
			}
		})
	}
}

func TestCreateTransaction(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob", "Carol")
	alice, bob, carol := ids[0], ids[1], ids[2]

	resp, err := ts.ledger.CreateTransaction(ctx, connect.NewRequest(&api.CreateTransactionRequest{
		TeamID:  teamID,
		Title:   "  Groceries ",
		Date:    "2025-03-01",
		PayerID: alice,
		Total:   d("90"),
		Splits: []*api.SplitAmount{
			{ParticipantID: carol, Amount: d("30")},
			{ParticipantID: alice, Amount: d("30")},
			{ParticipantID: bob, Amount: d("30")},
		},
	}))
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	tx := resp.Msg.Transaction
	if tx.ID == "" {
		t.Error("expected transaction ID")
	}
	if tx.Title != "Groceries" || tx.Date != "2025-03-01" || tx.PayerName != "Alice" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.IsRepayment {
		t.Error("expense must not be a repayment")
	}
	if tx.CreatedBy != testUserID {
		t.Errorf("created_by: expected %s, got %s", testUserID, tx.CreatedBy)
	}
	for i, s := range tx.Splits {
		if s.ParticipantID != ids[i] {
			t.Errorf("split %d: expected team order %s, got %s", i, ids[i], s.ParticipantID)
		}
	}

	balances, err := ts.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	got := balancesOf(balances.Msg)
	want := map[string]string{alice: "60.00", bob: "-30.00", carol: "-30.00"}
	for id, w := range want {
		if got[id] != w {
			t.Errorf("balance %s: expected %s, got %s", id, w, got[id])
		}
	}

	if n := testutil.ToFloat64(ts.metrics.TransactionsCreated.WithLabelValues("expense")); n != 1 {
		t.Errorf("transactions_created{expense}: expected 1, got %v", n)
	}
}

func TestCreateTransaction_Rejects(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob", "Dave")
	alice, bob, dave := ids[0], ids[1], ids[2]
	_, otherIDs := ts.createTeam(t, "Other", "Eve")

	if _, err := ts.teams.RemoveParticipant(ctx, connect.NewRequest(&api.RemoveParticipantRequest{
		TeamID: teamID, ParticipantID: dave,
	})); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}

	valid := func() *api.CreateTransactionRequest {
		return &api.CreateTransactionRequest{
			TeamID:  teamID,
			Title:   "Dinner",
			Date:    "2025-03-02",
			PayerID: alice,
			Total:   d("50"),
			Splits: []*api.SplitAmount{
				{ParticipantID: alice, Amount: d("25")},
				{ParticipantID: bob, Amount: d("25")},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*api.CreateTransactionRequest)
		code   connect.Code
		field  string
	}{
		{"empty title", func(r *api.CreateTransactionRequest) { r.Title = " " }, connect.CodeInvalidArgument, "title"},
		{"bad date", func(r *api.CreateTransactionRequest) { r.Date = "03/02/2025" }, connect.CodeInvalidArgument, "date"},
		{"missing date", func(r *api.CreateTransactionRequest) { r.Date = "" }, connect.CodeInvalidArgument, "date"},
		{"zero total", func(r *api.CreateTransactionRequest) { r.Total = decimal.Zero; r.Splits = nil }, connect.CodeInvalidArgument, "total"},
		{"huge exponent total", func(r *api.CreateTransactionRequest) { r.Total = d("1e100000000") }, connect.CodeInvalidArgument, "total"},
		{"tiny exponent split", func(r *api.CreateTransactionRequest) { r.Splits[1].Amount = d("1e-10000000") }, connect.CodeInvalidArgument, "splits"},
		{"removed payer", func(r *api.CreateTransactionRequest) { r.PayerID = dave }, connect.CodeInvalidArgument, "payer_id"},
		{"payer from another team", func(r *api.CreateTransactionRequest) { r.PayerID = otherIDs[0] }, connect.CodeInvalidArgument, "payer_id"},
		{"removed split participant", func(r *api.CreateTransactionRequest) { r.Splits[1].ParticipantID = dave }, connect.CodeInvalidArgument, "splits"},
		{"duplicate split", func(r *api.CreateTransactionRequest) { r.Splits[1].ParticipantID = alice }, connect.CodeInvalidArgument, "splits"},
		{"unknown team", func(r *api.CreateTransactionRequest) { r.TeamID = "missing" }, connect.CodeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := ts.ledger.CreateTransaction(ctx, connect.NewRequest(req))
			assertCode(t, err, tt.code)
			if tt.field != "" {
				if field := errorMeta(t, err, headerField); field != tt.field {
					t.Errorf("field: expected %q, got %q", tt.field, field)
				}
			}
		})
	}

	t.Run("unbalanced splits carry the difference", func(t *testing.T) {
		req := valid()
		req.Splits[1].Amount = d("15")
		_, err := ts.ledger.CreateTransaction(ctx, connect.NewRequest(req))
		assertCode(t, err, connect.CodeInvalidArgument)
		if diff := errorMeta(t, err, headerDifference); diff != "10.00" {
			t.Errorf("difference: expected 10.00, got %q", diff)
		}
	})

	list, err := ts.ledger.ListTransactions(ctx, connect.NewRequest(&api.ListTransactionsRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list.Msg.Transactions) != 0 {
		t.Errorf("rejected transactions must not be stored, found %d", len(list.Msg.Transactions))
	}
	if n := testutil.ToFloat64(ts.metrics.ValidationRejections.WithLabelValues("payer_id")); n != 2 {
		t.Errorf("validation_rejections{payer_id}: expected 2, got %v", n)
	}
}

func TestCreateRepayment(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")
	alice, bob := ids[0], ids[1]

	ts.addExpense(t, teamID, alice, "2025-03-01", "40", map[string]string{alice: "20", bob: "20"})

	resp, err := ts.ledger.CreateRepayment(ctx, connect.NewRequest(&api.CreateRepaymentRequest{
		TeamID:  teamID,
		PayorID: bob,
		PayeeID: alice,
		Amount:  d("20"),
		Date:    "2025-03-05",
	}))
	if err != nil {
		t.Fatalf("CreateRepayment failed: %v", err)
	}
	tx := resp.Msg.Transaction
	if !tx.IsRepayment || tx.PayerID != bob || tx.Title != "Repayment: Bob → Alice" {
		t.Errorf("unexpected repayment %+v", tx)
	}
	if len(tx.Splits) != 1 || tx.Splits[0].ParticipantID != alice {
		t.Errorf("repayment must have the payee as its only split, got %+v", tx.Splits)
	}

	balances, err := ts.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	for id, net := range balancesOf(balances.Msg) {
		if net != "0.00" {
			t.Errorf("balance %s: expected 0.00 after repayment, got %s", id, net)
		}
	}
	if len(balances.Msg.SuggestedRepayments) != 0 {
		t.Errorf("expected no suggested repayments, got %+v", balances.Msg.SuggestedRepayments)
	}

	_, err = ts.ledger.CreateRepayment(ctx, connect.NewRequest(&api.CreateRepaymentRequest{
		TeamID: teamID, PayorID: bob, PayeeID: bob, Amount: d("1"), Date: "2025-03-05",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = ts.ledger.CreateRepayment(ctx, connect.NewRequest(&api.CreateRepaymentRequest{
		TeamID: teamID, PayorID: bob, PayeeID: alice, Amount: d("1e-10000000"), Date: "2025-03-05",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
	if field := errorMeta(t, err, headerField); field != "amount" {
		t.Errorf("field: expected amount, got %q", field)
	}

	if n := testutil.ToFloat64(ts.metrics.TransactionsCreated.WithLabelValues("repayment")); n != 1 {
		t.Errorf("transactions_created{repayment}: expected 1, got %v", n)
	}
}

func TestDeleteTransaction(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")
	tx := ts.addExpense(t, teamID, ids[0], "2025-03-01", "10", map[string]string{ids[1]: "10"})

	before, err := ts.store.TeamVersion(ctx, teamID)
	if err != nil {
		t.Fatalf("TeamVersion failed: %v", err)
	}

	del := func() error {
		_, err := ts.ledger.DeleteTransaction(ctx, connect.NewRequest(&api.DeleteTransactionRequest{
			TeamID:        teamID,
			TransactionID: tx.ID,
		}))
		return err
	}
	if err := del(); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	// Deleting a missing transaction is a no-op.
	if err := del(); err != nil {
		t.Fatalf("second DeleteTransaction failed: %v", err)
	}

	after, _ := ts.store.TeamVersion(ctx, teamID)
	if after != before+1 {
		t.Errorf("version: expected %d, got %d", before+1, after)
	}

	balances, err := ts.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	for id, net := range balancesOf(balances.Msg) {
		if net != "0.00" {
			t.Errorf("balance %s: expected 0.00 after delete, got %s", id, net)
		}
	}
	if n := testutil.ToFloat64(ts.metrics.TransactionsDeleted); n != 1 {
		t.Errorf("transactions_deleted: expected 1, got %v", n)
	}

	_, err = ts.ledger.DeleteTransaction(ctx, connect.NewRequest(&api.DeleteTransactionRequest{
		TeamID: "missing", TransactionID: tx.ID,
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestListTransactions(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")
	jan := ts.addExpense(t, teamID, ids[0], "2025-01-15", "10", nil)
	feb1 := ts.addExpense(t, teamID, ids[1], "2025-02-01", "20", nil)
	feb2 := ts.addExpense(t, teamID, ids[0], "2025-02-20", "30", nil)

	tests := []struct {
		month string
		want  []string
	}{
		{"", []string{feb2.ID, feb1.ID, jan.ID}},
		{"2025-02", []string{feb2.ID, feb1.ID}},
		{"2025-01", []string{jan.ID}},
		{"2024-12", nil},
	}
	for _, tt := range tests {
		t.Run("month="+tt.month, func(t *testing.T) {
			resp, err := ts.ledger.ListTransactions(ctx, connect.NewRequest(&api.ListTransactionsRequest{
				TeamID: teamID,
				Month:  tt.month,
			}))
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			if len(resp.Msg.Transactions) != len(tt.want) {
				t.Fatalf("expected %d transactions, got %d", len(tt.want), len(resp.Msg.Transactions))
			}
			for i, tx := range resp.Msg.Transactions {
				if tx.ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], tx.ID)
				}
			}
		})
	}

	_, err := ts.ledger.ListTransactions(ctx, connect.NewRequest(&api.ListTransactionsRequest{
		TeamID: teamID,
		Month:  "2025-13",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	months, err := ts.ledger.ListMonths(ctx, connect.NewRequest(&api.ListMonthsRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("ListMonths failed: %v", err)
	}
	want := []string{"2025-03", "2025-02", "2025-01"}
	if strings.Join(months.Msg.Months, ",") != strings.Join(want, ",") {
		t.Errorf("months: expected %v, got %v", want, months.Msg.Months)
	}
}

func TestGetBalances_RemovedParticipant(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob", "Carol")
	alice, bob, carol := ids[0], ids[1], ids[2]
	ts.addExpense(t, teamID, alice, "2025-03-01", "30", map[string]string{alice: "10", bob: "10", carol: "10"})

	if _, err := ts.teams.RemoveParticipant(ctx, connect.NewRequest(&api.RemoveParticipantRequest{
		TeamID: teamID, ParticipantID: bob,
	})); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}

	resp, err := ts.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}

	var found bool
	for _, b := range resp.Msg.Balances {
		if b.ParticipantID != bob {
			continue
		}
		found = true
		if !b.Removed || b.Name != "Bob (removed)" || !b.NetBalance.Equal(d("-10")) {
			t.Errorf("unexpected removed balance %+v", b)
		}
	}
	if !found {
		t.Fatal("removed participant with history must keep a balance line")
	}

	var settled decimal.Decimal
	for _, r := range resp.Msg.SuggestedRepayments {
		if r.ToID != alice {
			t.Errorf("every repayment should go to Alice, got %+v", r)
		}
		if r.FromID == bob && r.FromName != "Bob (removed)" {
			t.Errorf("from_name: expected 'Bob (removed)', got %q", r.FromName)
		}
		settled = settled.Add(r.Amount)
	}
	if !settled.Equal(d("20")) {
		t.Errorf("suggested repayments should settle 20, got %s", settled)
	}
}

func TestGetBalances_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ts, cleanup := setupTestServer(t, withCache(cache.NewRedis(client, time.Minute)))
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Roommates", "Alice", "Bob")
	ts.addExpense(t, teamID, ids[0], "2025-03-01", "10", map[string]string{ids[1]: "10"})

	get := func() *api.GetBalancesResponse {
		t.Helper()
		resp, err := ts.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{TeamID: teamID}))
		if err != nil {
			t.Fatalf("GetBalances failed: %v", err)
		}
		return resp.Msg
	}

	first := get()
	second := get()
	if first.Version != second.Version {
		t.Fatalf("version changed between reads: %d -> %d", first.Version, second.Version)
	}
	if !mr.Exists(cache.Key(teamID, first.Version)) {
		t.Errorf("expected cache entry %s", cache.Key(teamID, first.Version))
	}
	if got := balancesOf(second)[ids[1]]; got != "-10.00" {
		t.Errorf("cached balance: expected -10.00, got %s", got)
	}

	if n := testutil.ToFloat64(ts.metrics.CacheLookups.WithLabelValues("miss")); n != 1 {
		t.Errorf("cache misses: expected 1, got %v", n)
	}
	if n := testutil.ToFloat64(ts.metrics.CacheLookups.WithLabelValues("hit")); n != 1 {
		t.Errorf("cache hits: expected 1, got %v", n)
	}

	// A write moves the version, so the next read misses.
	ts.addExpense(t, teamID, ids[1], "2025-03-02", "10", map[string]string{ids[0]: "10"})
	third := get()
	if third.Version == first.Version {
		t.Error("expected a new version after a write")
	}
	if got := balancesOf(third)[ids[1]]; got != "0.00" {
		t.Errorf("balance after write: expected 0.00, got %s", got)
	}
	if n := testutil.ToFloat64(ts.metrics.CacheLookups.WithLabelValues("miss")); n != 2 {
		t.Errorf("cache misses: expected 2, got %v", n)
	}
}

func TestExportTransactions(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	teamID, ids := ts.createTeam(t, "Ski Trip!", "Alice", "Bob")
	ts.addExpense(t, teamID, ids[0], "2025-01-10", "30", map[string]string{ids[0]: "15", ids[1]: "15"})
	ts.addExpense(t, teamID, ids[1], "2025-02-10", "8", map[string]string{ids[0]: "8"})

	resp, err := ts.ledger.ExportTransactions(ctx, connect.NewRequest(&api.ExportTransactionsRequest{
		TeamID: teamID,
		Month:  "2025-01",
		BOM:    true,
	}))
	if err != nil {
		t.Fatalf("ExportTransactions failed: %v", err)
	}
	if resp.Msg.Filename != "ski-trip-2025-01.csv" {
		t.Errorf("filename: expected ski-trip-2025-01.csv, got %s", resp.Msg.Filename)
	}
	want := "\uFEFF" +
		"date,title,payer,total,Alice,Bob\n" +
		"2025-01-10,Expense,Alice,30.00,15.00,15.00\n"
	if string(resp.Msg.Content) != want {
		t.Errorf("content:\nexpected %q\n     got %q", want, string(resp.Msg.Content))
	}

	all, err := ts.ledger.ExportTransactions(ctx, connect.NewRequest(&api.ExportTransactionsRequest{TeamID: teamID}))
	if err != nil {
		t.Fatalf("ExportTransactions failed: %v", err)
	}
	if all.Msg.Filename != "ski-trip-all.csv" {
		t.Errorf("filename: expected ski-trip-all.csv, got %s", all.Msg.Filename)
	}
	if strings.HasPrefix(string(all.Msg.Content), "\uFEFF") {
		t.Error("BOM written without being requested")
	}
	if lines := strings.Count(string(all.Msg.Content), "\n"); lines != 3 {
		t.Errorf("expected header plus 2 rows, got %d lines", lines)
	}

	_, err = ts.ledger.ExportTransactions(ctx, connect.NewRequest(&api.ExportTransactionsRequest{
		TeamID: teamID,
		Month:  "January",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}
