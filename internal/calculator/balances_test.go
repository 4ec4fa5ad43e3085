package calculator

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/models"
)

func expense(id, payer, total string, splits map[string]string) *models.Transaction {
	tx := &models.Transaction{ID: id, PayerID: payer, Total: d(total)}
	for p, amount := range splits {
		tx.Splits = append(tx.Splits, models.Split{TransactionID: id, ParticipantID: p, Amount: d(amount)})
	}
	return tx
}

func repayment(id, from, to, amount string) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		PayerID:     from,
		Total:       d(amount),
		IsRepayment: true,
		Splits:      []models.Split{{TransactionID: id, ParticipantID: to, Amount: d(amount)}},
	}
}

func assertNet(t *testing.T, sheet *BalanceSheet, want map[string]string) {
	t.Helper()
	for p, amount := range want {
		if got := sheet.Net(p); !got.Equal(d(amount)) {
			t.Errorf("net(%s) = %s, want %s", p, got, amount)
		}
	}
}

func TestCalculateBalances(t *testing.T) {
	people := []string{"A", "B", "C"}

	t.Run("no transactions means all zero", func(t *testing.T) {
		sheet := CalculateBalances(people, nil)
		if len(sheet.Balances) != 3 {
			t.Fatalf("expected 3 balances, got %d", len(sheet.Balances))
		}
		for _, b := range sheet.Balances {
			if !b.NetBalance.IsZero() {
				t.Errorf("%s = %s, want 0", b.ParticipantID, b.NetBalance)
			}
		}
	})

	t.Run("expense split three ways", func(t *testing.T) {
		sheet := CalculateBalances(people, []*models.Transaction{
			expense("t1", "A", "60", map[string]string{"A": "20", "B": "20", "C": "20"}),
		})
		assertNet(t, sheet, map[string]string{"A": "40", "B": "-20", "C": "-20"})

		a, _ := sheet.Get("A")
		if !a.TotalPaid.Equal(d("60")) || !a.TotalOwed.Equal(d("20")) {
			t.Errorf("A paid/owed = %s/%s, want 60/20", a.TotalPaid, a.TotalOwed)
		}
		if !sheet.Sum().IsZero() {
			t.Errorf("sum = %s, want 0", sheet.Sum())
		}
	})

	t.Run("repayment after expense", func(t *testing.T) {
		sheet := CalculateBalances(people, []*models.Transaction{
			expense("t1", "A", "60", map[string]string{"A": "20", "B": "20", "C": "20"}),
			repayment("t2", "B", "A", "15"),
		})
		assertNet(t, sheet, map[string]string{"A": "55", "B": "-35", "C": "-20"})
		if !sheet.Sum().IsZero() {
			t.Errorf("sum = %s, want 0", sheet.Sum())
		}
	})

	t.Run("self-paid expense without splits nets to zero", func(t *testing.T) {
		sheet := CalculateBalances(people, []*models.Transaction{
			expense("t1", "B", "25", nil),
		})
		assertNet(t, sheet, map[string]string{"A": "0", "B": "0", "C": "0"})
		b, _ := sheet.Get("B")
		if !b.TotalPaid.Equal(d("25")) {
			t.Errorf("B paid = %s, want 25", b.TotalPaid)
		}
		if len(sheet.Violations) != 0 {
			t.Errorf("self-paid expense is not a violation: %v", sheet.Violations)
		}
	})

	t.Run("inconsistent stored splits are reported not fatal", func(t *testing.T) {
		sheet := CalculateBalances(people, []*models.Transaction{
			expense("bad", "A", "100", map[string]string{"B": "30", "C": "30"}),
		})
		if len(sheet.Violations) != 1 {
			t.Fatalf("expected 1 violation, got %d", len(sheet.Violations))
		}
		v := sheet.Violations[0]
		if v.TransactionID != "bad" || !v.Difference().Equal(d("40")) {
			t.Errorf("unexpected violation %+v", v)
		}
		// Splits are authoritative: B and C owe what is recorded.
		assertNet(t, sheet, map[string]string{"A": "60", "B": "-30", "C": "-30"})
		if !sheet.Sum().IsZero() {
			t.Errorf("sum = %s, want 0", sheet.Sum())
		}
	})

	t.Run("removed participants still resolve from history", func(t *testing.T) {
		sheet := CalculateBalances([]string{"A"}, []*models.Transaction{
			expense("t1", "gone", "10", map[string]string{"A": "10"}),
		})
		assertNet(t, sheet, map[string]string{"A": "-10", "gone": "10"})
		if sheet.Balances[0].ParticipantID != "A" {
			t.Errorf("known participants come first, got %s", sheet.Balances[0].ParticipantID)
		}
	})

	t.Run("transactions without payer are skipped", func(t *testing.T) {
		sheet := CalculateBalances(people, []*models.Transaction{
			{ID: "x", Total: d("10")},
			nil,
		})
		if !sheet.Sum().IsZero() || len(sheet.Balances) != 3 {
			t.Errorf("unexpected sheet %+v", sheet)
		}
	})
}

func TestCalculateBalances_RepaymentSymmetry(t *testing.T) {
	people := []string{"X", "Y", "Z"}
	base := []*models.Transaction{
		expense("t1", "X", "90", map[string]string{"X": "30", "Y": "30", "Z": "30"}),
		expense("t2", "Z", "12.34", map[string]string{"Y": "12.34"}),
	}
	before := CalculateBalances(people, base)
	after := CalculateBalances(people, append(base, repayment("r1", "X", "Y", "7.5")))

	deltas := map[string]string{"X": "7.5", "Y": "-7.5", "Z": "0"}
	for p, delta := range deltas {
		got := after.Net(p).Sub(before.Net(p))
		if !got.Equal(d(delta)) {
			t.Errorf("delta(%s) = %s, want %s", p, got, delta)
		}
	}
}

func TestCalculateBalances_DeleteRestoresBalances(t *testing.T) {
	people := []string{"A", "B"}
	base := []*models.Transaction{expense("t1", "A", "10", map[string]string{"B": "10"})}
	extra := expense("t2", "B", "33.33", map[string]string{"A": "11.11", "B": "22.22"})

	before := CalculateBalances(people, base)
	_ = CalculateBalances(people, append(append([]*models.Transaction{}, base...), extra))
	restored := CalculateBalances(people, base)

	for _, p := range people {
		if !before.Net(p).Equal(restored.Net(p)) {
			t.Errorf("net(%s) = %s after delete, want %s", p, restored.Net(p), before.Net(p))
		}
	}
}

// Aggregating any permutation of the same transactions gives identical
// balances, and the balances always sum to zero.
func TestCalculateBalances_OrderIndependent(t *testing.T) {
	people := []string{"A", "B", "C", "D"}
	txs := []*models.Transaction{
		expense("t1", "A", "100", map[string]string{"A": "33.33", "B": "33.33", "C": "33.34"}),
		expense("t2", "B", "0.07", map[string]string{"C": "0.03", "D": "0.04"}),
		expense("t3", "D", "59.99", map[string]string{"A": "59.99"}),
		repayment("t4", "C", "A", "20"),
		expense("t5", "C", "18", nil),
		expense("t6", "ghost", "5", map[string]string{"B": "5"}),
	}

	want := CalculateBalances(people, txs)
	if !want.Sum().Equal(decimal.Zero) {
		t.Fatalf("sum = %s, want 0", want.Sum())
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]*models.Transaction{}, txs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := CalculateBalances(people, shuffled)
		if len(got.Balances) != len(want.Balances) {
			t.Fatalf("run %d: %d balances, want %d", i, len(got.Balances), len(want.Balances))
		}
		for j, b := range got.Balances {
			w := want.Balances[j]
			if b.ParticipantID != w.ParticipantID || !b.NetBalance.Equal(w.NetBalance) {
				t.Fatalf("run %d: balance %d = %s %s, want %s %s",
					i, j, b.ParticipantID, b.NetBalance, w.ParticipantID, w.NetBalance)
			}
		}
	}
}
