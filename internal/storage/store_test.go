package storage

import (
	"testing"
	"time"

	"github.com/mmynk/teamtab/internal/models"
)

func TestTransactionFilter_Matcher(t *testing.T) {
	on := func(s string) *models.Transaction {
		d, err := models.ParseDate(s)
		if err != nil {
			t.Fatal(err)
		}
		return &models.Transaction{Date: d}
	}

	tests := []struct {
		name  string
		month string
		date  string
		want  bool
	}{
		{name: "first day", month: "2025-03", date: "2025-03-01", want: true},
		{name: "last day", month: "2025-03", date: "2025-03-31", want: true},
		{name: "day before", month: "2025-03", date: "2025-02-28", want: false},
		{name: "next month", month: "2025-03", date: "2025-04-01", want: false},
		{name: "blank month", month: "", date: "1999-12-31", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := TransactionFilter{Month: tt.month}.Matcher()
			if err != nil {
				t.Fatalf("Matcher failed: %v", err)
			}
			if got := match(on(tt.date)); got != tt.want {
				t.Errorf("match(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}

	t.Run("range agrees with matcher", func(t *testing.T) {
		start, end, ok, err := TransactionFilter{Month: "2024-02"}.MonthRange()
		if err != nil || !ok {
			t.Fatalf("MonthRange failed: ok=%v err=%v", ok, err)
		}
		if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("range = [%v, %v)", start, end)
		}
		match, _ := TransactionFilter{Month: "2024-02"}.Matcher()
		if !match(on("2024-02-29")) || match(&models.Transaction{Date: end}) {
			t.Error("matcher disagrees with MonthRange bounds")
		}
	})

	t.Run("invalid month", func(t *testing.T) {
		if _, err := (TransactionFilter{Month: "2025-13"}).Matcher(); err == nil {
			t.Error("expected error for invalid month")
		}
	})
}
