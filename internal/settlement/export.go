package settlement

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/mmynk/teamtab/internal/ledger"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
)

// utf8BOM makes spreadsheet applications detect the encoding.
const utf8BOM = "\uFEFF"

// ExportOptions controls the CSV layout.
type ExportOptions struct {
	// BOM prefixes the output with a UTF-8 byte order mark.
	BOM bool
}

// ExportColumns returns the participant columns of an export: every
// active participant in team order, plus removed or unknown participants
// that appear in txs.
func ExportColumns(roster *ledger.Roster, txs []*models.Transaction) []string {
	referenced := make(map[string]bool)
	for _, tx := range txs {
		referenced[tx.PayerID] = true
		for _, s := range tx.Splits {
			referenced[s.ParticipantID] = true
		}
	}

	var cols []string
	seen := make(map[string]bool)
	for _, id := range roster.AllIDs() {
		if roster.IsActive(id) || referenced[id] {
			cols = append(cols, id)
			seen[id] = true
		}
	}
	for _, tx := range txs {
		for _, s := range tx.Splits {
			if !seen[s.ParticipantID] {
				cols = append(cols, s.ParticipantID)
				seen[s.ParticipantID] = true
			}
		}
	}
	return cols
}

// WriteCSV writes one row per transaction with the header
// date,title,payer,total followed by one column per participant holding
// that participant's split amount (0 when not involved).
func WriteCSV(w io.Writer, roster *ledger.Roster, txs []*models.Transaction, opts ExportOptions) error {
	if opts.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cols := ExportColumns(roster, txs)

	cw := csv.NewWriter(w)
	header := []string{"date", "title", "payer", "total"}
	for _, id := range cols {
		header = append(header, roster.Label(id))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, tx := range txs {
		row := []string{
			models.FormatDate(tx.Date),
			tx.Title,
			roster.Label(tx.PayerID),
			money.Format(tx.Total),
		}
		for _, id := range cols {
			amount, ok := tx.SplitFor(id)
			if !ok {
				row = append(row, "0")
				continue
			}
			row = append(row, money.Format(amount))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write transaction %s: %w", tx.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
