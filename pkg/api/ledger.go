package api

import "github.com/shopspring/decimal"

// SplitAmount is one participant's share of a transaction.
type SplitAmount struct {
	ParticipantID string          `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// Transaction is the wire form of a recorded expense or repayment.
type Transaction struct {
	ID          string          `json:"id"`
	TeamID      string          `json:"team_id"`
	Title       string          `json:"title"`
	Date        string          `json:"date"`
	PayerID     string          `json:"payer_id"`
	PayerName   string          `json:"payer_name,omitempty"`
	Total       decimal.Decimal `json:"total"`
	IsRepayment bool            `json:"is_repayment"`
	Splits      []*SplitAmount  `json:"splits"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// CalculateSplitRequest previews a split without recording anything.
// Amounts are free text as typed by the user; blank means zero.
type CalculateSplitRequest struct {
	TeamID string `json:"team_id"`

	// Mode is "manual", "even" or "hybrid".
	Mode string `json:"mode"`

	// Total may be blank in manual mode; it is then derived from Amounts.
	Total string `json:"total,omitempty"`

	// ParticipantIDs defaults to the team's active participants.
	ParticipantIDs []string `json:"participant_ids,omitempty"`

	// Selected is the inclusion set for hybrid mode.
	Selected []string `json:"selected,omitempty"`

	// HybridMode is "manual" or "even".
	HybridMode string `json:"hybrid_mode,omitempty"`

	Amounts map[string]string `json:"amounts,omitempty"`
}

type CalculateSplitResponse struct {
	Splits     []*SplitAmount  `json:"splits"`
	Total      decimal.Decimal `json:"total"`
	Sum        decimal.Decimal `json:"sum"`
	Difference decimal.Decimal `json:"difference"`
	Balanced   bool            `json:"balanced"`
}

type CreateTransactionRequest struct {
	TeamID  string          `json:"team_id"`
	Title   string          `json:"title"`
	Date    string          `json:"date"`
	PayerID string          `json:"payer_id"`
	Total   decimal.Decimal `json:"total"`
	Splits  []*SplitAmount  `json:"splits,omitempty"`
}

type CreateTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type CreateRepaymentRequest struct {
	TeamID  string          `json:"team_id"`
	PayorID string          `json:"payor_id"`
	PayeeID string          `json:"payee_id"`
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"`
	Title   string          `json:"title,omitempty"`
}

type CreateRepaymentResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type DeleteTransactionRequest struct {
	TeamID        string `json:"team_id"`
	TransactionID string `json:"transaction_id"`
}

type DeleteTransactionResponse struct{}

type ListTransactionsRequest struct {
	TeamID string `json:"team_id"`
	// Month is YYYY-MM; blank lists every month.
	Month string `json:"month,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type ListMonthsRequest struct {
	TeamID string `json:"team_id"`
}

type ListMonthsResponse struct {
	Months []string `json:"months"`
}

// Balance is one participant's net position.
// Positive means the group owes them; negative means they owe the group.
type Balance struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Removed       bool            `json:"removed,omitempty"`
	NetBalance    decimal.Decimal `json:"net_balance"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalOwed     decimal.Decimal `json:"total_owed"`
}

// SuggestedRepayment is a transfer that would help settle the team.
type SuggestedRepayment struct {
	FromID   string          `json:"from_id"`
	FromName string          `json:"from_name"`
	ToID     string          `json:"to_id"`
	ToName   string          `json:"to_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// ConsistencyWarning flags a stored transaction whose splits do not add
// up to its total.
type ConsistencyWarning struct {
	TransactionID string          `json:"transaction_id"`
	Total         decimal.Decimal `json:"total"`
	SplitSum      decimal.Decimal `json:"split_sum"`
	Message       string          `json:"message"`
}

type GetBalancesRequest struct {
	TeamID string `json:"team_id"`
}

type GetBalancesResponse struct {
	TeamID              string                `json:"team_id"`
	Version             int64                 `json:"version"`
	Balances            []*Balance            `json:"balances"`
	SuggestedRepayments []*SuggestedRepayment `json:"suggested_repayments"`
	Warnings            []*ConsistencyWarning `json:"warnings,omitempty"`
}

type ExportTransactionsRequest struct {
	TeamID string `json:"team_id"`
	Month  string `json:"month,omitempty"`
	BOM    bool   `json:"bom,omitempty"`
}

type ExportTransactionsResponse struct {
	Filename string `json:"filename"`
	// Content is the CSV document; base64 in JSON.
	Content []byte `json:"content"`
}

type WatchBalancesRequest struct {
	TeamID string `json:"team_id"`
}
