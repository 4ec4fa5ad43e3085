package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/cache"
	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/ledger"
	"github.com/mmynk/teamtab/internal/metrics"
	"github.com/mmynk/teamtab/internal/middleware"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
	"github.com/mmynk/teamtab/internal/notify"
	"github.com/mmynk/teamtab/internal/settlement"
	"github.com/mmynk/teamtab/internal/storage"
	"github.com/mmynk/teamtab/pkg/api"
	"github.com/mmynk/teamtab/pkg/api/apiconnect"
)

// LedgerOptions wires the optional collaborators of a LedgerService.
type LedgerOptions struct {
	// Cache stores computed balance sheets. Defaults to cache.Nop.
	Cache cache.BalanceCache

	// Hub feeds WatchBalances. A private hub is created when nil.
	Hub *notify.Hub

	// Events receives change events. Defaults to Hub.
	Events notify.Publisher

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// LedgerService implements the Connect LedgerService
type LedgerService struct {
	apiconnect.UnimplementedLedgerServiceHandler
	store       storage.Store
	cache       cache.BalanceCache
	events      notify.Publisher
	watcher     *Watcher
	metrics     *metrics.Metrics
	diagnostics calculator.Diagnostics
	now         func() time.Time
}

// NewLedgerService creates a new LedgerService with the given storage backend.
func NewLedgerService(store storage.Store, opts LedgerOptions) *LedgerService {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Hub == nil {
		opts.Hub = notify.NewHub()
	}
	if opts.Events == nil {
		opts.Events = opts.Hub
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &LedgerService{
		store:       store,
		cache:       opts.Cache,
		events:      opts.Events,
		watcher:     NewWatcher(opts.Hub, opts.Metrics),
		metrics:     opts.Metrics,
		diagnostics: logDiagnostics{},
		now:         opts.Now,
	}
	if opts.Metrics != nil {
		s.diagnostics = opts.Metrics
	}
	return s
}

// logDiagnostics reports violations to the log only.
type logDiagnostics struct{}

func (logDiagnostics) ReportViolation(teamID string, v calculator.ConsistencyViolation) {
	slog.Warn("Consistency violation", "team_id", teamID, "violation", v.String())
}

// CalculateSplit previews how a total would be divided. Nothing is stored.
// Manual amounts that do not add up are not an error: the response carries
// balanced=false and the difference still to allocate.
func (s *LedgerService) CalculateSplit(
	ctx context.Context,
	req *connect.Request[api.CalculateSplitRequest],
) (*connect.Response[api.CalculateSplitResponse], error) {
	slog.Info("CalculateSplit request received",
		"team_id", req.Msg.TeamID,
		"mode", req.Msg.Mode,
		"participants", len(req.Msg.ParticipantIDs),
	)

	splitReq, err := s.splitRequest(ctx, req.Msg)
	if err != nil {
		return nil, s.reject(err)
	}

	result, err := calculator.CalculateSplit(splitReq)
	var mismatch *calculator.MismatchError
	if err != nil && !(errors.As(err, &mismatch) && result != nil) {
		return nil, s.reject(err)
	}

	resp := &api.CalculateSplitResponse{
		Splits:     make([]*api.SplitAmount, 0, len(result.Order)),
		Total:      result.Total,
		Sum:        result.Sum,
		Difference: result.Difference(),
		Balanced:   result.Balanced(),
	}
	for _, id := range result.Order {
		resp.Splits = append(resp.Splits, &api.SplitAmount{ParticipantID: id, Amount: result.Splits[id]})
	}
	return connect.NewResponse(resp), nil
}

func (s *LedgerService) splitRequest(ctx context.Context, msg *api.CalculateSplitRequest) (calculator.SplitRequest, error) {
	mode, err := calculator.ParseMode(msg.Mode)
	if err != nil {
		return calculator.SplitRequest{}, err
	}
	total, err := money.Parse(msg.Total)
	if err != nil {
		return calculator.SplitRequest{}, invalidArgument("total", err)
	}
	amounts, err := money.ParseAmounts(msg.Amounts)
	if err != nil {
		return calculator.SplitRequest{}, invalidArgument("amounts", err)
	}

	participants := msg.ParticipantIDs
	if msg.TeamID != "" {
		roster, err := s.loadRoster(ctx, msg.TeamID)
		if err != nil {
			return calculator.SplitRequest{}, err
		}
		if len(participants) == 0 {
			participants = roster.ActiveIDs()
		}
		for _, id := range participants {
			if !roster.IsActive(id) {
				return calculator.SplitRequest{}, &calculator.ReferenceError{Field: "participant_ids", ParticipantID: id}
			}
		}
	}

	splitReq := calculator.SplitRequest{
		Mode:         mode,
		Total:        total,
		Participants: participants,
		Amounts:      amounts,
	}
	if mode == calculator.ModeHybrid {
		splitReq.HybridMode = calculator.ModeManual
		if strings.TrimSpace(msg.HybridMode) != "" {
			if splitReq.HybridMode, err = calculator.ParseMode(msg.HybridMode); err != nil {
				return calculator.SplitRequest{}, invalidArgument("hybrid_mode", err)
			}
		}
		splitReq.Selected = make(map[string]bool, len(msg.Selected))
		for _, id := range msg.Selected {
			splitReq.Selected[id] = true
		}
	}
	return splitReq, nil
}

// CreateTransaction records an expense.
func (s *LedgerService) CreateTransaction(
	ctx context.Context,
	req *connect.Request[api.CreateTransactionRequest],
) (*connect.Response[api.CreateTransactionResponse], error) {
	slog.Info("CreateTransaction request received",
		"team_id", req.Msg.TeamID,
		"title", req.Msg.Title,
		"total", logAmount(req.Msg.Total),
		"splits", len(req.Msg.Splits),
	)

	date, err := models.ParseDate(req.Msg.Date)
	if err != nil {
		return nil, s.reject(invalidArgument("date", err))
	}
	splits := make(map[string]decimal.Decimal, len(req.Msg.Splits))
	for _, sp := range req.Msg.Splits {
		if _, dup := splits[sp.ParticipantID]; dup {
			return nil, s.reject(&calculator.ValidationError{
				Field:  "splits",
				Reason: fmt.Sprintf("participant %s appears more than once", sp.ParticipantID),
			})
		}
		splits[sp.ParticipantID] = sp.Amount
	}

	roster, err := s.loadRoster(ctx, req.Msg.TeamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	tx, err := ledger.BuildExpense(ledger.ExpenseInput{
		TeamID:    req.Msg.TeamID,
		Title:     req.Msg.Title,
		Date:      date,
		PayerID:   req.Msg.PayerID,
		Total:     req.Msg.Total,
		Splits:    splits,
		CreatedBy: middleware.GetUserID(ctx),
	}, roster)
	if err != nil {
		return nil, s.reject(err)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		slog.Error("CreateTransaction failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	s.created(ctx, tx)

	return connect.NewResponse(&api.CreateTransactionResponse{Transaction: transactionToAPI(tx, roster)}), nil
}

// CreateRepayment records a direct transfer from payor to payee.
func (s *LedgerService) CreateRepayment(
	ctx context.Context,
	req *connect.Request[api.CreateRepaymentRequest],
) (*connect.Response[api.CreateRepaymentResponse], error) {
	slog.Info("CreateRepayment request received",
		"team_id", req.Msg.TeamID,
		"payor_id", req.Msg.PayorID,
		"payee_id", req.Msg.PayeeID,
		"amount", logAmount(req.Msg.Amount),
	)

	date, err := models.ParseDate(req.Msg.Date)
	if err != nil {
		return nil, s.reject(invalidArgument("date", err))
	}
	roster, err := s.loadRoster(ctx, req.Msg.TeamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	tx, err := ledger.BuildRepayment(ledger.RepaymentInput{
		TeamID:    req.Msg.TeamID,
		PayorID:   req.Msg.PayorID,
		PayeeID:   req.Msg.PayeeID,
		Amount:    req.Msg.Amount,
		Date:      date,
		Title:     req.Msg.Title,
		CreatedBy: middleware.GetUserID(ctx),
	}, roster)
	if err != nil {
		return nil, s.reject(err)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		slog.Error("CreateRepayment failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	s.created(ctx, tx)

	return connect.NewResponse(&api.CreateRepaymentResponse{Transaction: transactionToAPI(tx, roster)}), nil
}

// DeleteTransaction removes a transaction and its splits. Deleting a
// transaction that does not exist succeeds.
func (s *LedgerService) DeleteTransaction(
	ctx context.Context,
	req *connect.Request[api.DeleteTransactionRequest],
) (*connect.Response[api.DeleteTransactionResponse], error) {
	slog.Info("DeleteTransaction request received",
		"team_id", req.Msg.TeamID,
		"transaction_id", req.Msg.TransactionID,
	)

	if _, err := s.store.GetTeam(ctx, req.Msg.TeamID); err != nil {
		return nil, toConnectError(err)
	}
	_, err := s.store.GetTransaction(ctx, req.Msg.TeamID, req.Msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewResponse(&api.DeleteTransactionResponse{}), nil
	}
	if err != nil {
		slog.Error("DeleteTransaction failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}

	if err := s.store.DeleteTransaction(ctx, req.Msg.TeamID, req.Msg.TransactionID); err != nil {
		slog.Error("DeleteTransaction failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	if s.metrics != nil {
		s.metrics.TransactionsDeleted.Inc()
	}
	publish(ctx, s.events, req.Msg.TeamID, notify.KindTransactionDeleted)

	return connect.NewResponse(&api.DeleteTransactionResponse{}), nil
}

// ListTransactions returns the team's transactions, newest first,
// optionally restricted to one month.
func (s *LedgerService) ListTransactions(
	ctx context.Context,
	req *connect.Request[api.ListTransactionsRequest],
) (*connect.Response[api.ListTransactionsResponse], error) {
	if err := validateMonth(req.Msg.Month); err != nil {
		return nil, s.reject(err)
	}
	roster, err := s.loadRoster(ctx, req.Msg.TeamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	txs, err := s.store.ListTransactions(ctx, req.Msg.TeamID, storage.TransactionFilter{Month: req.Msg.Month})
	if err != nil {
		slog.Error("ListTransactions failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.ListTransactionsResponse{Transactions: make([]*api.Transaction, 0, len(txs))}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, transactionToAPI(tx, roster))
	}
	return connect.NewResponse(resp), nil
}

// ListMonths returns every month with transactions plus the current one,
// newest first.
func (s *LedgerService) ListMonths(
	ctx context.Context,
	req *connect.Request[api.ListMonthsRequest],
) (*connect.Response[api.ListMonthsResponse], error) {
	if _, err := s.store.GetTeam(ctx, req.Msg.TeamID); err != nil {
		return nil, toConnectError(err)
	}
	txs, err := s.store.ListTransactions(ctx, req.Msg.TeamID, storage.TransactionFilter{})
	if err != nil {
		slog.Error("ListMonths failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ListMonthsResponse{Months: settlement.Months(txs, s.now())}), nil
}

// GetBalances returns every participant's net balance together with the
// repayments that would settle the team.
func (s *LedgerService) GetBalances(
	ctx context.Context,
	req *connect.Request[api.GetBalancesRequest],
) (*connect.Response[api.GetBalancesResponse], error) {
	resp, err := s.balances(ctx, req.Msg.TeamID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("GetBalances failed", "team_id", req.Msg.TeamID, "error", err)
		}
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

// ExportTransactions renders the team's transactions as CSV.
func (s *LedgerService) ExportTransactions(
	ctx context.Context,
	req *connect.Request[api.ExportTransactionsRequest],
) (*connect.Response[api.ExportTransactionsResponse], error) {
	slog.Info("ExportTransactions request received", "team_id", req.Msg.TeamID, "month", req.Msg.Month)

	if err := validateMonth(req.Msg.Month); err != nil {
		return nil, s.reject(err)
	}
	team, err := s.store.GetTeam(ctx, req.Msg.TeamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	roster, err := s.roster(ctx, team.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	txs, err := s.store.ListTransactions(ctx, team.ID, storage.TransactionFilter{Month: req.Msg.Month})
	if err != nil {
		slog.Error("ExportTransactions failed", "team_id", team.ID, "error", err)
		return nil, toConnectError(err)
	}

	var buf bytes.Buffer
	if err := settlement.WriteCSV(&buf, roster, txs, settlement.ExportOptions{BOM: req.Msg.BOM}); err != nil {
		slog.Error("ExportTransactions failed", "team_id", team.ID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ExportTransactionsResponse{
		Filename: exportFilename(team.Name, req.Msg.Month),
		Content:  buf.Bytes(),
	}), nil
}

// WatchBalances streams a balance snapshot immediately and again after
// every change to the team.
func (s *LedgerService) WatchBalances(
	ctx context.Context,
	req *connect.Request[api.WatchBalancesRequest],
	stream *connect.ServerStream[api.GetBalancesResponse],
) error {
	teamID := req.Msg.TeamID
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return toConnectError(err)
	}
	slog.Info("WatchBalances started", "team_id", teamID)
	defer slog.Info("WatchBalances stopped", "team_id", teamID)

	return s.watcher.Watch(ctx, teamID, func(ctx context.Context) error {
		resp, err := s.balances(ctx, teamID)
		if err != nil {
			slog.Error("WatchBalances failed", "team_id", teamID, "error", err)
			return toConnectError(err)
		}
		return stream.Send(resp)
	})
}

func (s *LedgerService) balances(ctx context.Context, teamID string) (*api.GetBalancesResponse, error) {
	version, err := s.store.TeamVersion(ctx, teamID)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster(ctx, teamID)
	if err != nil {
		return nil, err
	}
	sheet, err := s.balanceSheet(ctx, teamID, version, roster)
	if err != nil {
		return nil, err
	}
	return balancesToAPI(teamID, version, sheet, roster), nil
}

// balanceSheet folds the team's transactions, consulting the cache first.
// The version is read before the transactions, so a cached sheet is never
// older than its key.
func (s *LedgerService) balanceSheet(ctx context.Context, teamID string, version int64, roster *ledger.Roster) (*calculator.BalanceSheet, error) {
	sheet, ok, err := s.cache.Get(ctx, teamID, version)
	switch {
	case err != nil:
		slog.Warn("Balance cache lookup failed", "team_id", teamID, "error", err)
		s.cacheLookup("error")
	case ok:
		s.cacheLookup("hit")
		return sheet, nil
	default:
		s.cacheLookup("miss")
	}

	txs, err := s.store.ListTransactions(ctx, teamID, storage.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	sheet = calculator.CalculateBalances(roster.AllIDs(), txs)
	for _, v := range sheet.Violations {
		s.diagnostics.ReportViolation(teamID, v)
	}

	if err := s.cache.Set(ctx, teamID, version, sheet); err != nil {
		slog.Warn("Balance cache store failed", "team_id", teamID, "error", err)
	}
	return sheet, nil
}

// loadRoster returns the roster of an existing team, or ErrNotFound.
func (s *LedgerService) loadRoster(ctx context.Context, teamID string) (*ledger.Roster, error) {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.roster(ctx, teamID)
}

func (s *LedgerService) roster(ctx context.Context, teamID string) (*ledger.Roster, error) {
	participants, err := s.store.ListParticipants(ctx, teamID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return ledger.NewRoster(teamID, participants), nil
}

func (s *LedgerService) created(ctx context.Context, tx *models.Transaction) {
	if s.metrics != nil {
		kind := "expense"
		if tx.IsRepayment {
			kind = "repayment"
		}
		s.metrics.TransactionsCreated.WithLabelValues(kind).Inc()
	}
	publish(ctx, s.events, tx.TeamID, notify.KindTransactionCreated)
}

// reject counts a validation failure and maps it for the wire.
func (s *LedgerService) reject(err error) error {
	if field := validationField(err); field != "" && s.metrics != nil {
		s.metrics.ValidationRejections.WithLabelValues(field).Inc()
	}
	return toConnectError(err)
}

func (s *LedgerService) cacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func validateMonth(month string) error {
	if _, _, _, err := (storage.TransactionFilter{Month: month}).MonthRange(); err != nil {
		return invalidArgument("month", err)
	}
	return nil
}

// exportFilename builds e.g. "ski-trip-2025-03.csv".
func exportFilename(teamName, month string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(teamName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "team"
	}
	if month == "" {
		month = "all"
	}
	return name + "-" + month + ".csv"
}

// logAmount renders a request amount for logs without expanding amounts
// that fail money.Check.
func logAmount(d decimal.Decimal) string {
	if err := money.Check(d); err != nil {
		return "invalid"
	}
	return d.String()
}
