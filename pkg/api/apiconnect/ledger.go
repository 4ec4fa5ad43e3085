package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/teamtab/pkg/api"
)

const (
	// LedgerServiceName is the fully-qualified name of the LedgerService service.
	LedgerServiceName = "teamtab.v1.LedgerService"
)

const (
	LedgerServiceCalculateSplitProcedure     = "/teamtab.v1.LedgerService/CalculateSplit"
	LedgerServiceCreateTransactionProcedure  = "/teamtab.v1.LedgerService/CreateTransaction"
	LedgerServiceCreateRepaymentProcedure    = "/teamtab.v1.LedgerService/CreateRepayment"
	LedgerServiceDeleteTransactionProcedure  = "/teamtab.v1.LedgerService/DeleteTransaction"
	LedgerServiceListTransactionsProcedure   = "/teamtab.v1.LedgerService/ListTransactions"
	LedgerServiceListMonthsProcedure         = "/teamtab.v1.LedgerService/ListMonths"
	LedgerServiceGetBalancesProcedure        = "/teamtab.v1.LedgerService/GetBalances"
	LedgerServiceExportTransactionsProcedure = "/teamtab.v1.LedgerService/ExportTransactions"
	LedgerServiceWatchBalancesProcedure      = "/teamtab.v1.LedgerService/WatchBalances"
)

// LedgerServiceClient is a client for the teamtab.v1.LedgerService service.
type LedgerServiceClient interface {
	CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error)
	CreateTransaction(context.Context, *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error)
	CreateRepayment(context.Context, *connect.Request[api.CreateRepaymentRequest]) (*connect.Response[api.CreateRepaymentResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	ListMonths(context.Context, *connect.Request[api.ListMonthsRequest]) (*connect.Response[api.ListMonthsResponse], error)
	GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error)
	ExportTransactions(context.Context, *connect.Request[api.ExportTransactionsRequest]) (*connect.Response[api.ExportTransactionsResponse], error)
	WatchBalances(context.Context, *connect.Request[api.WatchBalancesRequest]) (*connect.ServerStreamForClient[api.GetBalancesResponse], error)
}

// NewLedgerServiceClient constructs a client for the
// teamtab.v1.LedgerService service.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &ledgerServiceClient{
		calculateSplit:     connect.NewClient[api.CalculateSplitRequest, api.CalculateSplitResponse](httpClient, baseURL+LedgerServiceCalculateSplitProcedure, opts...),
		createTransaction:  connect.NewClient[api.CreateTransactionRequest, api.CreateTransactionResponse](httpClient, baseURL+LedgerServiceCreateTransactionProcedure, opts...),
		createRepayment:    connect.NewClient[api.CreateRepaymentRequest, api.CreateRepaymentResponse](httpClient, baseURL+LedgerServiceCreateRepaymentProcedure, opts...),
		deleteTransaction:  connect.NewClient[api.DeleteTransactionRequest, api.DeleteTransactionResponse](httpClient, baseURL+LedgerServiceDeleteTransactionProcedure, opts...),
		listTransactions:   connect.NewClient[api.ListTransactionsRequest, api.ListTransactionsResponse](httpClient, baseURL+LedgerServiceListTransactionsProcedure, opts...),
		listMonths:         connect.NewClient[api.ListMonthsRequest, api.ListMonthsResponse](httpClient, baseURL+LedgerServiceListMonthsProcedure, opts...),
		getBalances:        connect.NewClient[api.GetBalancesRequest, api.GetBalancesResponse](httpClient, baseURL+LedgerServiceGetBalancesProcedure, opts...),
		exportTransactions: connect.NewClient[api.ExportTransactionsRequest, api.ExportTransactionsResponse](httpClient, baseURL+LedgerServiceExportTransactionsProcedure, opts...),
		watchBalances:      connect.NewClient[api.WatchBalancesRequest, api.GetBalancesResponse](httpClient, baseURL+LedgerServiceWatchBalancesProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	calculateSplit     *connect.Client[api.CalculateSplitRequest, api.CalculateSplitResponse]
	createTransaction  *connect.Client[api.CreateTransactionRequest, api.CreateTransactionResponse]
	createRepayment    *connect.Client[api.CreateRepaymentRequest, api.CreateRepaymentResponse]
	deleteTransaction  *connect.Client[api.DeleteTransactionRequest, api.DeleteTransactionResponse]
	listTransactions   *connect.Client[api.ListTransactionsRequest, api.ListTransactionsResponse]
	listMonths         *connect.Client[api.ListMonthsRequest, api.ListMonthsResponse]
	getBalances        *connect.Client[api.GetBalancesRequest, api.GetBalancesResponse]
	exportTransactions *connect.Client[api.ExportTransactionsRequest, api.ExportTransactionsResponse]
	watchBalances      *connect.Client[api.WatchBalancesRequest, api.GetBalancesResponse]
}

func (c *ledgerServiceClient) CalculateSplit(ctx context.Context, req *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return c.calculateSplit.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) CreateTransaction(ctx context.Context, req *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error) {
	return c.createTransaction.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) CreateRepayment(ctx context.Context, req *connect.Request[api.CreateRepaymentRequest]) (*connect.Response[api.CreateRepaymentResponse], error) {
	return c.createRepayment.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	return c.deleteTransaction.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	return c.listTransactions.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListMonths(ctx context.Context, req *connect.Request[api.ListMonthsRequest]) (*connect.Response[api.ListMonthsResponse], error) {
	return c.listMonths.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ExportTransactions(ctx context.Context, req *connect.Request[api.ExportTransactionsRequest]) (*connect.Response[api.ExportTransactionsResponse], error) {
	return c.exportTransactions.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) WatchBalances(ctx context.Context, req *connect.Request[api.WatchBalancesRequest]) (*connect.ServerStreamForClient[api.GetBalancesResponse], error) {
	return c.watchBalances.CallServerStream(ctx, req)
}

// LedgerServiceHandler is an implementation of the teamtab.v1.LedgerService service.
type LedgerServiceHandler interface {
	CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error)
	CreateTransaction(context.Context, *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error)
	CreateRepayment(context.Context, *connect.Request[api.CreateRepaymentRequest]) (*connect.Response[api.CreateRepaymentResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	ListMonths(context.Context, *connect.Request[api.ListMonthsRequest]) (*connect.Response[api.ListMonthsResponse], error)
	GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error)
	ExportTransactions(context.Context, *connect.Request[api.ExportTransactionsRequest]) (*connect.Response[api.ExportTransactionsResponse], error)
	WatchBalances(context.Context, *connect.Request[api.WatchBalancesRequest], *connect.ServerStream[api.GetBalancesResponse]) error
}

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	calculateSplit := connect.NewUnaryHandler(LedgerServiceCalculateSplitProcedure, svc.CalculateSplit, opts...)
	createTransaction := connect.NewUnaryHandler(LedgerServiceCreateTransactionProcedure, svc.CreateTransaction, opts...)
	createRepayment := connect.NewUnaryHandler(LedgerServiceCreateRepaymentProcedure, svc.CreateRepayment, opts...)
	deleteTransaction := connect.NewUnaryHandler(LedgerServiceDeleteTransactionProcedure, svc.DeleteTransaction, opts...)
	listTransactions := connect.NewUnaryHandler(LedgerServiceListTransactionsProcedure, svc.ListTransactions, opts...)
	listMonths := connect.NewUnaryHandler(LedgerServiceListMonthsProcedure, svc.ListMonths, opts...)
	getBalances := connect.NewUnaryHandler(LedgerServiceGetBalancesProcedure, svc.GetBalances, opts...)
	exportTransactions := connect.NewUnaryHandler(LedgerServiceExportTransactionsProcedure, svc.ExportTransactions, opts...)
	watchBalances := connect.NewServerStreamHandler(LedgerServiceWatchBalancesProcedure, svc.WatchBalances, opts...)
	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LedgerServiceCalculateSplitProcedure:
			calculateSplit.ServeHTTP(w, r)
		case LedgerServiceCreateTransactionProcedure:
			createTransaction.ServeHTTP(w, r)
		case LedgerServiceCreateRepaymentProcedure:
			createRepayment.ServeHTTP(w, r)
		case LedgerServiceDeleteTransactionProcedure:
			deleteTransaction.ServeHTTP(w, r)
		case LedgerServiceListTransactionsProcedure:
			listTransactions.ServeHTTP(w, r)
		case LedgerServiceListMonthsProcedure:
			listMonths.ServeHTTP(w, r)
		case LedgerServiceGetBalancesProcedure:
			getBalances.ServeHTTP(w, r)
		case LedgerServiceExportTransactionsProcedure:
			exportTransactions.ServeHTTP(w, r)
		case LedgerServiceWatchBalancesProcedure:
			watchBalances.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedLedgerServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedLedgerServiceHandler struct{}

func (UnimplementedLedgerServiceHandler) CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.CalculateSplit is not implemented"))
}

func (UnimplementedLedgerServiceHandler) CreateTransaction(context.Context, *connect.Request[api.CreateTransactionRequest]) (*connect.Response[api.CreateTransactionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.CreateTransaction is not implemented"))
}

func (UnimplementedLedgerServiceHandler) CreateRepayment(context.Context, *connect.Request[api.CreateRepaymentRequest]) (*connect.Response[api.CreateRepaymentResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.CreateRepayment is not implemented"))
}

func (UnimplementedLedgerServiceHandler) DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.DeleteTransaction is not implemented"))
}

func (UnimplementedLedgerServiceHandler) ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.ListTransactions is not implemented"))
}

func (UnimplementedLedgerServiceHandler) ListMonths(context.Context, *connect.Request[api.ListMonthsRequest]) (*connect.Response[api.ListMonthsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.ListMonths is not implemented"))
}

func (UnimplementedLedgerServiceHandler) GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.GetBalances is not implemented"))
}

func (UnimplementedLedgerServiceHandler) ExportTransactions(context.Context, *connect.Request[api.ExportTransactionsRequest]) (*connect.Response[api.ExportTransactionsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.ExportTransactions is not implemented"))
}

func (UnimplementedLedgerServiceHandler) WatchBalances(context.Context, *connect.Request[api.WatchBalancesRequest], *connect.ServerStream[api.GetBalancesResponse]) error {
	return connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.LedgerService.WatchBalances is not implemented"))
}
