package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/teamtab/internal/metrics"
)

// ObservabilityInterceptor logs every RPC call and, when metrics are
// configured, records its latency. It covers unary calls and server
// streams.
type ObservabilityInterceptor struct {
	metrics *metrics.Metrics
}

var _ connect.Interceptor = (*ObservabilityInterceptor)(nil)

// LoggingInterceptor returns an interceptor that logs every RPC call.
// It logs the procedure name, user ID, duration, and any error codes/messages.
// m may be nil.
func LoggingInterceptor(m *metrics.Metrics) *ObservabilityInterceptor {
	return &ObservabilityInterceptor{metrics: m}
}

func (i *ObservabilityInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		resp, err := next(ctx, req)
		i.observe(ctx, req.Spec().Procedure, start, err)
		return resp, err
	}
}

func (i *ObservabilityInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *ObservabilityInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		i.observe(ctx, conn.Spec().Procedure, start, err)
		return err
	}
}

func (i *ObservabilityInterceptor) observe(ctx context.Context, procedure string, start time.Time, err error) {
	elapsed := time.Since(start)
	duration := elapsed.Milliseconds()
	userID := GetUserID(ctx) // empty if pre-auth

	code := "ok"
	if err != nil {
		code = connect.CodeOf(err).String()
	}
	if i.metrics != nil {
		i.metrics.RPCDuration.WithLabelValues(procedure, code).Observe(elapsed.Seconds())
	}

	if err == nil {
		slog.Info("RPC ok",
			"procedure", procedure,
			"user_id", userID,
			"duration_ms", duration,
		)
		return
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal && connectErr.Code() != connect.CodeUnknown {
		slog.Warn("RPC error",
			"procedure", procedure,
			"code", connectErr.Code(),
			"error", connectErr.Message(),
			"user_id", userID,
			"duration_ms", duration,
		)
		return
	}
	slog.Error("RPC error",
		"procedure", procedure,
		"error", err,
		"user_id", userID,
		"duration_ms", duration,
	)
}
