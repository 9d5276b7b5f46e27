package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	v1 "github.com/yndnr/gatemesh-go/api/receptionist/v1"
)

var errPanic = connect.NewError(connect.CodeInternal, errors.New("internal error: panic recovered"))

// Codes a misbehaving or departing client causes on its own. They are
// logged at info, everything else at error.
var clientCodes = map[connect.Code]bool{
	connect.CodeNotFound:          true,
	connect.CodeInvalidArgument:   true,
	connect.CodeResourceExhausted: true,
	connect.CodeCanceled:          true,
}

// LoggingInterceptor logs receptionist RPCs with the client they were made
// for. Successful calls go to debug since heartbeats arrive every few
// seconds per client.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a LoggingInterceptor.
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		attrs := []any{
			"method", req.Spec().Procedure,
			"peer", req.Peer().Addr,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if m, ok := req.Any().(v1.ClientScoped); ok && m.GetClientID() != "" {
			attrs = append(attrs, "client_id", m.GetClientID())
		}
		i.result(ctx, "receptionist rpc", err, attrs)
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		method, peer := conn.Spec().Procedure, conn.Peer().Addr
		i.logger.InfoContext(ctx, "receptionist rpc stream started", "method", method, "peer", peer)

		start := time.Now()
		err := next(ctx, conn)
		i.result(ctx, "receptionist rpc stream", err, []any{
			"method", method,
			"peer", peer,
			"duration_ms", time.Since(start).Milliseconds(),
		})
		return err
	}
}

func (i *LoggingInterceptor) result(ctx context.Context, what string, err error, attrs []any) {
	switch {
	case err == nil:
		if what == "receptionist rpc stream" {
			i.logger.InfoContext(ctx, what+" completed", attrs...)
			return
		}
		i.logger.DebugContext(ctx, what, attrs...)
	case clientCodes[connect.CodeOf(err)]:
		i.logger.InfoContext(ctx, what+" error", append(attrs, "error", err)...)
	default:
		i.logger.ErrorContext(ctx, what+" error", append(attrs, "error", err)...)
	}
}

// RecoveryInterceptor turns a handler panic into CodeInternal.
type RecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a RecoveryInterceptor.
func NewRecoveryInterceptor(logger *slog.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryInterceptor{logger: logger}
}

// WrapUnary implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
		defer i.catch(req.Spec().Procedure, "receptionist rpc panic recovered", &err)
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) (err error) {
		defer i.catch(conn.Spec().Procedure, "receptionist rpc stream panic recovered", &err)
		return next(ctx, conn)
	}
}

func (i *RecoveryInterceptor) catch(method, msg string, err *error) {
	if r := recover(); r != nil {
		i.logger.Error(msg, "method", method, "panic", r)
		*err = errPanic
	}
}

// DefaultInterceptors returns the handler interceptors of a receptionist,
// outermost first.
func DefaultInterceptors(logger *slog.Logger) []connect.Interceptor {
	return []connect.Interceptor{
		NewRecoveryInterceptor(logger),
		NewLoggingInterceptor(logger),
	}
}
