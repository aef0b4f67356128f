package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

// RequestIDInterceptor tags every call with a request ID (taken from the
// "x-request-id" header when present) and logs its outcome.
func RequestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)

		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "req_id", reqID, "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("rpc.failed", append(attrs, "code", status.Code(err).String(), "error", err)...)
			return nil, err
		}
		logger.Info("rpc.ok", attrs...)
		return resp, nil
	}
}
