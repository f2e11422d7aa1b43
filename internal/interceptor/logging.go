package interceptor

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryLogger tags the context with the gRPC method and logs every call.
func UnaryLogger(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx = slogctx.Append(ctx, "grpc_method", info.FullMethod)
	start := time.Now()

	resp, err := handler(ctx, req)

	slogctx.Info(ctx, "grpc request",
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
