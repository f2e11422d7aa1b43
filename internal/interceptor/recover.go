package interceptor

import (
	"context"
	"runtime"

	slogctx "github.com/veqryn/slog-context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const stackBufSize = 9 << 11

var ErrPanic = status.Error(codes.Internal, "an unexpected error occurred on the server, please try again")

// Recover turns handler panics into ErrPanic and logs the stack.
// It should be the innermost interceptor.
type Recover struct{}

func NewRecover() *Recover {
	return &Recover{}
}

func (r *Recover) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrPanic
			r.logPanic(ctx, info.FullMethod, rec)
		}
	}()

	return handler(ctx, req)
}

func (r *Recover) logPanic(ctx context.Context, method string, rec any) {
	stackBuf := make([]byte, stackBufSize)
	stackSize := runtime.Stack(stackBuf, false)
	slogctx.Error(ctx, "recovered from panic",
		"method", method,
		"panic", rec,
		"stack", string(stackBuf[:stackSize]),
	)
}
