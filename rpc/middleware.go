package rpc

import (
	"context"
	"time"

	"github.com/monadicstack/calculator/rpc/metadata"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// clientMiddlewarePipeline is the chain of unary interceptors that every call runs through before
// (and after) the request hits the wire. The first interceptor in the pipeline is the outermost
// one, so it sees the call first and the result last.
type clientMiddlewarePipeline []grpc.UnaryClientInterceptor

// DialOption installs the whole pipeline on a connection.
func (pipeline clientMiddlewarePipeline) DialOption() grpc.DialOption {
	return grpc.WithChainUnaryInterceptor(pipeline...)
}

// writeRequestID makes sure the call has a request ID (generating one when the caller didn't
// supply their own) and sends it to the server in the "x-request-id" metadata header.
func writeRequestID(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx, _ = metadata.EnsureRequestID(ctx)
	return invoker(metadata.ToOutgoing(ctx), method, req, reply, cc, opts...)
}

// logCall records the outcome of every call at debug level: the method, request ID, how long it
// took and the resulting status code. Failures are reported to the user by whoever made the call,
// so we don't shout about them here.
func logCall(logger logrus.FieldLogger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		requestID, _ := metadata.RequestID(ctx)
		entry := logger.WithFields(logrus.Fields{
			"method":     method,
			"request_id": requestID,
			"code":       status.Code(err).String(),
			"duration":   time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Debug("rpc: call failed")
		} else {
			entry.Debug("rpc: call completed")
		}
		return err
	}
}
