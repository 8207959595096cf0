// Package metadata provides request-scoped values for your RPC calls. The standard
// context.Context lets you store values for the request, true, but those don't follow you
// across the wire. Values stored here are copied onto the outgoing gRPC metadata of every
// call so the server sees them too; that makes them ideal for correlating a client-side log
// line with the server-side log line for the same call.
//
// Right now the only value we care about is the request ID. The client stamps every call
// with one automatically, but you can supply your own if you already have an ID you want
// to carry through.
package metadata

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the gRPC metadata key that carries the request ID to the server.
const RequestIDHeader = "x-request-id"

// The context value entry for our request ID.
type requestIDKey struct{}

// RequestID returns the request ID stored on the context, if any. The second return value
// tells you whether one was actually present.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithRequestID stores the request ID on the context. Blank IDs are ignored and you get
// back the original context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// EnsureRequestID returns a context that definitely has a request ID. If the context already
// has one, you get it back unchanged. Otherwise we generate a new random (v4) UUID.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// ToOutgoing copies the request-scoped values onto the context's outgoing gRPC metadata so
// that they're sent to the server with the call.
func ToOutgoing(ctx context.Context) context.Context {
	id, ok := RequestID(ctx)
	if !ok {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, RequestIDHeader, id)
}

// FromIncoming restores the request-scoped values from the incoming gRPC metadata. This is what
// a server (or a test double of one) uses to see the ID the client sent.
func FromIncoming(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	values := md.Get(RequestIDHeader)
	if len(values) == 0 {
		return ctx
	}
	return WithRequestID(ctx, values[0])
}
