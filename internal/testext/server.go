package testext

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/monadicstack/calculator/rpc/metadata"
	"github.com/monadicstack/calculator/schema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Address is the target clients should use to reach a CalculatorServer. The "passthrough" scheme
// stops gRPC from trying to resolve the name; the dialer from Dialer() does the real work.
const Address = "passthrough:///bufnet"

// DivideByZero decides how the fake server responds when asked to divide by zero. Real calculator
// servers disagree on this, so tests get to pick.
type DivideByZero int

const (
	// DivideByZeroError fails the call with codes.InvalidArgument.
	DivideByZeroError DivideByZero = iota
	// DivideByZeroInfinity returns the IEEE result (+Inf, -Inf or NaN).
	DivideByZeroInfinity
	// DivideByZeroLabel succeeds w/ a result of 0 and the label "DIVISION_ERROR".
	DivideByZeroLabel
)

// RecordedCall is a single request that the fake server received.
type RecordedCall struct {
	// Method is the RPC method that was invoked (e.g. "Add").
	Method string
	// A is the first operand.
	A float64
	// B is the second operand.
	B float64
	// RequestID is the value of the "x-request-id" header the client sent.
	RequestID string
}

// CalculatorServer is an in-memory implementation of the Calculator service that speaks real gRPC
// over a bufconn listener. It serves whatever schema you give it using dynamic messages, so it
// doesn't need generated code any more than the client does. Set the exported fields before you
// call Start(); they're not safe to change while it's running.
type CalculatorServer struct {
	// Schema is the service definition to serve.
	Schema *schema.Schema
	// DivideByZero is the policy for zero divisors.
	DivideByZero DivideByZero
	// Delays holds an artificial latency per method name, letting you control the order in
	// which concurrent calls complete.
	Delays map[string]time.Duration
	// Failures forces the given methods to fail w/ the given error (e.g. a status.Error).
	Failures map[string]error

	listener *bufconn.Listener
	server   *grpc.Server

	mu    sync.Mutex
	calls []RecordedCall
}

// NewCalculatorServer creates a fake server for the given schema. It isn't listening until you
// call Start().
func NewCalculatorServer(s *schema.Schema) *CalculatorServer {
	return &CalculatorServer{
		Schema:   s,
		Delays:   map[string]time.Duration{},
		Failures: map[string]error{},
	}
}

// Start begins serving on a fresh in-memory listener.
func (srv *CalculatorServer) Start() {
	srv.listener = bufconn.Listen(1024 * 1024)
	srv.server = grpc.NewServer()
	srv.server.RegisterService(srv.serviceDesc(), srv)

	go func(server *grpc.Server, listener *bufconn.Listener) {
		_ = server.Serve(listener)
	}(srv.server, srv.listener)
}

// Stop shuts the server down immediately. It's safe to call even if the server never started.
func (srv *CalculatorServer) Stop() {
	if srv.server != nil {
		srv.server.Stop()
	}
}

// Dialer returns a function that creates connections to this server. Feed it to the client with
// rpc.WithDialer().
func (srv *CalculatorServer) Dialer() func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return srv.listener.DialContext(ctx)
	}
}

// Calls returns a copy of every request the server has received so far, in arrival order.
func (srv *CalculatorServer) Calls() []RecordedCall {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]RecordedCall(nil), srv.calls...)
}

// serviceDesc builds the gRPC service registration by hand from the schema. The handler type
// is the empty interface since there's no generated server interface to satisfy.
func (srv *CalculatorServer) serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: string(srv.Schema.Service.FullName()),
		HandlerType: (*interface{})(nil),
		Metadata:    schema.FileName,
	}
	for _, name := range schema.Methods {
		method := name
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: method,
			Handler: func(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := dynamicpb.NewMessage(srv.Schema.Request)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.handle(ctx, method, in)
			},
		})
	}
	return desc
}

func (srv *CalculatorServer) handle(ctx context.Context, method string, in *dynamicpb.Message) (interface{}, error) {
	a, b := srv.Schema.ReadRequest(in)
	requestID, _ := metadata.RequestID(metadata.FromIncoming(ctx))

	srv.mu.Lock()
	srv.calls = append(srv.calls, RecordedCall{Method: method, A: a, B: b, RequestID: requestID})
	srv.mu.Unlock()

	if delay := srv.Delays[method]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}
	if err := srv.Failures[method]; err != nil {
		return nil, err
	}

	label := strings.ToUpper(method)
	var result float64
	switch method {
	case "Add":
		result = a + b
	case "Subtract":
		result = a - b
	case "Multiply":
		result = a * b
	case "Divide":
		if b == 0 {
			switch srv.DivideByZero {
			case DivideByZeroInfinity:
				result = a / b
			case DivideByZeroLabel:
				label, result = "DIVISION_ERROR", 0
			default:
				return nil, status.Error(codes.InvalidArgument, "division by zero")
			}
		} else {
			result = a / b
		}
	default:
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}

	return srv.Schema.WriteResponse(label, result), nil
}
