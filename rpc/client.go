package rpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/monadicstack/calculator/rpc/errors"
	"github.com/monadicstack/calculator/schema"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultConcurrency is the maximum number of asynchronous calls (see Client.Go) that will be
// in flight at the same time unless you override it w/ WithConcurrency().
const DefaultConcurrency = 8

// ErrClientClosed is the failure you get when you try to issue a call on a client that you
// have already closed.
var ErrClientClosed = errors.Unavailable("rpc: client is closed")

// CalculationRequest wrangles the two operands for any of the calculator's operations.
type CalculationRequest struct {
	// A is the left-hand operand (e.g. the dividend when dividing).
	A float64
	// B is the right-hand operand (e.g. the divisor when dividing).
	B float64
}

// CalculationResponse contains the outcome of an operation as reported by the server.
type CalculationResponse struct {
	// Operation is the label the server attached to the result (e.g. "ADD").
	Operation string
	// Result is the numeric outcome of the operation.
	Result float64
}

// NewClient constructs the RPC client that does the "heavy lifting" when communicating with the
// remote calculator service. The connection is established lazily, so this won't fail just
// because the server isn't up yet; you'll find that out on your first call. It will fail if the
// address is junk or the schema can't be compiled.
func NewClient(addr string, options ...ClientOption) (*Client, error) {
	client := &Client{
		Name:        string(schema.ServiceName),
		Address:     addr,
		concurrency: DefaultConcurrency,
		logger:      logrus.StandardLogger(),
	}
	for _, option := range options {
		option(client)
	}

	if client.schema == nil {
		defaultSchema, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("rpc: unable to load calculator schema: %w", err)
		}
		client.schema = defaultSchema
	}
	if client.concurrency <= 0 {
		client.concurrency = DefaultConcurrency
	}

	mw := clientMiddlewarePipeline{
		writeRequestID,
		logCall(client.logger),
	}
	mw = append(mw, client.middleware...)

	dialOptions := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		mw.DialOption(),
	}
	dialOptions = append(dialOptions, client.dialOptions...)

	conn, err := grpc.NewClient(addr, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("rpc: unable to create connection to '%s': %w", addr, err)
	}
	client.conn = conn
	client.pool = pond.NewPool(client.concurrency)
	return client, nil
}

// ClientOption is a single configurable setting that modifies some attribute of the RPC client
// when building one via NewClient().
type ClientOption func(*Client)

// WithSchema uses the given compiled schema instead of the one embedded in the binary.
func WithSchema(s *schema.Schema) ClientOption {
	return func(client *Client) {
		client.schema = s
	}
}

// WithDialOptions lets you tweak the underlying gRPC connection (keepalive, user agent, etc). They
// are applied after our defaults, so you can override the transport credentials if you need TLS.
func WithDialOptions(options ...grpc.DialOption) ClientOption {
	return func(client *Client) {
		client.dialOptions = append(client.dialOptions, options...)
	}
}

// WithDialer sets a custom dialer for the connection. This is mainly useful for tests that want
// to talk to an in-memory server rather than a real socket.
func WithDialer(dialer func(context.Context, string) (net.Conn, error)) ClientOption {
	return WithDialOptions(grpc.WithContextDialer(dialer))
}

// WithMiddleware adds your own unary interceptors to the pipeline every call runs through. They
// fire after the built-in ones, so the request ID is already on the context.
func WithMiddleware(mw ...grpc.UnaryClientInterceptor) ClientOption {
	return func(client *Client) {
		client.middleware = append(client.middleware, mw...)
	}
}

// WithConcurrency caps the number of asynchronous calls that may be in flight at once.
func WithConcurrency(n int) ClientOption {
	return func(client *Client) {
		client.concurrency = n
	}
}

// WithLogger sends the client's diagnostic logging to the given logger instead of the logrus
// standard logger.
func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// Client manages all RPC communication with the remote calculator service. A single connection is
// shared by every call you make, whether you make them synchronously (Add/Subtract/etc) or
// asynchronously (Go), so a Client is safe for concurrent use. Call Close() once you're done.
type Client struct {
	// Name is just the display name of the service; used only for debugging/logging purposes.
	Name string
	// Address is the target the connection was created for (e.g. "localhost:50051").
	Address string

	conn        *grpc.ClientConn
	schema      *schema.Schema
	pool        pond.Pool
	logger      logrus.FieldLogger
	dialOptions []grpc.DialOption
	middleware  clientMiddlewarePipeline
	concurrency int

	mu     sync.RWMutex
	closed bool
}

// Add returns the sum of the request's operands.
func (c *Client) Add(ctx context.Context, request *CalculationRequest) (*CalculationResponse, error) {
	return c.Invoke(ctx, Add, request)
}

// Subtract returns the difference of the request's operands (A - B).
func (c *Client) Subtract(ctx context.Context, request *CalculationRequest) (*CalculationResponse, error) {
	return c.Invoke(ctx, Subtract, request)
}

// Multiply returns the product of the request's operands.
func (c *Client) Multiply(ctx context.Context, request *CalculationRequest) (*CalculationResponse, error) {
	return c.Invoke(ctx, Multiply, request)
}

// Divide returns the quotient of the request's operands (A / B). We send B=0 along like any other
// value; whatever the server decides to do about it (fail or return infinity) is what you get.
func (c *Client) Divide(ctx context.Context, request *CalculationRequest) (*CalculationResponse, error) {
	return c.Invoke(ctx, Divide, request)
}

// Invoke performs a single unary call for the given operation and blocks until it completes. There
// are no retries; a failure is reported exactly once, as an errors.RPCError carrying the gRPC code.
func (c *Client) Invoke(ctx context.Context, op Operation, request *CalculationRequest) (*CalculationResponse, error) {
	if err := c.checkPreconditions(ctx, op, request); err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	return c.invoke(ctx, op, request)
}

// invoke does the actual work of Invoke() without the closed check, so that calls that were
// already accepted by Go() can still finish while Close() waits on them.
func (c *Client) invoke(ctx context.Context, op Operation, request *CalculationRequest) (*CalculationResponse, error) {
	in := c.schema.NewRequest(request.A, request.B)
	out := c.schema.NewResponse()

	if err := c.conn.Invoke(ctx, c.schema.FullMethod(op.Method()), in, out); err != nil {
		return nil, errors.FromGRPC(err)
	}

	operation, result := c.schema.ReadResponse(out)
	return &CalculationResponse{Operation: operation, Result: result}, nil
}

// Go invokes the operation asynchronously. It returns the Call structure representing the
// invocation right away; the Call is sent on its Done channel once the remote call completes,
// successfully or not. If done is nil, Go allocates a new channel. If non-nil, done must be
// buffered or Go will deliberately crash. Sharing one done channel between several calls lets you
// collect the results in whatever order they finish.
func (c *Client) Go(ctx context.Context, op Operation, request *CalculationRequest, done chan *Call) *Call {
	if done == nil {
		done = make(chan *Call, 1)
	} else if cap(done) == 0 {
		panic("rpc: done channel is unbuffered")
	}

	call := &Call{Operation: op, Request: request, Done: done, logger: c.logger}
	if err := c.checkPreconditions(ctx, op, request); err != nil {
		call.Error = err
		call.done()
		return call
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		call.Error = ErrClientClosed
		call.done()
		return call
	}
	c.pool.Submit(func() {
		call.Response, call.Error = c.invoke(ctx, op, request)
		call.done()
	})
	return call
}

// Close waits for any calls issued through Go() to finish and then releases the connection. Only
// the first Close does anything; later calls are no-ops. Any call issued after Close fails with
// ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.pool.StopAndWait()
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("rpc: unable to close connection: %w", err)
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) checkPreconditions(ctx context.Context, op Operation, request *CalculationRequest) error {
	if ctx == nil {
		return fmt.Errorf("precondition failed: nil context")
	}
	if request == nil {
		return fmt.Errorf("precondition failed: nil request")
	}
	if !op.Valid() {
		return fmt.Errorf("precondition failed: unsupported operation %v", op)
	}
	return nil
}
