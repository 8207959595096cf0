//go:build unit
// +build unit

package rpc_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/monadicstack/calculator/internal/testext"
	"github.com/monadicstack/calculator/rpc"
	"github.com/monadicstack/calculator/rpc/errors"
	"github.com/monadicstack/calculator/rpc/metadata"
	"github.com/monadicstack/calculator/schema"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ClientSuite struct {
	testext.ServerSuite
}

// Ensure that the default RPC client is valid.
func (suite *ClientSuite) TestNewClient_default() {
	client, err := rpc.NewClient("localhost:50051")
	suite.Require().NoError(err)
	defer client.Close()

	suite.Require().Equal("calculator.Calculator", client.Name)
	suite.Require().Equal("localhost:50051", client.Address)
}

// Custom schemas should be used as-is.
func (suite *ClientSuite) TestNewClient_schema() {
	s, err := schema.Default()
	suite.Require().NoError(err)

	client := suite.NewClient(rpc.WithSchema(s), rpc.WithConcurrency(-1))
	res, err := client.Add(context.Background(), &rpc.CalculationRequest{A: 1, B: 2})
	suite.Require().NoError(err)
	suite.Require().Equal(3.0, res.Result)
}

func (suite *ClientSuite) TestAdd() {
	client := suite.NewClient()
	res, err := client.Add(context.Background(), &rpc.CalculationRequest{A: 15.5, B: 7.2})
	suite.Require().NoError(err)
	suite.Require().Equal("ADD", res.Operation)
	suite.Require().InDelta(22.7, res.Result, 1e-9)
}

func (suite *ClientSuite) TestSubtract() {
	client := suite.NewClient()
	res, err := client.Subtract(context.Background(), &rpc.CalculationRequest{A: 22.8, B: 5.3})
	suite.Require().NoError(err)
	suite.Require().Equal("SUBTRACT", res.Operation)
	suite.Require().InDelta(17.5, res.Result, 1e-9)
}

func (suite *ClientSuite) TestMultiply() {
	client := suite.NewClient()
	res, err := client.Multiply(context.Background(), &rpc.CalculationRequest{A: 6.5, B: 3.0})
	suite.Require().NoError(err)
	suite.Require().Equal("MULTIPLY", res.Operation)
	suite.Require().InDelta(19.5, res.Result, 1e-9)
}

func (suite *ClientSuite) TestDivide() {
	client := suite.NewClient()
	res, err := client.Divide(context.Background(), &rpc.CalculationRequest{A: 25.0, B: 5.0})
	suite.Require().NoError(err)
	suite.Require().Equal("DIVIDE", res.Operation)
	suite.Require().InDelta(5.0, res.Result, 1e-9)
}

// Whatever label the server reports should match the operation we asked for.
func (suite *ClientSuite) TestInvoke_labels() {
	client := suite.NewClient()
	operands := [][2]float64{{0, 1}, {-3.5, 2}, {1e10, -1e-10}, {42, 42}}

	for _, op := range rpc.Operations() {
		for _, pair := range operands {
			res, err := client.Invoke(context.Background(), op, &rpc.CalculationRequest{A: pair[0], B: pair[1]})
			suite.Require().NoError(err)
			suite.Require().Equal(op.Label(), res.Operation)
		}
	}
	suite.Require().Len(suite.Server.Calls(), len(rpc.Operations())*len(operands))
}

// A server that treats dividing by zero as a failure should have that failure passed through as-is.
func (suite *ClientSuite) TestDivide_byZeroError() {
	suite.Server.DivideByZero = testext.DivideByZeroError
	client := suite.NewClient()

	res, err := client.Divide(context.Background(), &rpc.CalculationRequest{A: 12, B: 0})
	suite.Require().Nil(res)
	suite.Require().Error(err)
	suite.Require().True(errors.IsInvalidArgument(err))
	suite.Require().Equal("division by zero", err.Error())
}

// A server that follows IEEE rules should have its infinity passed through as-is.
func (suite *ClientSuite) TestDivide_byZeroInfinity() {
	suite.Server.DivideByZero = testext.DivideByZeroInfinity
	client := suite.NewClient()

	res, err := client.Divide(context.Background(), &rpc.CalculationRequest{A: 12, B: 0})
	suite.Require().NoError(err)
	suite.Require().True(math.IsInf(res.Result, 1))

	res, err = client.Divide(context.Background(), &rpc.CalculationRequest{A: -12, B: 0})
	suite.Require().NoError(err)
	suite.Require().True(math.IsInf(res.Result, -1))
}

func (suite *ClientSuite) TestDivide_byZeroLabel() {
	suite.Server.DivideByZero = testext.DivideByZeroLabel
	client := suite.NewClient()

	res, err := client.Divide(context.Background(), &rpc.CalculationRequest{A: 12, B: 0})
	suite.Require().NoError(err)
	suite.Require().Equal("DIVISION_ERROR", res.Operation)
	suite.Require().Equal(0.0, res.Result)
}

// Local mistakes should never make it to the server.
func (suite *ClientSuite) TestInvoke_preconditions() {
	client := suite.NewClient()

	_, err := client.Invoke(nil, rpc.Add, &rpc.CalculationRequest{})
	suite.Require().Error(err)

	_, err = client.Invoke(context.Background(), rpc.Add, nil)
	suite.Require().Error(err)

	_, err = client.Invoke(context.Background(), rpc.Operation(0), &rpc.CalculationRequest{})
	suite.Require().Error(err)

	call := <-client.Go(context.Background(), rpc.Operation(42), &rpc.CalculationRequest{}, nil).Done
	suite.Require().Error(call.Error)

	suite.Require().Empty(suite.Server.Calls())
}

func (suite *ClientSuite) TestInvoke_remoteFailure() {
	suite.Server.Failures["Multiply"] = status.Error(codes.Internal, "overflowed the abacus")
	client := suite.NewClient()

	_, err := client.Multiply(context.Background(), &rpc.CalculationRequest{A: 2, B: 3})
	suite.Require().Error(err)
	suite.Require().True(errors.IsInternal(err))
	suite.Require().Equal("overflowed the abacus", err.Error())

	// Other operations are unaffected.
	_, err = client.Add(context.Background(), &rpc.CalculationRequest{A: 2, B: 3})
	suite.Require().NoError(err)
}

func (suite *ClientSuite) TestInvoke_unavailable() {
	client := suite.NewClient()
	suite.Server.Stop()

	_, err := client.Add(context.Background(), &rpc.CalculationRequest{A: 1, B: 1})
	suite.Require().Error(err)
	suite.Require().True(errors.IsUnavailable(err), "Expected Unavailable, got %v", errors.Status(err))
}

func (suite *ClientSuite) TestInvoke_deadline() {
	suite.Server.Delays["Add"] = time.Second
	client := suite.NewClient()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Add(ctx, &rpc.CalculationRequest{A: 1, B: 1})
	suite.Require().Error(err)
	suite.Require().True(errors.IsDeadlineExceeded(err))
}

// Issue a bunch of calls without waiting, then collect all of them from the shared channel.
func (suite *ClientSuite) TestGo() {
	client := suite.NewClient()
	done := make(chan *rpc.Call, 4)

	for _, op := range rpc.Operations() {
		client.Go(context.Background(), op, &rpc.CalculationRequest{A: 8, B: 2}, done)
	}

	results := map[rpc.Operation]float64{}
	for i := 0; i < 4; i++ {
		call := <-done
		suite.Require().NoError(call.Error)
		suite.Require().Equal(call.Operation.Label(), call.Response.Operation)
		results[call.Operation] = call.Response.Result
	}
	suite.Require().Equal(map[rpc.Operation]float64{
		rpc.Add:      10,
		rpc.Subtract: 6,
		rpc.Multiply: 16,
		rpc.Divide:   4,
	}, results)
}

func (suite *ClientSuite) TestGo_nilDone() {
	client := suite.NewClient()
	request := &rpc.CalculationRequest{A: 8, B: 2}

	call := client.Go(context.Background(), rpc.Multiply, request, nil)
	suite.Require().NotNil(call.Done)

	finished := <-call.Done
	suite.Require().Same(call, finished)
	suite.Require().Same(request, finished.Request)
	suite.Require().Equal(16.0, finished.Response.Result)
}

func (suite *ClientSuite) TestGo_unbufferedDone() {
	client := suite.NewClient()
	suite.Require().Panics(func() {
		client.Go(context.Background(), rpc.Add, &rpc.CalculationRequest{}, make(chan *rpc.Call))
	})
}

// Results should arrive in completion order, not the order we issued them in.
func (suite *ClientSuite) TestGo_completionOrder() {
	suite.Server.Delays["Add"] = 300 * time.Millisecond
	client := suite.NewClient()
	done := make(chan *rpc.Call, 2)

	client.Go(context.Background(), rpc.Add, &rpc.CalculationRequest{A: 1, B: 1}, done)
	client.Go(context.Background(), rpc.Subtract, &rpc.CalculationRequest{A: 1, B: 1}, done)

	suite.Require().Equal(rpc.Subtract, (<-done).Operation)
	suite.Require().Equal(rpc.Add, (<-done).Operation)
}

// A failed async call still completes; it just has an error instead of a response.
func (suite *ClientSuite) TestGo_failure() {
	client := suite.NewClient()

	call := <-client.Go(context.Background(), rpc.Divide, &rpc.CalculationRequest{A: 12, B: 0}, nil).Done
	suite.Require().Nil(call.Response)
	suite.Require().True(errors.IsInvalidArgument(call.Error))
}

func (suite *ClientSuite) TestClose() {
	client := suite.NewClient()
	suite.Require().NoError(client.Close())
	suite.Require().NoError(client.Close(), "Closing twice should be a no-op")

	_, err := client.Add(context.Background(), &rpc.CalculationRequest{A: 1, B: 1})
	suite.Require().Equal(rpc.ErrClientClosed, err)
	suite.Require().True(errors.IsUnavailable(err))

	call := <-client.Go(context.Background(), rpc.Add, &rpc.CalculationRequest{A: 1, B: 1}, nil).Done
	suite.Require().Equal(rpc.ErrClientClosed, call.Error)

	suite.Require().Empty(suite.Server.Calls(), "Nothing should reach the server after Close()")
}

// Calls that were already issued should finish normally even if we close right away.
func (suite *ClientSuite) TestClose_waitsForCalls() {
	suite.Server.Delays["Add"] = 100 * time.Millisecond
	client := suite.NewClient()

	call := client.Go(context.Background(), rpc.Add, &rpc.CalculationRequest{A: 2, B: 2}, nil)
	suite.Require().NoError(client.Close())

	select {
	case finished := <-call.Done:
		suite.Require().NoError(finished.Error)
		suite.Require().Equal(4.0, finished.Response.Result)
	default:
		suite.Fail("Close() should wait for in-flight calls to complete")
	}
}

// Every call should be stamped w/ its own request ID unless you supply one.
func (suite *ClientSuite) TestRequestIDs() {
	client := suite.NewClient()
	request := &rpc.CalculationRequest{A: 1, B: 1}

	_, err := client.Add(context.Background(), request)
	suite.Require().NoError(err)
	_, err = client.Add(context.Background(), request)
	suite.Require().NoError(err)
	_, err = client.Add(metadata.WithRequestID(context.Background(), "custom-id"), request)
	suite.Require().NoError(err)

	calls := suite.Server.Calls()
	suite.Require().Len(calls, 3)
	suite.Require().NotEmpty(calls[0].RequestID)
	suite.Require().NotEmpty(calls[1].RequestID)
	suite.Require().NotEqual(calls[0].RequestID, calls[1].RequestID)
	suite.Require().Equal("custom-id", calls[2].RequestID)
}

// Custom middleware fires in the order given, after the built-ins have assigned a request ID.
func (suite *ClientSuite) TestWithMiddleware() {
	values := &testext.Sequence{}
	record := func(name string) grpc.UnaryClientInterceptor {
		return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			_, hasID := metadata.RequestID(ctx)
			suite.True(hasID, "Middleware '%s' should see a request ID", name)

			values.Append(name + ":before:" + method)
			err := invoker(ctx, method, req, reply, cc, opts...)
			values.Append(name + ":after")
			return err
		}
	}

	client := suite.NewClient(rpc.WithMiddleware(record("a")), rpc.WithMiddleware(record("b")))
	_, err := client.Subtract(context.Background(), &rpc.CalculationRequest{A: 5, B: 1})
	suite.Require().NoError(err)

	suite.Require().Equal([]string{
		"a:before:/calculator.Calculator/Subtract",
		"b:before:/calculator.Calculator/Subtract",
		"b:after",
		"a:after",
	}, values.Values())
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}
