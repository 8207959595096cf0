package rpc

import "github.com/sirupsen/logrus"

// Call represents a single asynchronous invocation issued via Client.Go(). Once the remote call
// completes, either Response or Error is filled in and the Call is sent on Done exactly once.
type Call struct {
	// Operation is the arithmetic operation that was requested.
	Operation Operation
	// Request contains the operands that were sent.
	Request *CalculationRequest
	// Response is the server's reply when the call succeeded.
	Response *CalculationResponse
	// Error is the failure (usually an errors.RPCError) when the call did not succeed.
	Error error
	// Done receives this Call when the invocation completes.
	Done chan *Call

	logger logrus.FieldLogger
}

// done notifies whoever is waiting on the call. We never block here: if the caller shared a done
// channel that doesn't have enough capacity for all of their calls, the extra results are dropped
// and we log it. That's on the caller.
func (call *Call) done() {
	select {
	case call.Done <- call:
	default:
		if call.logger != nil {
			call.logger.WithField("operation", call.Operation.String()).
				Warn("rpc: discarding call result due to insufficient Done channel capacity")
		}
	}
}
