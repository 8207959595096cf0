package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/monadicstack/calculator/rpc"
	"github.com/sirupsen/logrus"
)

// BatchCase is one of the canned calculations that the batch run fires off.
type BatchCase struct {
	Operation rpc.Operation
	A         float64
	B         float64
}

// DefaultBatch is the fixed set of calculations we run when you don't ask for interactive mode. The
// last one divides by zero on purpose so you can see how the server feels about that.
var DefaultBatch = []BatchCase{
	{Operation: rpc.Add, A: 15.5, B: 7.2},
	{Operation: rpc.Subtract, A: 22.8, B: 5.3},
	{Operation: rpc.Multiply, A: 6.5, B: 3.0},
	{Operation: rpc.Divide, A: 25.0, B: 5.0},
	{Operation: rpc.Divide, A: 12.0, B: 0.0},
}

// BatchRunner issues every case at once and reports each outcome as soon as it arrives. Results
// are NOT printed in the order the cases were listed; they show up in whatever order the server
// finishes them.
type BatchRunner struct {
	// Client performs the calls. The runner closes it once every call has finished.
	Client *rpc.Client
	// Cases are the calculations to perform (DefaultBatch when nil).
	Cases []BatchCase
	// Out receives the results.
	Out io.Writer
	// Logger receives the failures.
	Logger logrus.FieldLogger
}

// Run fires off all of the calculations, waits for every one of them to complete (successfully or
// not), closes the client, and then prints the completion marker. Individual call failures don't
// fail the run; only a failure to release the connection does.
func (r BatchRunner) Run(ctx context.Context) error {
	cases := r.Cases
	if cases == nil {
		cases = DefaultBatch
	}

	fmt.Fprintln(r.Out, "=== Go Calculator Client ===")
	fmt.Fprintf(r.Out, "Connected to server at %s\n", r.Client.Address)

	done := make(chan *rpc.Call, len(cases))
	for _, c := range cases {
		r.Client.Go(ctx, c.Operation, &rpc.CalculationRequest{A: c.A, B: c.B}, done)
	}

	completed := 0
	for completed < len(cases) {
		r.report(<-done)
		completed++
	}

	err := r.Client.Close()
	fmt.Fprintln(r.Out, "\n=== All operations completed ===")
	return err
}

func (r BatchRunner) report(call *rpc.Call) {
	if call.Error != nil {
		r.Logger.WithField("operation", call.Operation.String()).
			Errorf("Error in %s: %v", call.Operation.Method(), call.Error)
		return
	}

	fmt.Fprintf(r.Out, "\n%s:\n", call.Operation.Label())
	fmt.Fprintf(r.Out, "Request: a=%s, b=%s\n", formatNumber(call.Request.A), formatNumber(call.Request.B))
	fmt.Fprintf(r.Out, "Response: operation=%s, result=%s\n", call.Response.Operation, formatNumber(call.Response.Result))
}
