package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/monadicstack/calculator/internal/naming"
	"github.com/monadicstack/calculator/rpc"
	"github.com/sirupsen/logrus"
)

// InteractiveState is where the interactive loop is in its conversation with the user.
type InteractiveState int

const (
	// AwaitingOperation means we've prompted for an operation name (or 'quit').
	AwaitingOperation InteractiveState = iota
	// AwaitingOperandA means we have a valid operation and want the first number.
	AwaitingOperandA
	// AwaitingOperandB means we want the second number.
	AwaitingOperandB
	// AwaitingResponse means the request is on the wire and we're blocked until it resolves.
	AwaitingResponse
	// Terminated means the user quit (or stdin ran dry) and the client has been closed.
	Terminated
)

func (state InteractiveState) String() string {
	switch state {
	case AwaitingOperation:
		return "AwaitingOperation"
	case AwaitingOperandA:
		return "AwaitingOperandA"
	case AwaitingOperandB:
		return "AwaitingOperandB"
	case AwaitingResponse:
		return "AwaitingResponse"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("InteractiveState(%d)", int(state))
	}
}

const quitCommand = "quit"

// InteractiveLoop is the read-evaluate-print loop: it asks for an operation and two operands, sends
// exactly one request, prints the outcome, then asks again. There's never more than one request in
// flight. Bad input is reported and re-prompted locally; it never reaches the server.
type InteractiveLoop struct {
	// Client performs the calls. The loop closes it when the user quits.
	Client *rpc.Client
	// In is where we read the user's answers from, one per line.
	In io.Reader
	// Out receives the prompts and results.
	Out io.Writer
	// Logger receives the RPC failures.
	Logger logrus.FieldLogger

	state   InteractiveState
	reader  *bufio.Reader
	readErr error
}

// Run drives the loop until the user types 'quit' or the input ends. Either way the client is
// closed before we return.
func (loop *InteractiveLoop) Run(ctx context.Context) error {
	loop.state = AwaitingOperation
	loop.reader = bufio.NewReader(loop.In)
	loop.readErr = nil

	fmt.Fprintln(loop.Out, "\n=== Interactive Calculator Mode ===")
	fmt.Fprintln(loop.Out, "Commands: add, subtract, multiply, divide, quit")

	var op rpc.Operation
	var aText string
	var request *rpc.CalculationRequest

	for loop.state != Terminated {
		switch loop.state {
		case AwaitingOperation:
			line, ok := loop.prompt("\nEnter operation (or 'quit'): ")
			if !ok || naming.Normalize(line) == quitCommand {
				loop.state = Terminated
				continue
			}
			parsed, err := rpc.ParseOperation(line)
			if err != nil {
				fmt.Fprintln(loop.Out, "Invalid operation. Use: add, subtract, multiply, divide, quit")
				continue
			}
			op = parsed
			loop.state = AwaitingOperandA

		case AwaitingOperandA:
			line, ok := loop.prompt("Enter first number: ")
			if !ok {
				loop.state = Terminated
				continue
			}
			aText = line
			loop.state = AwaitingOperandB

		case AwaitingOperandB:
			bText, ok := loop.prompt("Enter second number: ")
			if !ok {
				loop.state = Terminated
				continue
			}
			a, aOK := parseNumber(aText)
			b, bOK := parseNumber(bText)
			if !aOK || !bOK {
				fmt.Fprintln(loop.Out, "Please enter valid numbers")
				loop.state = AwaitingOperation
				continue
			}
			request = &rpc.CalculationRequest{A: a, B: b}
			loop.state = AwaitingResponse

		case AwaitingResponse:
			call := <-loop.Client.Go(ctx, op, request, nil).Done
			if call.Error != nil {
				loop.Logger.WithField("operation", op.String()).Errorf("RPC failed: %v", call.Error)
			} else {
				fmt.Fprintf(loop.Out, "Result: %s = %s\n", call.Response.Operation, formatNumber(call.Response.Result))
			}
			loop.state = AwaitingOperation
		}
	}

	closeErr := loop.Client.Close()
	if loop.readErr != nil {
		return fmt.Errorf("unable to read input: %w", loop.readErr)
	}
	return closeErr
}

// State reports where the loop currently is. Once Run() returns, this is always Terminated.
func (loop *InteractiveLoop) State() InteractiveState {
	return loop.state
}

// prompt writes the question and reads the next line of input, however long it is. The second
// return value is false once there's nothing left to read. A final line w/o a trailing newline
// still counts as an answer.
func (loop *InteractiveLoop) prompt(question string) (string, bool) {
	fmt.Fprint(loop.Out, question)
	line, err := loop.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			loop.readErr = err
			return "", false
		}
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}
