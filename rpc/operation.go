package rpc

import (
	"fmt"
	"strings"

	"github.com/monadicstack/calculator/internal/naming"
)

// Operation is one of the four arithmetic functions the remote calculator supports. This is a
// closed set, so rather than looking up remote methods by whatever string the user typed, every
// caller goes through ParseOperation() and the client dispatches on this value.
type Operation int

// The operations supported by the calculator service.
const (
	Add Operation = iota + 1
	Subtract
	Multiply
	Divide
)

var operationNames = map[Operation]string{
	Add:      "add",
	Subtract: "subtract",
	Multiply: "multiply",
	Divide:   "divide",
}

// Operations returns every supported operation in a stable order (add, subtract, multiply, divide).
func Operations() []Operation {
	return []Operation{Add, Subtract, Multiply, Divide}
}

// ParseOperation resolves a user-supplied operation name (e.g. "add", " Multiply ") to the
// corresponding Operation. Matching is case-insensitive and ignores surrounding whitespace.
func ParseOperation(name string) (Operation, error) {
	name = naming.Normalize(name)
	for op, opName := range operationNames {
		if opName == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation: '%s'", name)
}

// Valid returns true when this is one of the four supported operations.
func (op Operation) Valid() bool {
	_, ok := operationNames[op]
	return ok
}

// String returns the lower-case request-side name of the operation (e.g. "add").
func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// Method returns the name of the RPC method on the Calculator service (e.g. "Add").
func (op Operation) Method() string {
	return naming.ToUpperCamel(op.String())
}

// Label returns the upper-case display label for the operation (e.g. "ADD"). This is also the
// label a conforming server reports back in CalculationResponse.Operation.
func (op Operation) Label() string {
	return strings.ToUpper(op.String())
}
