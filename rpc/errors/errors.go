// Package errors describes the failures you can get back when invoking the remote calculator.
// Every transport or remote failure is normalized into an RPCError that carries a human-readable
// message as well as the gRPC status code the server (or the transport) reported. There are 17
// gRPC codes, but only a handful matter to a calculator client, so those get named helpers. Should
// you need something beyond this, New() accepts any code you feel like generating.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RPCError is an error that encodes a human-readable message as well as the gRPC status code
// that describes the failure. For instance if the server was unreachable, code would be
// codes.Unavailable; if the server rejected a divide-by-zero, it's likely codes.InvalidArgument.
type RPCError struct {
	// Code is the gRPC status code that most closely describes this error.
	Code codes.Code `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
}

// Error returns the underlying error message that describes this failure.
func (err RPCError) Error() string {
	return err.Message
}

// Status returns the gRPC status code for this error.
func (err RPCError) Status() codes.Code {
	return err.Code
}

// GRPCStatus lets the grpc/status package recognize this error, so status.Code(err) and
// status.FromError(err) behave the same as they would for an error straight from the transport.
func (err RPCError) GRPCStatus() *status.Status {
	return status.New(err.Code, err.Message)
}

type errorWithStatus interface {
	Status() codes.Code
}

type errorWithGRPCStatus interface {
	GRPCStatus() *status.Status
}

// New creates an error with the given status code and a formatted message.
func New(code codes.Code, messageFormat string, args ...interface{}) RPCError {
	return RPCError{
		Code:    code,
		Message: fmt.Sprintf(messageFormat, args...),
	}
}

// FromGRPC converts whatever error came back from the gRPC runtime into an RPCError. Errors that
// already carry a gRPC status keep its code and message. Anything else (which shouldn't really
// happen for a unary call) becomes codes.Unknown w/ the original message. A nil error stays nil.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if s, ok := status.FromError(err); ok {
		return RPCError{Code: s.Code(), Message: s.Message()}
	}
	return RPCError{Code: codes.Unknown, Message: err.Error()}
}

// Status looks for either a Status() or GRPCStatus() method on the error to figure out the most
// appropriate gRPC code for it. A nil error is codes.OK; if the error doesn't have either of those
// methods then we'll just assume that it is codes.Unknown.
func Status(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	var errStatus errorWithStatus
	if errors.As(err, &errStatus) {
		return errStatus.Status()
	}

	var errGRPCStatus errorWithGRPCStatus
	if errors.As(err, &errGRPCStatus) {
		return errGRPCStatus.GRPCStatus().Code()
	}

	return codes.Unknown
}

// Unknown is a generic catch-all error for failures you don't know what to do with.
func Unknown(messageFormat string, args ...interface{}) RPCError {
	return New(codes.Unknown, messageFormat, args...)
}

// IsUnknown returns true if the underlying code of 'err' is codes.Unknown. This will be true for
// any error that carries no status information at all.
func IsUnknown(err error) bool {
	return Status(err) == codes.Unknown
}

// InvalidArgument indicates that the server refused the operands (e.g. dividing by zero on servers
// that treat it as a failure rather than returning infinity).
func InvalidArgument(messageFormat string, args ...interface{}) RPCError {
	return New(codes.InvalidArgument, messageFormat, args...)
}

// IsInvalidArgument returns true if the underlying code of 'err' is codes.InvalidArgument.
func IsInvalidArgument(err error) bool {
	return Status(err) == codes.InvalidArgument
}

// DeadlineExceeded indicates that the call did not finish before the context's deadline.
func DeadlineExceeded(messageFormat string, args ...interface{}) RPCError {
	return New(codes.DeadlineExceeded, messageFormat, args...)
}

// IsDeadlineExceeded returns true if the underlying code of 'err' is codes.DeadlineExceeded.
func IsDeadlineExceeded(err error) bool {
	return Status(err) == codes.DeadlineExceeded
}

// Unimplemented indicates that the server doesn't support the method we invoked. You'll see this
// when the server was built from an older/different schema than the one the client loaded.
func Unimplemented(messageFormat string, args ...interface{}) RPCError {
	return New(codes.Unimplemented, messageFormat, args...)
}

// IsUnimplemented returns true if the underlying code of 'err' is codes.Unimplemented.
func IsUnimplemented(err error) bool {
	return Status(err) == codes.Unimplemented
}

// Internal indicates that something broke on the server while handling the call.
func Internal(messageFormat string, args ...interface{}) RPCError {
	return New(codes.Internal, messageFormat, args...)
}

// IsInternal returns true if the underlying code of 'err' is codes.Internal.
func IsInternal(err error) bool {
	return Status(err) == codes.Internal
}

// Unavailable indicates that the server could not be reached (not running, wrong address, network
// trouble, etc). It's also what you get for calls issued on a client that was already closed.
func Unavailable(messageFormat string, args ...interface{}) RPCError {
	return New(codes.Unavailable, messageFormat, args...)
}

// IsUnavailable returns true if the underlying code of 'err' is codes.Unavailable.
func IsUnavailable(err error) bool {
	return Status(err) == codes.Unavailable
}
