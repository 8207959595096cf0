// Package schema compiles the calculator service definition at runtime so that the client can
// build requests and decode responses without any generated stubs. This mirrors how dynamic
// gRPC clients in other languages "load" a .proto file: we parse the schema, look up the service
// and message descriptors, then build dynamic messages that the standard protobuf codec knows
// how to marshal.
//
// By default you get the copy of calculator.proto embedded in the binary. If the service's schema
// lives somewhere else (e.g. you're testing a newer version of the server), use Load() to compile
// a different file.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/bufbuild/protocompile"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

//go:embed calculator.proto
var calculatorProto []byte

// FileName is the name of the embedded service definition.
const FileName = "calculator.proto"

const (
	// ServiceName is the fully qualified name of the calculator service in the schema.
	ServiceName protoreflect.FullName = "calculator.Calculator"
	// RequestName is the fully qualified name of the message that every operation accepts.
	RequestName protoreflect.FullName = "calculator.CalculationRequest"
	// ResponseName is the fully qualified name of the message that every operation returns.
	ResponseName protoreflect.FullName = "calculator.CalculationResponse"
)

// Methods are the unary RPCs that the calculator service must expose for the schema to be usable.
var Methods = []string{"Add", "Subtract", "Multiply", "Divide"}

// Schema is the compiled calculator service definition along with the field descriptors we need
// in order to read/write the operands and results on dynamic messages.
type Schema struct {
	// Service describes the Calculator service and its four methods.
	Service protoreflect.ServiceDescriptor
	// Request describes the CalculationRequest message.
	Request protoreflect.MessageDescriptor
	// Response describes the CalculationResponse message.
	Response protoreflect.MessageDescriptor

	fieldA         protoreflect.FieldDescriptor
	fieldB         protoreflect.FieldDescriptor
	fieldResult    protoreflect.FieldDescriptor
	fieldOperation protoreflect.FieldDescriptor
}

var defaultSchema = sync.OnceValues(func() (*Schema, error) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, FileName, calculatorProto, 0o644); err != nil {
		return nil, fmt.Errorf("schema: unable to stage embedded schema: %w", err)
	}
	return Load(context.Background(), fs, FileName)
})

// Default returns the schema compiled from the calculator.proto file embedded in this package. It
// is only compiled once; every caller shares the same descriptors.
func Default() (*Schema, error) {
	return defaultSchema()
}

// Source returns the raw text of the embedded calculator.proto file.
func Source() []byte {
	return calculatorProto
}

// Load compiles the .proto file at 'path' on the given file system and extracts the calculator
// service from it. Imports are resolved against the same file system, plus the standard
// google/protobuf/*.proto files that ship with the compiler.
func Load(ctx context.Context, fs afero.Fs, path string) (*Schema, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: func(name string) (io.ReadCloser, error) {
				return fs.Open(name)
			},
		}),
	}

	files, err := compiler.Compile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("schema: unable to compile %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("schema: compiling %s produced no files", path)
	}
	return fromFile(files[0])
}

// fromFile digs through the compiled file for the service/messages and validates that they have
// the shape we expect (four unary methods, double operands, a string label and a double result).
func fromFile(file protoreflect.FileDescriptor) (*Schema, error) {
	service := file.Services().ByName(ServiceName.Name())
	if service == nil || service.FullName() != ServiceName {
		return nil, fmt.Errorf("schema: %s does not define service %s", file.Path(), ServiceName)
	}

	request := file.Messages().ByName(RequestName.Name())
	if request == nil {
		return nil, fmt.Errorf("schema: %s does not define message %s", file.Path(), RequestName)
	}
	response := file.Messages().ByName(ResponseName.Name())
	if response == nil {
		return nil, fmt.Errorf("schema: %s does not define message %s", file.Path(), ResponseName)
	}

	for _, name := range Methods {
		method := service.Methods().ByName(protoreflect.Name(name))
		switch {
		case method == nil:
			return nil, fmt.Errorf("schema: service %s is missing method %s", ServiceName, name)
		case method.IsStreamingClient() || method.IsStreamingServer():
			return nil, fmt.Errorf("schema: method %s must be unary", name)
		case method.Input().FullName() != RequestName:
			return nil, fmt.Errorf("schema: method %s must accept %s, not %s", name, RequestName, method.Input().FullName())
		case method.Output().FullName() != ResponseName:
			return nil, fmt.Errorf("schema: method %s must return %s, not %s", name, ResponseName, method.Output().FullName())
		}
	}

	var err error
	s := &Schema{Service: service, Request: request, Response: response}
	if s.fieldA, err = field(request, "a", protoreflect.DoubleKind); err != nil {
		return nil, err
	}
	if s.fieldB, err = field(request, "b", protoreflect.DoubleKind); err != nil {
		return nil, err
	}
	if s.fieldResult, err = field(response, "result", protoreflect.DoubleKind); err != nil {
		return nil, err
	}
	if s.fieldOperation, err = field(response, "operation", protoreflect.StringKind); err != nil {
		return nil, err
	}
	return s, nil
}

func field(message protoreflect.MessageDescriptor, name protoreflect.Name, kind protoreflect.Kind) (protoreflect.FieldDescriptor, error) {
	fd := message.Fields().ByName(name)
	if fd == nil {
		return nil, fmt.Errorf("schema: message %s is missing field '%s'", message.FullName(), name)
	}
	if fd.Kind() != kind || fd.IsList() || fd.IsMap() {
		return nil, fmt.Errorf("schema: field %s.%s must be a singular %s", message.FullName(), name, kind)
	}
	return fd, nil
}

// FullMethod returns the gRPC method path for the given method name (e.g. "Add" becomes
// "/calculator.Calculator/Add").
func (s *Schema) FullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", s.Service.FullName(), method)
}

// NewRequest builds a CalculationRequest message with the two operands filled in.
func (s *Schema) NewRequest(a, b float64) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(s.Request)
	msg.Set(s.fieldA, protoreflect.ValueOfFloat64(a))
	msg.Set(s.fieldB, protoreflect.ValueOfFloat64(b))
	return msg
}

// ReadRequest extracts the operands from a CalculationRequest message.
func (s *Schema) ReadRequest(msg protoreflect.Message) (a float64, b float64) {
	return msg.Get(s.fieldA).Float(), msg.Get(s.fieldB).Float()
}

// NewResponse builds an empty CalculationResponse message; pass this as the reply when invoking
// one of the service's methods.
func (s *Schema) NewResponse() *dynamicpb.Message {
	return dynamicpb.NewMessage(s.Response)
}

// WriteResponse builds a CalculationResponse message with the given label and result.
func (s *Schema) WriteResponse(operation string, result float64) *dynamicpb.Message {
	msg := s.NewResponse()
	msg.Set(s.fieldOperation, protoreflect.ValueOfString(operation))
	msg.Set(s.fieldResult, protoreflect.ValueOfFloat64(result))
	return msg
}

// ReadResponse extracts the operation label and numeric result from a CalculationResponse message.
func (s *Schema) ReadResponse(msg protoreflect.Message) (operation string, result float64) {
	return msg.Get(s.fieldOperation).String(), msg.Get(s.fieldResult).Float()
}
