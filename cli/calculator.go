package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/monadicstack/calculator/rpc"
	"github.com/monadicstack/calculator/schema"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CalculatorRequest contains all of the CLI options used in the "calcclient" command.
type CalculatorRequest struct {
	// Interactive is the status of the --interactive flag.
	Interactive bool
	// In is where interactive mode reads the user's input.
	In io.Reader
	// Out receives prompts and results.
	Out io.Writer
	// Err receives logging and failures.
	Err io.Writer
}

// Calculator handles the registration and execution of the 'calcclient' CLI command. The zero value
// isn't usable; use NewCalculator() unless you need to swap out the environment for tests.
type Calculator struct {
	// Config resolves the environment variables.
	Config *viper.Viper
	// FS is where we look for a CALCULATOR_PROTO schema override.
	FS afero.Fs
	// ClientOptions are extra options for every RPC client we create (e.g. a custom dialer).
	ClientOptions []rpc.ClientOption
}

// NewCalculator creates the command w/ the real environment and file system.
func NewCalculator() Calculator {
	return Calculator{
		Config: viper.New(),
		FS:     afero.NewOsFs(),
	}
}

// Command creates the Cobra struct describing this CLI command and its options.
func (c Calculator) Command() *cobra.Command {
	request := &CalculatorRequest{}
	cmd := &cobra.Command{
		Use:   "calcclient [flags]",
		Short: "Talks to a remote calculator service over gRPC.",
		Long:  "By default this fires off a fixed batch of calculations all at once and prints each result as it comes back. With --interactive you get a prompt where you can run calculations one at a time instead. The server address comes from the GRPC_SERVER environment variable (default localhost:50051).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			request.In = cmd.InOrStdin()
			request.Out = cmd.OutOrStdout()
			request.Err = cmd.ErrOrStderr()
			return c.Exec(cmd.Context(), request)
		},
	}
	cmd.Flags().BoolVar(&request.Interactive, "interactive", false, "Prompt for calculations one at a time rather than running the standard batch.")
	return cmd
}

// Exec connects to the calculator service and runs either the batch or the interactive loop. Failing
// calls are reported and don't stop the run; failing to set up the client does.
func (c Calculator) Exec(ctx context.Context, request *CalculatorRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	settings := LoadSettings(c.Config)
	logger, err := NewLogger(request.Err, settings.LogLevel)
	if err != nil {
		return err
	}

	s, err := c.loadSchema(ctx, settings)
	if err != nil {
		return err
	}

	options := []rpc.ClientOption{rpc.WithSchema(s), rpc.WithLogger(logger)}
	options = append(options, c.ClientOptions...)
	client, err := rpc.NewClient(settings.ServerAddress, options...)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.WithField("address", settings.ServerAddress).Debug("calculator client ready")
	if request.Interactive {
		loop := &InteractiveLoop{Client: client, In: request.In, Out: request.Out, Logger: logger}
		return loop.Run(ctx)
	}
	return BatchRunner{Client: client, Out: request.Out, Logger: logger}.Run(ctx)
}

func (c Calculator) loadSchema(ctx context.Context, settings Settings) (*schema.Schema, error) {
	if settings.ProtoPath == "" {
		return schema.Default()
	}
	s, err := schema.Load(ctx, c.FS, settings.ProtoPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", EnvProto, err)
	}
	return s, nil
}
