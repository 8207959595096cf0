package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Environment variables that configure the client.
const (
	// EnvServer is the "host:port" of the calculator server.
	EnvServer = "GRPC_SERVER"
	// EnvProto is an optional path to a calculator.proto to use instead of the embedded one.
	EnvProto = "CALCULATOR_PROTO"
	// EnvLogLevel is the logrus level for diagnostic output (e.g. "debug", "warn").
	EnvLogLevel = "CALCULATOR_LOG_LEVEL"
)

// DefaultServer is the address we connect to when GRPC_SERVER isn't set.
const DefaultServer = "localhost:50051"

// Settings are the environment-driven options for a single run of the client. They're resolved
// once at startup and never change afterwards.
type Settings struct {
	// ServerAddress is where the calculator service lives.
	ServerAddress string
	// ProtoPath, when not blank, is the schema file to compile instead of the embedded one.
	ProtoPath string
	// LogLevel is the name of the logrus level to log at.
	LogLevel string
}

// LoadSettings resolves the client's settings from the environment. Blank variables are treated
// the same as missing ones, so "GRPC_SERVER=" still gets you the default address.
func LoadSettings(v *viper.Viper) Settings {
	v.SetDefault(EnvServer, DefaultServer)
	v.SetDefault(EnvProto, "")
	v.SetDefault(EnvLogLevel, logrus.InfoLevel.String())
	v.AutomaticEnv()

	return Settings{
		ServerAddress: v.GetString(EnvServer),
		ProtoPath:     v.GetString(EnvProto),
		LogLevel:      v.GetString(EnvLogLevel),
	}
}

// NewLogger creates the logger for diagnostics and RPC failures. It writes to 'out' (stderr when
// run from the command line) so that it never gets mixed in with the results on stdout.
func NewLogger(out io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return logger, nil
}
