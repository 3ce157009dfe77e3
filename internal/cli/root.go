package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"weather-widget/internal/config"
)

type globalFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// runtime is filled in by the root command before any subcommand runs.
type runtime struct {
	flags  globalFlags
	cfg    config.Config
	logger *slog.Logger
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, version string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(version)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := 1
	var controlled *exitError
	if errors.As(err, &controlled) {
		code = controlled.code
	}
	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}
	return code
}

// NewRootCommand builds the complete command tree.
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "weather-widget",
		Short:         "Serve the map weather widget and query forecasts from the terminal.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
	}
	bindGlobalFlags(root.PersistentFlags(), &rt.flags)

	root.AddCommand(newServeCommand(rt))
	root.AddCommand(newForecastCommand(rt))
	root.AddCommand(newGeocodeCommand(rt))
	return root
}

func bindGlobalFlags(fs *pflag.FlagSet, flags *globalFlags) {
	fs.StringVar(&flags.ConfigPath, "config", "", "Path to a YAML config file.")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")
	fs.StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json.")
}

func (rt *runtime) load(cmd *cobra.Command) error {
	cfg, err := config.Load(rt.flags.ConfigPath)
	if err != nil {
		return err
	}
	if rt.flags.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(rt.flags.LogLevel)
	}
	if rt.flags.LogFormat != "" {
		cfg.Log.Format = strings.ToLower(rt.flags.LogFormat)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	rt.cfg = cfg
	rt.logger = logger
	return nil
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}
