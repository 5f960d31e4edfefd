package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose       bool
	Format        string // "json" | "text"
	ConfigPath    string
	EnvFile       string
	SchemaDir     string
	ContainerRoot string

	// Populated by the root command before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sharedstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sharedstore",
		Short: "Manage a shared on-disk object store",
		Long: `sharedstore opens a store file inside a shared group container,
runs first-launch seeding, and inspects or purges its contents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				formatter := &Formatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return formatter.Fail(ExitCommandError, ErrCodeGeneric,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return setup(opts, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file (missing is ignored)")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "directory of CUE entity declarations (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ContainerRoot, "root", "", "group container root directory (overrides config)")

	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewWaitCommand(opts))

	return cmd
}

// setup loads the environment and configuration, applies flag overrides,
// and installs the process logger.
func setup(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "cannot load env file", err)
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "cannot load config", err)
		}
		cfg = loaded
	}
	if opts.SchemaDir != "" {
		cfg.Store.SchemaDir = opts.SchemaDir
	}
	if opts.ContainerRoot != "" {
		cfg.Store.ContainerRoot = opts.ContainerRoot
	}
	opts.Config = cfg

	level := cfg.Logging.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logFormat := cfg.Logging.Format
	if opts.Format == "json" {
		logFormat = "json"
	}
	opts.Logger = newLogger(cmd.ErrOrStderr(), level, logFormat)
	slog.SetDefault(opts.Logger)
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
