package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dl-alexandre/gdsync/internal/auth"
	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/journal"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/provider"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/dl-alexandre/gdsync/pkg/version"
	"github.com/spf13/cobra"
)

var (
	globalFlags types.GlobalFlags
	logger      logging.Logger
	// debugTransport is set under --debug and logs every HTTP exchange
	debugTransport http.RoundTripper
	cfg            *config.Config
)

// skipConfigAnnotation marks commands that must run without a valid config
const skipConfigAnnotation = "gdsync/skip-config"

var rootCmd = &cobra.Command{
	Use:   "gdsync",
	Short: "Sync media files to Google Drive accounts",
	Long: `gdsync uploads files into folder paths on configured Google Drive
accounts, mints retrieval URLs for them and removes them again.

All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		if cmd.Annotations[skipConfigAnnotation] == "" {
			loaded, err := config.Load(globalFlags.Config)
			if err != nil {
				return utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build())
			}
			cfg = loaded
		} else {
			cfg = config.DefaultConfig()
		}

		if !cmd.Flags().Changed("output") && !globalFlags.JSON {
			globalFlags.OutputFormat = cfg.DefaultOutputFormat
		}

		// Initialize logging
		logConfig := logging.LogConfig{
			Level:           logging.ParseLogLevel(cfg.LogLevel),
			OutputFile:      cfg.LogFile,
			EnableConsole:   !globalFlags.Quiet,
			EnableDebug:     globalFlags.Debug,
			RedactSensitive: true,
			EnableColor:     cfg.ColorOutput,
			EnableTimestamp: true,
			MaxFileSize:     logging.DefaultLogConfig().MaxFileSize,
		}
		if globalFlags.LogFile != "" {
			logConfig.OutputFile = globalFlags.LogFile
		}
		if globalFlags.Verbose {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		var err error
		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Long:        "Print the version number of gdsync",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
		if globalFlags.OutputFormat == types.OutputFormatTable {
			fmt.Fprintln(out.stdout, version.Get().String())
			return nil
		}
		return out.WriteSuccess("version", version.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Target, "target", "t", "", "Sync target (account id) to operate on")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Log HTTP traffic (secrets redacted)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	// Handle --json flag as alias for --output json
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return utils.InvalidArgument("output", fmt.Sprintf("invalid output format: %s", globalFlags.OutputFormat))
	}
	return nil
}

// Execute runs the root command and exits with the code mapped from the
// failing command's error. Cancelling ctx aborts in-flight transfers.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		os.Exit(utils.GetExitCode(appErr.CLIError.Code))
	}
	os.Exit(utils.ExitUnknown)
	return nil
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	if logger == nil {
		return logging.NewNoOpLogger()
	}
	return logger
}

// syncContext bundles what a transfer command needs
type syncContext struct {
	cfg      *config.Config
	sessions *auth.SessionFactory
	engine   *files.Manager
	tokens   *auth.TokenStore
	journal  *journal.DB
	provider *provider.Provider
	target   types.SyncTarget
}

// Close releases the journal
func (s *syncContext) Close() error {
	return s.journal.Close()
}

func newSessionFactory() *auth.SessionFactory {
	opts := []auth.SessionOption{auth.WithTimeout(cfg.GetRequestTimeout())}
	if debugTransport != nil {
		opts = append(opts, auth.WithTransport(debugTransport))
	}
	return auth.NewSessionFactory(GetLogger(), opts...)
}

func newTokenStore() (*auth.TokenStore, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewTokenStore(configDir, auth.TokenStoreOptions{})
}

// getSyncContext wires the transfer engine for the selected target. With
// requireTarget false the target is left empty when none can be chosen.
func getSyncContext(out *OutputWriter, requireTarget bool) (*syncContext, error) {
	sessions := newSessionFactory()
	engine := files.NewManager(sessions, GetLogger())

	tokens, err := newTokenStore()
	if err != nil {
		return nil, err
	}
	if warning := tokens.StorageWarning(); warning != "" {
		out.Verbose("%s", warning)
	}

	journalPath, err := cfg.GetJournalPath()
	if err != nil {
		return nil, err
	}
	db, err := journal.Open(journalPath)
	if err != nil {
		return nil, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("failed to open journal: %v", err)).
			WithContext("path", journalPath).
			Build())
	}

	sc := &syncContext{
		cfg:      cfg,
		sessions: sessions,
		engine:   engine,
		tokens:   tokens,
		journal:  db,
		provider: provider.New(cfg, engine, provider.Options{
			Tokens:    tokens,
			Journal:   db,
			Transport: debugTransport,
			Timeout:   cfg.GetRequestTimeout(),
			Logger:    GetLogger(),
		}),
	}

	account, ok := cfg.SyncAccount(globalFlags.Target)
	if ok {
		sc.target = account.Target()
	} else if requireTarget {
		_ = db.Close()
		return nil, noTargetError(globalFlags.Target)
	}
	return sc, nil
}

func noTargetError(id string) error {
	if id == "" {
		return utils.InvalidArgument("target", "no sync target selected: pass --target or set defaultTarget")
	}
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
		fmt.Sprintf("unknown sync target '%s'", id)).
		WithContext("target", id).
		Build())
}
