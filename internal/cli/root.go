package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/config"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/logging"
)

var (
	cfgFile   string
	jsonOut   bool
	verbose   bool
	ephemeral bool

	cfg      *config.Config
	closeLog func() error
)

// annotationOwnsTerminal marks commands that draw a full-screen UI.
const annotationOwnsTerminal = "owns-terminal"

var rootCmd = &cobra.Command{
	Use:   "encore",
	Short: "Play music from the terminal, online or offline",
	Long: `Encore streams songs from the catalog, keeps a play queue across
sessions, and downloads songs for offline playback.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogging(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.encorerc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep all state in memory for this run")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w: %w", apperrors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}

	return nil
}

// initLogging sends logs to the configured file, or stderr. The dashboard
// owns the terminal, so it runs with logs discarded unless a file is set.
func initLogging(cmd *cobra.Command) error {
	logCfg := cfg.Log
	if verbose {
		logCfg.Level = "debug"
	}
	_, quiet := cmd.Annotations[annotationOwnsTerminal]
	var err error
	closeLog, err = logging.Setup(logCfg, quiet)
	return err
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if JSONOutput() {
			_ = printJSON(map[string]string{
				"error":      err.Error(),
				"suggestion": apperrors.GetSuggestion(err),
			})
		} else {
			fmt.Fprintln(os.Stderr, apperrors.Format(err))
		}
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
