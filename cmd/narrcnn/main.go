package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kratzket/try-git/internal/config"
	"github.com/kratzket/try-git/internal/logging"

	// Register dataset formats.
	_ "github.com/kratzket/try-git/internal/dataset/delimited"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "narrcnn",
	Short: "Convolutional classifier for injury narratives",
	Long: `narrcnn trains convolutional text classifiers that predict the injured
body part from free-text accident narratives.

Configuration is read from a YAML file (--config) and NARRCNN_* environment
variables; the built-in defaults train both the single-width and the
multi-width architecture.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		reportsOnStdout := cfg.Output.Stdout && cmd.Name() == trainCmd.Name()
		logger = logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level), reportsOnStdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// Skip config loading.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "narrcnn %s\n", config.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(trainCmd, inspectCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
