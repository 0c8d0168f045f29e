package internal

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/version"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srcwatch",
		Short: "Detect changes in remote data sources",
		Long: `srcwatch watches a catalog of remote documents and pages and reports which ones changed
since the last check. It probes metadata with HEAD, hashes the body with GET, and keeps a
fingerprint per source so the comparison holds across runs.`,
		Example: `srcwatch check
srcwatch check --force --source AIOM_001
srcwatch status --category guidelines`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if logger.FlagVerboseCount > 0 && (logger.FlagQuiet || logger.FlagSilent) {
				return middleware.FlagComboError(errs.VerbosityConflict)
			}
			logger.ConfigureLoggerFromFlags()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				version.Print(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("version", "v", false, "Print version information")
	cmd.PersistentFlags().StringVar(&middleware.ConfigPath, "config", "", "Config file (default $SRCWATCH_CONFIG or ~/.config/srcwatch/config.yml)")
	cmd.PersistentFlags().CountVarP(&logger.FlagVerboseCount, "verbose", "V", "Verbose output (-V, -VV)")
	cmd.PersistentFlags().BoolVarP(&logger.FlagQuiet, "quiet", "q", false, "Only print errors")
	cmd.PersistentFlags().BoolVarP(&logger.FlagSilent, "silent", "s", false, "No console output, the run log still gets everything")
	cmd.PersistentFlags().BoolVar(&logger.FlagJSON, "json", false, "JSON logs and machine-readable output")

	RegisterSubCommands(cmd)

	return cmd
}

func Execute() error {
	root := NewRootCmd()

	if os.Getenv("COMP_LINE") != "" ||
		(len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "__complete")) {
		return root.Execute()
	}

	logger.ConfigureLoggerFromFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Debug("Failed to execute root command: %v", err)
		return err
	}
	return nil
}
