package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrSnakeDoc/srcwatch/internal/cron"
	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/runner"

	"github.com/spf13/cobra"
)

// cronRunner is swapped in tests.
var cronRunner runner.CommandRunner = &runner.ExecRunner{}

func NewCronCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "cron [install|uninstall]",
		Short:     "Install or remove the monthly check in the user crontab",
		ValidArgs: []string{"install", "uninstall"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || (args[0] != "install" && args[0] != "uninstall") {
				return middleware.FlagComboError(errs.CronNeedsAction)
			}

			m := cron.New(cronRunner)
			if args[0] == "uninstall" {
				removed, err := m.Uninstall(cmd.Context())
				if err != nil {
					return err
				}
				if removed {
					logger.Success("cron job removed")
				} else {
					logger.Info("no cron job to remove")
				}
				return nil
			}

			pconf, err := middleware.Get[*globalconfig.PersistentConfig](cmd, middleware.CtxKeyPConfig)
			if err != nil {
				return err
			}
			configPath, err := middleware.Get[string](cmd, middleware.CtxKeyConfigPath)
			if err != nil {
				return err
			}
			bin, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to resolve executable: %w", err)
			}

			entry := cron.Entry(bin, configPath, filepath.Join(pconf.StateDir, "cron_output.log"))
			added, err := m.Install(cmd.Context(), entry)
			if err != nil {
				return err
			}
			if added {
				logger.Success("cron job installed: %s", entry)
			}
			return nil
		},
	}
}
