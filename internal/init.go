package internal

import (
	"errors"

	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/initiator"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/prompter"

	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	var (
		catalogPath string
		stateDir    string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the srcwatch configuration",
		Long: `Initialize srcwatch.
This command will:
- Write config.yml to ~/.config/srcwatch (or --config, or $SRCWATCH_CONFIG)
- Create an empty CSV catalog if the given one does not exist
- Create the state directory that holds state, reports and logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := middleware.ResolveConfigPath()
			if err != nil {
				return err
			}

			ini := initiator.New(path, catalogPath, stateDir, prompter.New(cmd.InOrStdin(), cmd.OutOrStdout()))
			ini.Force = force
			pconf, err := ini.Execute()
			if errors.Is(err, initiator.ErrDeclined) {
				return middleware.FlagComboError(errs.ConfigExists, path)
			}
			if err != nil {
				return err
			}

			logger.Success("Initialized srcwatch: config %s, catalog %s", path, pconf.CatalogPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "sources_catalog.csv", "Catalog file (CSV or YAML)")
	cmd.Flags().StringVar(&stateDir, "state-dir", "logs", "Directory for state, reports and logs")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration")
	return cmd
}
