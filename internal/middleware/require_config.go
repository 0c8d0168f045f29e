package middleware

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/spf13/cobra"
)

// ConfigPath is bound to the persistent --config flag.
var ConfigPath string

// ResolveConfigPath returns --config, then SRCWATCH_CONFIG, then the default location.
func ResolveConfigPath() (string, error) {
	if ConfigPath != "" {
		return ConfigPath, nil
	}
	return globalconfig.DefaultPath()
}

func RequireConfig(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	path, err := ResolveConfigPath()
	if err != nil {
		return err
	}
	pconf, err := globalconfig.Load(path)
	if err != nil {
		return fmt.Errorf("missing config: %w", err)
	}
	logger.ConfigureLogger(pconf.Log.Level)

	ctx := context.WithValue(cmd.Context(), CtxKeyPConfig, pconf)
	ctx = context.WithValue(ctx, CtxKeyConfigPath, path)
	cmd.SetContext(ctx)

	return next(cmd, args)
}
