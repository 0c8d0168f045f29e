package middleware

import (
	"context"

	"github.com/MrSnakeDoc/srcwatch/internal/catalog"
	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/spf13/cobra"
)

// LoadCatalog must run after RequireConfig.
func LoadCatalog(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	pconf, err := Get[*globalconfig.PersistentConfig](cmd, CtxKeyPConfig)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(pconf.CatalogPath)
	if err != nil {
		return err
	}

	ctx := context.WithValue(cmd.Context(), CtxKeyCatalog, cat)
	cmd.SetContext(ctx)

	return next(cmd, args)
}
