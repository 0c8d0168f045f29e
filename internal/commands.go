package internal

import (
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/spf13/cobra"
)

var defaultCommands = []middleware.CommandFactory{
	NewInitCmd,
	middleware.UseMiddlewareChain(middleware.RequireConfig, middleware.LoadCatalog)(NewCheckCmd),
	middleware.UseMiddlewareChain(middleware.RequireConfig, middleware.LoadCatalog)(NewStatusCmd),
	middleware.UseMiddlewareChain(middleware.RequireConfig)(NewHistoryCmd),
	middleware.UseMiddlewareChain(middleware.RequireConfig)(NewCronCmd),
}

func RegisterSubCommands(cmd *cobra.Command) {
	for _, factory := range defaultCommands {
		cmd.AddCommand(factory())
	}
}
