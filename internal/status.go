package internal

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/MrSnakeDoc/srcwatch/internal/catalog"
	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/printer"
	"github.com/MrSnakeDoc/srcwatch/internal/scheduler"
	"github.com/MrSnakeDoc/srcwatch/internal/store"

	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"ls"},
		Short:   "Show the last check of every source",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pconf, err := middleware.Get[*globalconfig.PersistentConfig](cmd, middleware.CtxKeyPConfig)
			if err != nil {
				return err
			}
			cat, err := middleware.Get[*catalog.Catalog](cmd, middleware.CtxKeyCatalog)
			if err != nil {
				return err
			}
			return renderStatus(cmd.Context(), cmd.OutOrStdout(), pconf, cat, category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list sources of this category")
	return cmd
}

func renderStatus(ctx context.Context, out io.Writer, pconf *globalconfig.PersistentConfig, cat *catalog.Catalog, category string) error {
	state, err := store.OpenFS(pconf.StateDir).Load(ctx)
	if err != nil {
		return err
	}

	p := printer.NewColorPrinter()
	gate := scheduler.NewGate(pconf.MonitorConfig().StaticSources)

	table := logger.CreateTable(out, []string{"Source", "Title", "Cadence", "Last check", "Days", "Due"})
	for _, s := range cat.Filter(nil, category) {
		fp := state[s.ID]
		last, days := "never", "-"
		if fp.LastChecked != "" {
			last = fp.LastChecked
		}
		if n, ok := gate.ElapsedDays(fp); ok {
			days = strconv.Itoa(n)
		}

		due := "no"
		switch {
		case gate.IsStatic(s):
			due = p.Debug("static")
		case gate.IsDue(s, fp):
			due = p.Warning("yes")
		}

		if err := table.Append([]string{s.ID, s.Label(), string(s.UpdateFrequency), last, days, due}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}
