package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/history"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"

	"github.com/spf13/cobra"
)

func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return middleware.FlagComboError(errs.InvalidLimit, limit)
			}
			pconf, err := middleware.Get[*globalconfig.PersistentConfig](cmd, middleware.CtxKeyPConfig)
			if err != nil {
				return err
			}
			return renderHistory(cmd.Context(), cmd.OutOrStdout(), pconf.HistoryPath(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func renderHistory(ctx context.Context, out io.Writer, path string, limit int) error {
	if ok, err := utils.FileExists(path); err != nil {
		return err
	} else if !ok {
		logger.Info("No runs recorded yet.")
		return nil
	}

	db, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer utils.Try(db.Close)

	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		logger.Info("No runs recorded yet.")
		return nil
	}

	table := logger.CreateTable(out, []string{"Started", "Status", "Forced", "Sources", "Updated", "Errors", "Report"})
	for _, r := range runs {
		row := []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			strconv.FormatBool(r.Forced),
			strconv.Itoa(r.Sources),
			strconv.Itoa(r.Summary.Updated),
			strconv.Itoa(r.Summary.Errors),
			reportName(r.ReportPath),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

func reportName(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}
