package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/catalog"
	"github.com/MrSnakeDoc/srcwatch/internal/detector"
	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/history"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/monitor"
	"github.com/MrSnakeDoc/srcwatch/internal/notifier"
	"github.com/MrSnakeDoc/srcwatch/internal/printer"
	"github.com/MrSnakeDoc/srcwatch/internal/report"
	"github.com/MrSnakeDoc/srcwatch/internal/scheduler"
	"github.com/MrSnakeDoc/srcwatch/internal/service"
	"github.com/MrSnakeDoc/srcwatch/internal/store"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"

	"github.com/spf13/cobra"
)

type checkFlags struct {
	sources  []string
	category string
	force    bool
	dryRun   bool
	delay    time.Duration
}

func NewCheckCmd() *cobra.Command {
	var f checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check due sources for changes",
		Long: `Check every due source of the catalog for changes and write the run report.

A source is due when its last check is older than the threshold of its cadence
(continuous 7 days, biennial 60, static 365, everything else 30). Static sources
are always reported as skipped_static and never requested.`,
		Example: `srcwatch check
srcwatch check --force
srcwatch check --source AIOM_001 --source NCCN_002
srcwatch check --category guidelines --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pconf, err := middleware.Get[*globalconfig.PersistentConfig](cmd, middleware.CtxKeyPConfig)
			if err != nil {
				return err
			}
			cat, err := middleware.Get[*catalog.Catalog](cmd, middleware.CtxKeyCatalog)
			if err != nil {
				return err
			}

			if f.delay < 0 {
				return middleware.FlagComboError(errs.NegativeDelay, f.delay)
			}
			if !cmd.Flags().Changed("delay") {
				f.delay = pconf.MonitorConfig().RequestDelay
			}
			f.sources = utils.Unique(f.sources)
			if len(f.sources) > 0 && len(cat.Unknown(f.sources)) == len(f.sources) {
				return middleware.FlagComboError(errs.UnknownSourceIDs, fmt.Sprint(f.sources), cat.Path)
			}

			return runCheck(cmd.Context(), cmd.OutOrStdout(), pconf, cat, f)
		},
	}

	cmd.Flags().StringArrayVar(&f.sources, "source", nil, "Only check this source_id (repeatable)")
	cmd.Flags().StringVar(&f.category, "category", "", "Only check sources of this category")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Check every source regardless of its cadence")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show what would be checked, without any request")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Pause between two requests (default from config, 2s)")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, pconf *globalconfig.PersistentConfig, cat *catalog.Catalog, f checkFlags) error {
	mc := pconf.MonitorConfig()
	now := time.Now()
	date := now.Format(models.DateLayout)

	gate := scheduler.NewGate(mc.StaticSources)
	opts := monitor.Options{IDs: f.sources, Category: f.category, Force: f.force, Delay: f.delay}

	if f.dryRun {
		mgr := monitor.New(cat, store.OpenFS(pconf.StateDir), gate, nil)
		plan, err := mgr.Plan(ctx, opts)
		if err != nil {
			return err
		}
		return renderDryRun(out, plan, gate)
	}

	logPath := filepath.Join(pconf.StateDir, fmt.Sprintf("update_check_%s.log", date))
	if err := logger.EnableFile(logger.FileOptions{
		Path:       logPath,
		MaxSizeMB:  pconf.Log.MaxSizeMB,
		MaxBackups: pconf.Log.MaxBackups,
	}); err != nil {
		logger.Warn("run log disabled: %v", err)
		logPath = ""
	}
	defer logger.CloseFile()

	st, err := store.NewFS(pconf.StateDir)
	if err != nil {
		return err
	}
	release, err := st.Lock()
	if err != nil {
		return err
	}
	defer utils.Try(release)

	client, err := service.NewHTTPClient(mc.RequestTimeout)
	if err != nil {
		return err
	}
	mgr := monitor.New(cat, st, gate, detector.New(client, mc))

	logger.Info("sources in catalog: %d", len(cat.Sources))
	plan, err := mgr.Plan(ctx, opts)
	if err != nil {
		return err
	}
	logger.Info("sources with prior state: %d, due now: %d", len(plan.State), len(plan.Selected))
	// static sources alone never make a run
	if plan.Network(gate) == 0 && !f.force {
		logger.Info("No source is due. Use --force to check anyway.")
		return nil
	}

	rec := openHistory(ctx, pconf.HistoryPath(), now, len(plan.Selected), f.force)
	defer rec.close()

	results, runErr := mgr.Execute(ctx, plan, opts)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		rec.complete(ctx, history.RunFailed, models.Summary{}, "")
		return runErr
	}

	ids := utils.Map(results, func(r models.CheckResult) string { return r.SourceID })
	if err := cat.MarkChecked(ids, date); err != nil {
		logger.Warn("catalog not updated: %v", err)
	} else {
		logger.Debug("catalog updated: %s", cat.Path)
	}

	rep := report.Build(results, time.Now())
	reportPath, err := report.Write(pconf.StateDir, rep)
	if err != nil {
		rec.complete(ctx, history.RunFailed, rep.Summary, "")
		return err
	}
	logger.Debug("report saved: %s", reportPath)

	rec.results(ctx, results)
	status := history.RunCompleted
	if runErr != nil {
		status = history.RunInterrupted
	}
	rec.complete(ctx, status, rep.Summary, reportPath)

	if err := printReport(out, rep, notifier.Paths{Log: logPath, Report: reportPath, State: st.Path()}); err != nil {
		return err
	}
	return runErr
}

func printReport(out io.Writer, rep models.Report, paths notifier.Paths) error {
	switch {
	case logger.FlagSilent:
		return nil
	case logger.FlagJSON:
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		return notifier.DisplaySummary(out, rep, paths)
	}
}

func renderDryRun(out io.Writer, plan monitor.Plan, gate *scheduler.Gate) error {
	p := printer.NewColorPrinter()
	fmt.Fprintf(out, "%s %d of %d sources would be checked\n", p.Warning("[DRY RUN]"), len(plan.Selected), plan.Candidates)

	table := logger.CreateTable(out, []string{"Source", "Title", "Cadence", "Last check", "Action"})
	last := func(id string) string {
		if d := plan.State[id].LastChecked; d != "" {
			return d
		}
		return "never"
	}
	for _, s := range plan.Selected {
		action := p.Success("check")
		if gate.IsStatic(s) {
			action = p.Debug("skip (static)")
		}
		if err := table.Append([]string{s.ID, s.Label(), string(s.UpdateFrequency), last(s.ID), action}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	for _, s := range plan.NotDue {
		if err := table.Append([]string{s.ID, s.Label(), string(s.UpdateFrequency), last(s.ID), "not due"}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

// recorder writes run history. A history failure never fails the run.
type recorder struct {
	db    *history.DB
	runID string
}

func openHistory(ctx context.Context, path string, started time.Time, sources int, forced bool) *recorder {
	db, err := history.Open(ctx, path)
	if err != nil {
		logger.Warn("run history disabled: %v", err)
		return &recorder{}
	}
	id, err := db.RecordRunStart(ctx, started, sources, forced)
	if err != nil {
		logger.Warn("run history disabled: %v", err)
		_ = db.Close()
		return &recorder{}
	}
	logger.Event("run started", "run_id", id, "sources", sources, "forced", forced)
	return &recorder{db: db, runID: id}
}

func (r *recorder) results(ctx context.Context, results []models.CheckResult) {
	if r.db == nil {
		return
	}
	if err := r.db.RecordResults(context.WithoutCancel(ctx), r.runID, results); err != nil {
		logger.Warn("failed to record results: %v", err)
	}
}

func (r *recorder) complete(ctx context.Context, status string, s models.Summary, reportPath string) {
	if r.db == nil {
		return
	}
	if err := r.db.CompleteRun(context.WithoutCancel(ctx), r.runID, time.Now(), status, s, reportPath); err != nil {
		logger.Warn("failed to complete run record: %v", err)
	}
}

func (r *recorder) close() {
	if r.db != nil {
		utils.Try(r.db.Close)
	}
}
