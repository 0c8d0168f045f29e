package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/catalog"
	"github.com/MrSnakeDoc/srcwatch/internal/detector"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/scheduler"
	"github.com/MrSnakeDoc/srcwatch/internal/store"
)

// Checker is what the manager needs from the change detector.
type Checker interface {
	Check(ctx context.Context, src models.Source, prior models.Fingerprint) (models.CheckResult, *models.Fingerprint)
}

type Options struct {
	IDs      []string
	Category string
	Force    bool
	Delay    time.Duration
}

// Plan is the selection of a run before any request goes out.
type Plan struct {
	Candidates int
	Selected   []models.Source
	NotDue     []models.Source
	State      models.RunState
}

// Network counts the selected sources that will hit the network.
func (p Plan) Network(gate *scheduler.Gate) int {
	n := 0
	for _, s := range p.Selected {
		if !gate.IsStatic(s) {
			n++
		}
	}
	return n
}

type Manager struct {
	Catalog *catalog.Catalog
	Store   store.Store
	Gate    *scheduler.Gate
	Checker Checker
	Sleep   detector.Sleeper
	Now     func() time.Time

	mu sync.Mutex
}

func New(cat *catalog.Catalog, st store.Store, gate *scheduler.Gate, checker Checker) *Manager {
	return &Manager{
		Catalog: cat,
		Store:   st,
		Gate:    gate,
		Checker: checker,
		Sleep:   detector.ContextSleep,
		Now:     time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Plan loads state, applies the filters and splits due from not due.
// It performs no network I/O and writes nothing.
func (m *Manager) Plan(ctx context.Context, opts Options) (Plan, error) {
	state, err := m.Store.Load(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("load state: %w", err)
	}

	if unknown := m.Catalog.Unknown(opts.IDs); len(unknown) > 0 {
		logger.Warn("unknown source ids ignored: %v", unknown)
	}
	candidates := m.Catalog.Filter(opts.IDs, opts.Category)
	if len(opts.IDs) > 0 {
		logger.Info("filter by source_id %v -> %d sources", opts.IDs, len(candidates))
	}
	if opts.Category != "" {
		logger.Info("filter by category %q -> %d sources", opts.Category, len(candidates))
	}

	due, notDue := m.Gate.Select(candidates, state, opts.Force)
	return Plan{Candidates: len(candidates), Selected: due, NotDue: notDue, State: state}, nil
}

// Run checks every selected source in catalog order. Per-source failures end
// up in the results, never in the returned error. On cancellation the results
// gathered so far are returned together with ctx.Err().
func (m *Manager) Run(ctx context.Context, opts Options) ([]models.CheckResult, error) {
	plan, err := m.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}
	return m.Execute(ctx, plan, opts)
}

func (m *Manager) Execute(ctx context.Context, plan Plan, opts Options) ([]models.CheckResult, error) {
	sleep := m.Sleep
	if sleep == nil {
		sleep = detector.ContextSleep
	}
	state := plan.State
	if state == nil {
		state = models.RunState{}
	}

	total := len(plan.Selected)
	results := make([]models.CheckResult, 0, total)
	remainingNetwork := plan.Network(m.Gate)

	var runErr error
	for i, src := range plan.Selected {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if m.Gate.IsStatic(src) {
			res := models.NewCheckResult(src, m.now())
			res.Status = models.StatusSkippedStatic
			logger.Info("[%d/%d] [%s] %s - static source, skipped", i+1, total, src.ID, src.Label())
			results = append(results, res)
			continue
		}

		logger.Debug("[%d/%d] checking %s (%s)", i+1, total, src.ID, src.URL)
		res, fp := m.Checker.Check(ctx, src, state[src.ID])
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		remainingNetwork--

		results = append(results, res)
		logResult(i+1, total, src, res)

		if fp != nil {
			m.merge(state, src.ID, *fp)
			if err := m.Store.Save(ctx, state); err != nil {
				logger.Warn("intermediate state save failed: %v", err)
			}
		}

		if remainingNetwork > 0 && opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				runErr = err
				break
			}
		}
	}

	if err := m.Store.Save(context.WithoutCancel(ctx), state); err != nil {
		return results, fmt.Errorf("save state: %w", err)
	}
	if runErr != nil {
		logger.Warn("run interrupted after %d/%d sources: %v", len(results), total, runErr)
	}
	return results, runErr
}

func (m *Manager) merge(state models.RunState, id string, fp models.Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state[id] = fp
}

func logResult(i, total int, src models.Source, res models.CheckResult) {
	prefix := fmt.Sprintf("[%d/%d] [%s] %s", i, total, src.ID, src.Label())
	switch {
	case res.Status == models.StatusUpdated:
		logger.Success("%s - update detected: %v", prefix, res.ChangeDetails)
	case res.Status == models.StatusFirstCheck:
		logger.Info("%s - first check, fingerprint stored", prefix)
	case res.Status == models.StatusUnchanged:
		logger.Info("%s - no change", prefix)
	case res.Status.IsError():
		msg := ""
		if res.Error != nil {
			msg = models.TruncateRunes(*res.Error, 100)
		}
		logger.Warn("%s - %s: %s", prefix, res.Status, msg)
	}
	logger.Event("source checked",
		"source_id", res.SourceID,
		"status", string(res.Status),
		"changed", res.Changed,
		"partial", res.Partial,
	)
}
