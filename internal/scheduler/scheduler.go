package scheduler

import (
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
)

const defaultThresholdDays = 30

// Days between checks per cadence tag, not the publication interval.
var thresholdDays = map[models.Cadence]int{
	models.CadenceContinuous: 7,
	models.CadenceQuarterly:  30,
	models.CadenceAnnual:     30,
	models.CadenceBiennial:   60,
	models.CadencePeriodic:   30,
	models.CadenceStatic:     365,
}

// ThresholdDays returns the minimum age in days before a source is due again.
func ThresholdDays(c models.Cadence) int {
	if d, ok := thresholdDays[c]; ok {
		return d
	}
	return defaultThresholdDays
}

func Threshold(c models.Cadence) time.Duration {
	return time.Duration(ThresholdDays(c)) * 24 * time.Hour
}

// Gate decides which sources get probed in a run.
type Gate struct {
	Now    func() time.Time
	Static map[string]struct{}
	// Loc is the zone stored dates are read in. Nil means time.Local.
	Loc *time.Location
}

func NewGate(static []string) *Gate {
	set := make(map[string]struct{}, len(static))
	for _, id := range static {
		set[id] = struct{}{}
	}
	return &Gate{Now: time.Now, Static: set}
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// IsStatic reports whether the source is flagged immutable, either in the
// catalog row or through the configured id set.
func (g *Gate) IsStatic(src models.Source) bool {
	if src.Static {
		return true
	}
	_, ok := g.Static[src.ID]
	return ok
}

// ElapsedDays counts calendar days between the stored date and today in
// the gate's zone, so DST shifts never shorten a day.
// ok is false when the date is missing or unparseable.
func (g *Gate) ElapsedDays(fp models.Fingerprint) (days int, ok bool) {
	if fp.LastChecked == "" {
		return 0, false
	}
	last, err := time.Parse(models.DateLayout, fp.LastChecked)
	if err != nil {
		return 0, false
	}
	loc := g.Loc
	if loc == nil {
		loc = time.Local
	}
	y, m, d := g.now().In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if today.Before(last) {
		return 0, true
	}
	return int(today.Sub(last).Hours() / 24), true
}

// IsDue is true for a source never checked, or checked at least
// ThresholdDays(cadence) days ago.
func (g *Gate) IsDue(src models.Source, fp models.Fingerprint) bool {
	days, ok := g.ElapsedDays(fp)
	if !ok {
		return true
	}
	return days >= ThresholdDays(src.UpdateFrequency)
}

// Select splits sources in catalog order. Static sources are always selected
// so they show up as skipped_static; force makes every source due.
func (g *Gate) Select(sources []models.Source, state models.RunState, force bool) (due, notDue []models.Source) {
	for _, src := range sources {
		switch {
		case g.IsStatic(src), force, g.IsDue(src, state[src.ID]):
			due = append(due, src)
		default:
			days, _ := g.ElapsedDays(state[src.ID])
			logger.Debug("gate: %s not due (%d/%d days, %s)", src.ID, days, ThresholdDays(src.UpdateFrequency), src.UpdateFrequency)
			notDue = append(notDue, src)
		}
	}
	return due, notDue
}
