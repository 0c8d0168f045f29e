package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
)

const annualReviewNote = "annual source: check whether the new edition has been published"

// FileName is the report name for a run date (YYYY-MM-DD).
func FileName(date string) string {
	return fmt.Sprintf("update_report_%s.json", date)
}

// Build aggregates the results of one run. It has no side effects.
func Build(results []models.CheckResult, now time.Time) models.Report {
	rep := models.Report{
		RunDate:             now.Format(models.DateLayout),
		RunTimestamp:        now,
		UpdatesFound:        []models.UpdateEntry{},
		ErrorsFound:         []models.ErrorEntry{},
		SourcesDueForReview: []models.ReviewEntry{},
		AllResults:          results,
	}
	if rep.AllResults == nil {
		rep.AllResults = []models.CheckResult{}
	}

	s := &rep.Summary
	s.TotalSources = len(results)
	for _, r := range results {
		switch {
		case r.Status.IsError():
			s.Errors++
			msg := ""
			if r.Error != nil {
				msg = *r.Error
			}
			rep.ErrorsFound = append(rep.ErrorsFound, models.ErrorEntry{
				SourceID: r.SourceID,
				Title:    r.Title,
				URL:      r.URL,
				Error:    msg,
				Status:   r.Status,
			})
		case r.Status == models.StatusUnchanged:
			s.Unchanged++
		case r.Status == models.StatusFirstCheck:
			s.FirstCheck++
		case r.Status == models.StatusSkippedStatic:
			s.SkippedStatic++
		}

		if r.Changed {
			s.Updated++
			changes := r.ChangeDetails
			if changes == nil {
				changes = []string{}
			}
			rep.UpdatesFound = append(rep.UpdatesFound, models.UpdateEntry{
				SourceID: r.SourceID,
				Title:    r.Title,
				Owner:    r.Owner,
				URL:      r.URL,
				Changes:  changes,
			})
		}
		if r.Partial {
			s.Partial++
		}
		if r.UpdateFrequency == models.CadenceAnnual {
			rep.SourcesDueForReview = append(rep.SourcesDueForReview, models.ReviewEntry{
				SourceID: r.SourceID,
				Title:    r.Title,
				Note:     annualReviewNote,
			})
		}
	}
	return rep
}

// Write stores the report as <dir>/update_report_<date>.json.
func Write(dir string, rep models.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(rep.RunDate))
	if err := utils.WriteJSONAtomic(path, rep); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
