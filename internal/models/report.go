package models

import "time"

type Summary struct {
	TotalSources  int `json:"total_sources"`
	Updated       int `json:"updated"`
	Unchanged     int `json:"unchanged"`
	FirstCheck    int `json:"first_check"`
	Errors        int `json:"errors"`
	SkippedStatic int `json:"skipped_static"`
	Partial       int `json:"partial"`
}

type UpdateEntry struct {
	SourceID string   `json:"source_id"`
	Title    string   `json:"title"`
	Owner    string   `json:"owner"`
	URL      string   `json:"url"`
	Changes  []string `json:"changes"`
}

type ErrorEntry struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Error    string `json:"error"`
	Status   Status `json:"status"`
}

type ReviewEntry struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Note     string `json:"note"`
}

type Report struct {
	RunDate             string        `json:"report_date"`
	RunTimestamp        time.Time     `json:"report_timestamp"`
	Summary             Summary       `json:"summary"`
	UpdatesFound        []UpdateEntry `json:"updates_found"`
	ErrorsFound         []ErrorEntry  `json:"errors_found"`
	SourcesDueForReview []ReviewEntry `json:"sources_due_for_review"`
	AllResults          []CheckResult `json:"all_results"`
}
