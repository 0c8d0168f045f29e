package models

import "time"

type Status string

const (
	StatusSkippedStatic   Status = "skipped_static"
	StatusFirstCheck      Status = "first_check"
	StatusUnchanged       Status = "unchanged"
	StatusUpdated         Status = "updated"
	StatusHTTPError       Status = "http_error"
	StatusTimeout         Status = "timeout"
	StatusConnectionError Status = "connection_error"
	StatusRequestError    Status = "request_error"
)

func (s Status) IsError() bool {
	switch s {
	case StatusHTTPError, StatusTimeout, StatusConnectionError, StatusRequestError:
		return true
	default:
		return false
	}
}

const MaxErrorLen = 200

// CheckResult is the outcome of one source in one run.
type CheckResult struct {
	SourceID        string    `json:"source_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Owner           string    `json:"owner"`
	Category        string    `json:"category"`
	UpdateFrequency Cadence   `json:"update_frequency"`
	CheckedAt       time.Time `json:"check_timestamp"`
	Status          Status    `json:"status"`
	Changed         bool      `json:"changed"`
	ChangeDetails   []string  `json:"change_details"`
	HTTPStatus      *int      `json:"http_status"`
	Error           *string   `json:"error"`
	Partial         bool      `json:"partial,omitempty"`
}

// NewCheckResult seeds a result from the catalog record.
func NewCheckResult(src Source, at time.Time) CheckResult {
	return CheckResult{
		SourceID:        src.ID,
		Title:           src.Title,
		URL:             src.URL,
		Owner:           src.Owner,
		Category:        src.Category,
		UpdateFrequency: src.UpdateFrequency,
		CheckedAt:       at,
		ChangeDetails:   []string{},
	}
}

// Fail finalizes the result as an error outcome.
func (r *CheckResult) Fail(status Status, msg string) {
	r.Status = status
	r.Changed = false
	msg = TruncateRunes(msg, MaxErrorLen)
	r.Error = &msg
}

func (r *CheckResult) SetHTTPStatus(code int) {
	if code == 0 {
		return
	}
	c := code
	r.HTTPStatus = &c
}

func TruncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
