package models

// Fingerprint is the persisted comparison signals for one source.
type Fingerprint struct {
	LastChecked   string `json:"last_checked"`
	HTTPStatus    int    `json:"http_status,omitempty"`
	ContentHash   string `json:"content_hash,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	ETag          string `json:"etag,omitempty"`
	ContentLength string `json:"content_length,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
}

// IsZero reports whether the fingerprint carries no comparison signal.
// A date-only entry counts as never checked.
func (f Fingerprint) IsZero() bool {
	return f.ContentHash == "" &&
		f.LastModified == "" &&
		f.ETag == "" &&
		f.ContentLength == "" &&
		f.ContentType == ""
}

type RunState map[string]Fingerprint
