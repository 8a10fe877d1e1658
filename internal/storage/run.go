package storage

import "time"

// Run status values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one extraction cycle recorded in the journal
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Head       string    `json:"head,omitempty"`       // Commit the cycle extracted
	Generation string    `json:"generation,omitempty"` // Generation id published by the cycle
	Commits    int       `json:"commits"`
	Documents  int       `json:"documents"`
	Added      int       `json:"added"`
	Changed    int       `json:"changed"`
	Removed    int       `json:"removed"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration is how long the cycle ran
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
