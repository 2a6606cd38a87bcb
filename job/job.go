// gen3dapi/job/job.go
package job

import (
	"time"

	"github.com/lithammer/shortuuid/v4"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one submitted reconstruction tracked from upload to artifact.
// Field names on the wire match the polling contract of the API.
type Job struct {
	ID          string    `json:"job_id"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	Progress    int       `json:"progress"`
	Estimated   bool      `json:"estimated"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	SourcePath  string    `json:"-"` // uploaded video on local disk
}

// NewID returns a fresh job identifier.
func NewID() string {
	return shortuuid.New()
}

// New builds a queued record for an uploaded video.
func New(id, sourcePath string) Job {
	return Job{
		ID:         id,
		Status:     StatusQueued,
		Message:    "Waiting for a processing slot...",
		SourcePath: sourcePath,
		CreatedAt:  time.Now(),
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransition enforces the forward-only job state machine.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
