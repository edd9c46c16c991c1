package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is what the completion webhook carries. Partial failures are not
// reported there; callers poll the status query for detail.
type JobStatus string

const JobStatusComplete JobStatus = "complete"

type Job struct {
	RequestID   string
	WebhookURL  string
	Records     []*EntityRecord
	SubmittedAt time.Time
}

func NewRequestID() string {
	return uuid.NewString()
}

// NewJob assigns a fresh request token and a pending record per entity.
func NewJob(manifest *Manifest, webhookURL string) *Job {
	requestID := NewRequestID()
	entities := manifest.Entities()
	records := make([]*EntityRecord, len(entities))
	for i, e := range entities {
		records[i] = NewEntityRecord(requestID, e, i)
	}
	return &Job{
		RequestID:   requestID,
		WebhookURL:  webhookURL,
		Records:     records,
		SubmittedAt: time.Now().UTC(),
	}
}

// AllTerminal returns true once every record has reached complete or failed.
func AllTerminal(records []*EntityRecord) bool {
	for _, r := range records {
		if !r.Status.IsTerminal() {
			return false
		}
	}
	return true
}
