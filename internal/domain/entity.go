package domain

import (
	"fmt"
	"time"
)

type EntityStatus string

const (
	EntityStatusPending    EntityStatus = "pending"
	EntityStatusInProgress EntityStatus = "in-progress"
	EntityStatusComplete   EntityStatus = "complete"
	EntityStatusFailed     EntityStatus = "failed"
)

// IsTerminal returns true for complete and failed.
func (s EntityStatus) IsTerminal() bool {
	return s == EntityStatusComplete || s == EntityStatusFailed
}

func (s EntityStatus) rank() int {
	switch s {
	case EntityStatusPending:
		return 0
	case EntityStatusInProgress:
		return 1
	case EntityStatusComplete, EntityStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a record may move from one status to another.
// Transitions only move forward and terminal statuses are never left.
func CanTransition(from, to EntityStatus) bool {
	if from.rank() < 0 || to.rank() < 0 {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	return to.rank() > from.rank()
}

// CanOverwrite reports whether a stored record may be replaced by a write
// carrying the incoming status. Unlike CanTransition it accepts a repeat of
// a non-terminal status, which stores see when a pending record is re-saved.
func CanOverwrite(stored, incoming EntityStatus) bool {
	if stored.rank() < 0 || incoming.rank() < 0 || stored.IsTerminal() {
		return false
	}
	return incoming.rank() >= stored.rank()
}

type EntityRecord struct {
	RequestID       string       `json:"request_id"`
	EntityID        int64        `json:"entity_id"`
	Title           string       `json:"title"`
	Position        int          `json:"position"`
	InputImageURLs  []string     `json:"input_image_urls"`
	OutputImageURLs []string     `json:"output_image_urls"`
	Status          EntityStatus `json:"status"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func NewEntityRecord(requestID string, entity ManifestEntity, position int) *EntityRecord {
	now := time.Now().UTC()
	inputs := make([]string, len(entity.ImageURLs))
	copy(inputs, entity.ImageURLs)

	return &EntityRecord{
		RequestID:       requestID,
		EntityID:        entity.EntityID,
		Title:           entity.Title,
		Position:        position,
		InputImageURLs:  inputs,
		OutputImageURLs: []string{},
		Status:          EntityStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (r *EntityRecord) transition(to EntityStatus) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s (entity %d)", ErrInvalidTransition, r.Status, to, r.EntityID)
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *EntityRecord) MarkInProgress() error {
	return r.transition(EntityStatusInProgress)
}

// MarkComplete records the hosted URLs collected for the entity. There can
// never be more outputs than inputs.
func (r *EntityRecord) MarkComplete(outputs []string) error {
	if len(outputs) > len(r.InputImageURLs) {
		return fmt.Errorf("entity %d: %d outputs for %d inputs", r.EntityID, len(outputs), len(r.InputImageURLs))
	}
	if err := r.transition(EntityStatusComplete); err != nil {
		return err
	}
	r.OutputImageURLs = make([]string, len(outputs))
	copy(r.OutputImageURLs, outputs)
	return nil
}

// MarkFailed drops any collected outputs; a failed entity records none.
func (r *EntityRecord) MarkFailed(cause error) error {
	if err := r.transition(EntityStatusFailed); err != nil {
		return err
	}
	r.OutputImageURLs = []string{}
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *EntityRecord) Clone() *EntityRecord {
	c := *r
	c.InputImageURLs = append([]string(nil), r.InputImageURLs...)
	c.OutputImageURLs = append([]string{}, r.OutputImageURLs...)
	return &c
}

// OutputRow is one line of a job report. Index is the display position among
// completed entities, unrelated to EntityID.
type OutputRow struct {
	Index           int
	Title           string
	InputImageURLs  []string
	OutputImageURLs []string
}

// BuildOutputRows indexes completed records 1..n in the order given. Records
// that did not complete are skipped.
func BuildOutputRows(records []*EntityRecord) []OutputRow {
	rows := make([]OutputRow, 0, len(records))
	for _, r := range records {
		if r == nil || r.Status != EntityStatusComplete {
			continue
		}
		rows = append(rows, OutputRow{
			Index:           len(rows) + 1,
			Title:           r.Title,
			InputImageURLs:  r.InputImageURLs,
			OutputImageURLs: r.OutputImageURLs,
		})
	}
	return rows
}
