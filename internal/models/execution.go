package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of a single configuration check.
type ExecutionStatus string

const (
	ExecutionStatusPending    ExecutionStatus = "PENDING"
	ExecutionStatusInProgress ExecutionStatus = "IN_PROGRESS"
	ExecutionStatusCompleted  ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed     ExecutionStatus = "FAILED"
)

// TriggerSource distinguishes scheduled cron fires from operator-initiated runs.
type TriggerSource string

const (
	TriggerSourceScheduled TriggerSource = "scheduled"
	TriggerSourceManual    TriggerSource = "manual"
)

// Execution records one run of a configuration's check. It is created
// Pending, mutated only by the execution engine, and immutable once it
// reaches a terminal status (Completed or Failed).
type Execution struct {
	ID               string          `json:"id"`
	ConfigurationID  string          `json:"configuration_id"`
	ClientID         string          `json:"client_id"`
	Status           ExecutionStatus `json:"status"`
	TriggeredBy      TriggerSource   `json:"triggered_by"`
	ReferenceInstant time.Time       `json:"reference_instant"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FilesFound       int             `json:"files_found"`
	FilesProcessed   int             `json:"files_processed"`
	ResolvedPath     string          `json:"resolved_path,omitempty"`
	ResolvedFilename string          `json:"resolved_filename,omitempty"`
	Duration         time.Duration   `json:"duration"`
	RetryCount       int             `json:"retry_count"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ErrorCategory    ErrorCategory   `json:"error_category,omitempty"`
	Version          int64           `json:"version"`
}

// NewExecution creates a Pending execution for the given trigger.
func NewExecution(configurationID, clientID string, source TriggerSource, referenceInstant time.Time) *Execution {
	return &Execution{
		ID:               uuid.NewString(),
		ConfigurationID:  configurationID,
		ClientID:         clientID,
		Status:           ExecutionStatusPending,
		TriggeredBy:      source,
		ReferenceInstant: referenceInstant,
		StartedAt:        time.Now().UTC(),
	}
}

// IsTerminal reports whether the execution has reached a final status.
func (e *Execution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// MarkInProgress transitions Pending -> InProgress.
func (e *Execution) MarkInProgress() {
	e.Status = ExecutionStatusInProgress
}

// MarkCompleted transitions to the Completed terminal state. CompletedAt and
// Duration are set here and nowhere else, keeping the "completed-at is set
// iff terminal" invariant in one place.
func (e *Execution) MarkCompleted(now time.Time) {
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt)
	e.ErrorMessage = ""
	e.ErrorCategory = ""
}

// MarkFailed transitions to the Failed terminal state with the categorized
// error and the number of retries that were consumed.
func (e *Execution) MarkFailed(now time.Time, message string, category ErrorCategory, retries int) {
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt)
	e.ErrorMessage = message
	e.ErrorCategory = category
	e.RetryCount = retries
}
