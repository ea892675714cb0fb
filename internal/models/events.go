package models

import (
	"time"

	"github.com/google/uuid"
)

// EventEnvelope carries the delivery metadata every outbound event and
// inbound command must have: a unique message id, the correlation id tying
// related messages together (the execution id for engine events), the
// occurred-at instant and an idempotency key consumers can dedup on.
type EventEnvelope struct {
	MessageID      string    `json:"message_id"`
	CorrelationID  string    `json:"correlation_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEventEnvelope builds an envelope with a fresh message id.
func NewEventEnvelope(correlationID, idempotencyKey string) EventEnvelope {
	return EventEnvelope{
		MessageID:      uuid.NewString(),
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		OccurredAt:     time.Now().UTC(),
	}
}

// FileDiscoveredEvent is emitted once per newly discovered file.
type FileDiscoveredEvent struct {
	EventEnvelope
	ConfigurationID   string       `json:"configuration_id"`
	ConfigurationName string       `json:"configuration_name"`
	ClientID          string       `json:"client_id"`
	Protocol          ProtocolKind `json:"protocol"`
	ExecutionID       string       `json:"execution_id"`
	DiscoveredFileID  string       `json:"discovered_file_id"`
	FileURL           string       `json:"file_url"`
	Filename          string       `json:"filename"`
	Size              *int64       `json:"size,omitempty"`
	LastModified      *time.Time   `json:"last_modified,omitempty"`
}

// CheckCompletedEvent is emitted once per Completed execution, including
// runs that found zero files.
type CheckCompletedEvent struct {
	EventEnvelope
	ExecutionID      string        `json:"execution_id"`
	ConfigurationID  string        `json:"configuration_id"`
	ClientID         string        `json:"client_id"`
	FilesFound       int           `json:"files_found"`
	FilesProcessed   int           `json:"files_processed"`
	Duration         time.Duration `json:"duration"`
	ResolvedPath     string        `json:"resolved_path"`
	ResolvedFilename string        `json:"resolved_filename"`
}

// CheckFailedEvent is emitted once per Failed execution. Together with the
// execution record it is the only externally visible failure signal.
type CheckFailedEvent struct {
	EventEnvelope
	ExecutionID      string        `json:"execution_id"`
	ConfigurationID  string        `json:"configuration_id"`
	ClientID         string        `json:"client_id"`
	ErrorMessage     string        `json:"error_message"`
	ErrorCategory    ErrorCategory `json:"error_category"`
	RetryCount       int           `json:"retry_count"`
	ResolvedPath     string        `json:"resolved_path"`
	ResolvedFilename string        `json:"resolved_filename"`
}

// FileProcessedEvent is emitted once a discovered file's bytes have been
// fetched and checksummed.
type FileProcessedEvent struct {
	EventEnvelope
	ExecutionID       string `json:"execution_id"`
	ConfigurationID   string `json:"configuration_id"`
	ClientID          string `json:"client_id"`
	DiscoveredFileID  string `json:"discovered_file_id"`
	Filename          string `json:"filename"`
	ChecksumAlgorithm string `json:"checksum_algorithm"`
	Checksum          string `json:"checksum"`
	DownloadedSize    int64  `json:"downloaded_size"`
}

// TriggerExecutionCommand is the inbound command that starts one check.
// Scheduled fires carry a deterministic idempotency key derived from the
// configuration id and the fire-time bucket; manual triggers carry a fresh
// one. A re-delivered key must not start a second run.
type TriggerExecutionCommand struct {
	IdempotencyKey   string        `json:"idempotency_key"`
	ConfigurationID  string        `json:"configuration_id"`
	ClientID         string        `json:"client_id"`
	ReferenceInstant time.Time     `json:"reference_instant"`
	Source           TriggerSource `json:"source"`
}
