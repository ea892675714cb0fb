package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscoveryDayLayout is the calendar-date format used as the dedup bucket
// for discovered files. The day is computed in the configuration's timezone.
const DiscoveryDayLayout = "2006-01-02"

// DiscoveryStatus tracks how far a discovered file has progressed through
// notification and downstream hand-off.
type DiscoveryStatus string

const (
	DiscoveryStatusDiscovered     DiscoveryStatus = "DISCOVERED"
	DiscoveryStatusEventPublished DiscoveryStatus = "EVENT_PUBLISHED"
	DiscoveryStatusCommandSent    DiscoveryStatus = "COMMAND_SENT"
	DiscoveryStatusCompleted      DiscoveryStatus = "COMPLETED"
	DiscoveryStatusFailed         DiscoveryStatus = "FAILED"
)

// DiscoveredFile is one distinct remote file seen on one discovery day.
// The tuple (ConfigurationID, Filename, DiscoveryDay) is unique: it is the
// idempotency key that prevents re-notifying for the same file across
// multiple polling cycles within the same day.
type DiscoveredFile struct {
	ID              string          `json:"id"`
	ConfigurationID string          `json:"configuration_id"`
	ExecutionID     string          `json:"execution_id"`
	ClientID        string          `json:"client_id"`
	FileURL         string          `json:"file_url"`
	Filename        string          `json:"filename"`
	Size            *int64          `json:"size,omitempty"`
	LastModified    *time.Time      `json:"last_modified,omitempty"`
	DiscoveredAt    time.Time       `json:"discovered_at"`
	DiscoveryDay    string          `json:"discovery_day"`
	Status          DiscoveryStatus `json:"status"`
}

// NewDiscoveredFile builds a Discovered record for the first sighting of a
// file within the given discovery day.
func NewDiscoveredFile(configurationID, executionID, clientID, fileURL, filename, discoveryDay string) *DiscoveredFile {
	return &DiscoveredFile{
		ID:              uuid.NewString(),
		ConfigurationID: configurationID,
		ExecutionID:     executionID,
		ClientID:        clientID,
		FileURL:         fileURL,
		Filename:        filename,
		DiscoveredAt:    time.Now().UTC(),
		DiscoveryDay:    discoveryDay,
		Status:          DiscoveryStatusDiscovered,
	}
}

// ProcessedFileRecord is created once a discovered file's bytes have been
// fetched and checksummed. Immutable after creation.
type ProcessedFileRecord struct {
	ID                string    `json:"id"`
	ConfigurationID   string    `json:"configuration_id"`
	ExecutionID       string    `json:"execution_id"`
	DiscoveredFileID  string    `json:"discovered_file_id"`
	ClientID          string    `json:"client_id"`
	DownloadedSize    int64     `json:"downloaded_size"`
	ChecksumAlgorithm string    `json:"checksum_algorithm"`
	Checksum          string    `json:"checksum"`
	ProcessedAt       time.Time `json:"processed_at"`
}
