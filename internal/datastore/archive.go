package datastore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filesentry/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// IntakeHistoryRow is the flattened parquet schema for the long-term intake
// archive. Timestamps are unix millis so the files stay portable across
// parquet readers.
type IntakeHistoryRow struct {
	ConfigurationID   string `parquet:"configuration_id"`
	ExecutionID       string `parquet:"execution_id"`
	DiscoveredFileID  string `parquet:"discovered_file_id"`
	ClientID          string `parquet:"client_id"`
	Filename          string `parquet:"filename"`
	DownloadedSize    int64  `parquet:"downloaded_size"`
	ChecksumAlgorithm string `parquet:"checksum_algorithm"`
	Checksum          string `parquet:"checksum"`
	ProcessedAt       int64  `parquet:"processed_at,timestamp(millisecond)"`
}

// IntakeArchive appends processed-file records to date-partitioned parquet
// files (<base>/intake/YYYY-MM-DD.parquet). The SQLite stores remain the
// operational source of truth; the archive is an immutable audit trail.
type IntakeArchive struct {
	basePath string
	codec    string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewIntakeArchive creates an archive rooted at basePath. Supported codecs
// are "zstd", "snappy", "gzip" and "" (uncompressed).
func NewIntakeArchive(basePath, codec string, logger zerolog.Logger) (*IntakeArchive, error) {
	dir := filepath.Join(basePath, "intake")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return &IntakeArchive{
		basePath: dir,
		codec:    codec,
		logger:   logger.With().Str("component", "IntakeArchive").Logger(),
	}, nil
}

// Append rewrites the day's parquet file with the new record included.
// Files are small (one day of one deployment's intake), so read-append-write
// is cheaper than maintaining row groups incrementally.
func (a *IntakeArchive) Append(record models.ProcessedFileRecord, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	day := record.ProcessedAt.UTC().Format(models.DiscoveryDayLayout)
	filePath := filepath.Join(a.basePath, day+".parquet")

	rows, err := a.readExisting(filePath)
	if err != nil {
		return err
	}

	rows = append(rows, IntakeHistoryRow{
		ConfigurationID:   record.ConfigurationID,
		ExecutionID:       record.ExecutionID,
		DiscoveredFileID:  record.DiscoveredFileID,
		ClientID:          record.ClientID,
		Filename:          filename,
		DownloadedSize:    record.DownloadedSize,
		ChecksumAlgorithm: record.ChecksumAlgorithm,
		Checksum:          record.Checksum,
		ProcessedAt:       record.ProcessedAt.UnixMilli(),
	})

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			a.logger.Error().Err(closeErr).Str("path", filePath).Msg("Failed to close archive file")
		}
	}()

	writer := parquet.NewGenericWriter[IntakeHistoryRow](file, a.compressionOption())
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("writing archive rows to %s: %w", filePath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing archive writer for %s: %w", filePath, err)
	}
	return nil
}

// ReadDay loads every archived row for one discovery day.
func (a *IntakeArchive) ReadDay(day string) ([]IntakeHistoryRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readExisting(filepath.Join(a.basePath, day+".parquet"))
}

func (a *IntakeArchive) readExisting(filePath string) ([]IntakeHistoryRow, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file %s: %w", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[IntakeHistoryRow](file)
	defer reader.Close()

	rows := make([]IntakeHistoryRow, 0, reader.NumRows())
	buffer := make([]IntakeHistoryRow, 64)
	for {
		n, readErr := reader.Read(buffer)
		rows = append(rows, buffer[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading archive rows from %s: %w", filePath, readErr)
		}
	}

	a.logger.Debug().Str("path", filePath).Int64("size_bytes", info.Size()).Int("rows", len(rows)).Msg("Loaded archive file")
	return rows, nil
}

func (a *IntakeArchive) compressionOption() parquet.WriterOption {
	switch a.codec {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}
