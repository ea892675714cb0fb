package gateway

import (
	"context"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// LogGateway publishes events as structured log lines. It is the default
// outbound binding when no external transport is configured, and doubles as
// the audit trail for every emitted event.
type LogGateway struct {
	logger zerolog.Logger
}

// NewLogGateway creates a log-backed publisher.
func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With().Str("component", "EventGateway").Logger()}
}

func (g *LogGateway) PublishFileDiscovered(_ context.Context, event models.FileDiscoveredEvent) error {
	g.logger.Info().
		Str("event", "file_discovered").
		Str("message_id", event.MessageID).
		Str("correlation_id", event.CorrelationID).
		Str("idempotency_key", event.IdempotencyKey).
		Str("configuration_id", event.ConfigurationID).
		Str("client_id", event.ClientID).
		Str("file_url", event.FileURL).
		Str("filename", event.Filename).
		Msg("Event published")
	return nil
}

func (g *LogGateway) PublishFileProcessed(_ context.Context, event models.FileProcessedEvent) error {
	g.logger.Info().
		Str("event", "file_processed").
		Str("message_id", event.MessageID).
		Str("correlation_id", event.CorrelationID).
		Str("configuration_id", event.ConfigurationID).
		Str("filename", event.Filename).
		Str("checksum_algorithm", event.ChecksumAlgorithm).
		Str("checksum", event.Checksum).
		Int64("downloaded_size", event.DownloadedSize).
		Msg("Event published")
	return nil
}

func (g *LogGateway) PublishCheckCompleted(_ context.Context, event models.CheckCompletedEvent) error {
	g.logger.Info().
		Str("event", "check_completed").
		Str("message_id", event.MessageID).
		Str("correlation_id", event.CorrelationID).
		Str("configuration_id", event.ConfigurationID).
		Int("files_found", event.FilesFound).
		Int("files_processed", event.FilesProcessed).
		Dur("duration", event.Duration).
		Msg("Event published")
	return nil
}

func (g *LogGateway) PublishCheckFailed(_ context.Context, event models.CheckFailedEvent) error {
	g.logger.Warn().
		Str("event", "check_failed").
		Str("message_id", event.MessageID).
		Str("correlation_id", event.CorrelationID).
		Str("configuration_id", event.ConfigurationID).
		Str("error_category", string(event.ErrorCategory)).
		Str("error_message", event.ErrorMessage).
		Int("retry_count", event.RetryCount).
		Msg("Event published")
	return nil
}
