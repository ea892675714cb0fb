// Package engine runs one configuration check end to end: resolve the
// date patterns, list the remote source, dedup against the discovery
// ledger, fetch and checksum new files, and publish the outcome events.
// The engine owns the execution state machine; the scheduler only decides
// when to call Run.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"filesentry/internal/adapter"
	"filesentry/internal/datastore"
	"filesentry/internal/gateway"
	"filesentry/internal/metrics"
	"filesentry/internal/models"
	"filesentry/internal/pattern"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ChecksumAlgorithm identifies the digest recorded for every fetched file.
	ChecksumAlgorithm = "sha256"

	DefaultCallTimeout = 30 * time.Second
)

// DefaultBackoffs returns the retry delays applied between transient
// failures. Three entries means one initial attempt plus up to three retries.
func DefaultBackoffs() []time.Duration {
	return []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}
}

// Options tunes the engine's retry and timeout behavior.
type Options struct {
	Backoffs    []time.Duration
	CallTimeout time.Duration
}

// NewDefaultOptions returns the production retry policy.
func NewDefaultOptions() Options {
	return Options{
		Backoffs:    DefaultBackoffs(),
		CallTimeout: DefaultCallTimeout,
	}
}

// AdapterFactory builds the protocol adapter for one configuration.
// adapter.Factory is the production implementation; tests substitute one
// returning an in-memory adapter.
type AdapterFactory interface {
	ForConfiguration(cfg models.Configuration) (adapter.SourceAdapter, error)
}

// Engine executes configuration checks. Safe for concurrent use across
// configurations; the scheduler guarantees runs for the same configuration
// never overlap.
type Engine struct {
	adapters   AdapterFactory
	executions *datastore.ExecutionStore
	ledger     *datastore.DiscoveryLedger
	processed  *datastore.ProcessedFileStore
	archive    *datastore.IntakeArchive
	publisher  gateway.Publisher
	limiter    *ResourceLimiter
	opts       Options
	logger     zerolog.Logger
}

// New creates an engine. archive and limiter may be nil to disable the
// parquet audit trail and admission control respectively.
func New(
	adapters AdapterFactory,
	executions *datastore.ExecutionStore,
	ledger *datastore.DiscoveryLedger,
	processed *datastore.ProcessedFileStore,
	archive *datastore.IntakeArchive,
	publisher gateway.Publisher,
	limiter *ResourceLimiter,
	opts Options,
	logger zerolog.Logger,
) *Engine {
	if len(opts.Backoffs) == 0 {
		opts.Backoffs = DefaultBackoffs()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Engine{
		adapters:   adapters,
		executions: executions,
		ledger:     ledger,
		processed:  processed,
		archive:    archive,
		publisher:  publisher,
		limiter:    limiter,
		opts:       opts,
		logger:     logger.With().Str("component", "ExecutionEngine").Logger(),
	}
}

// Run performs one check for cfg, driven by the trigger command. It always
// leaves the execution in a terminal state and publishes exactly one
// completion or failure event for it. A Failed execution is a normal
// outcome, not an error: the returned error is non-nil only when the engine
// could not persist its own state.
func (e *Engine) Run(ctx context.Context, command models.TriggerExecutionCommand, cfg models.Configuration) (*models.Execution, error) {
	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer e.limiter.Release()
	}

	exec := models.NewExecution(cfg.ID, cfg.ClientID, command.Source, command.ReferenceInstant)
	if err := e.executions.Insert(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution for configuration %s: %w", cfg.ID, err)
	}

	log := e.logger.With().
		Str("execution_id", exec.ID).
		Str("configuration_id", cfg.ID).
		Str("client_id", cfg.ClientID).
		Logger()
	log.Info().
		Str("triggered_by", string(exec.TriggeredBy)).
		Time("reference_instant", exec.ReferenceInstant).
		Msg("Execution started")

	// The execution enters InProgress before any validation or I/O so a
	// failure never short-circuits the state machine from Pending.
	exec.MarkInProgress()
	loc, locErr := cfg.Location()
	if locErr == nil {
		exec.ResolvedPath = pattern.Resolve(cfg.PathPattern, exec.ReferenceInstant, loc)
		exec.ResolvedFilename = pattern.Resolve(cfg.FilenamePattern, exec.ReferenceInstant, loc)
	}
	if err := e.executions.Update(ctx, exec); err != nil {
		return nil, err
	}
	if locErr != nil {
		return e.fail(ctx, log, exec, cfg, models.NewValidationError("timezone", locErr.Error()))
	}

	src, err := e.adapters.ForConfiguration(cfg)
	if err != nil {
		return e.fail(ctx, log, exec, cfg, err)
	}

	budget := newRetryBudget(e.opts.Backoffs)
	candidates, err := e.listWithRetry(ctx, src, exec, budget)
	if err != nil {
		return e.fail(ctx, log, exec, cfg, err)
	}
	exec.FilesFound = len(candidates)

	discoveryDay := pattern.DiscoveryDay(exec.ReferenceInstant, loc)
	for _, candidate := range candidates {
		processed, err := e.intakeCandidate(ctx, log, src, exec, cfg, candidate, discoveryDay, budget)
		if err != nil {
			return e.fail(ctx, log, exec, cfg, err)
		}
		if processed {
			exec.FilesProcessed++
		}
	}

	exec.MarkCompleted(time.Now().UTC())
	if err := e.executions.Update(ctx, exec); err != nil {
		return nil, err
	}

	event := models.CheckCompletedEvent{
		EventEnvelope:    models.NewEventEnvelope(exec.ID, exec.ID+":completed"),
		ExecutionID:      exec.ID,
		ConfigurationID:  cfg.ID,
		ClientID:         cfg.ClientID,
		FilesFound:       exec.FilesFound,
		FilesProcessed:   exec.FilesProcessed,
		Duration:         exec.Duration,
		ResolvedPath:     exec.ResolvedPath,
		ResolvedFilename: exec.ResolvedFilename,
	}
	if err := e.publisher.PublishCheckCompleted(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to publish check-completed event")
	}

	metrics.RecordExecution(cfg.ID, string(exec.Status), exec.Duration)
	log.Info().
		Int("files_found", exec.FilesFound).
		Int("files_processed", exec.FilesProcessed).
		Dur("duration", exec.Duration).
		Msg("Execution completed")
	return exec, nil
}

// listWithRetry lists the remote source under the execution's retry budget
// and records consumed retries on the execution.
func (e *Engine) listWithRetry(ctx context.Context, src adapter.SourceAdapter, exec *models.Execution, budget *retryBudget) ([]adapter.CandidateFile, error) {
	var candidates []adapter.CandidateFile
	retries, err := e.withRetry(ctx, budget, func(callCtx context.Context) error {
		var listErr error
		candidates, listErr = src.List(callCtx, exec.ResolvedPath, exec.ResolvedFilename)
		return listErr
	})
	exec.RetryCount += retries
	if retries > 0 {
		metrics.RetriesTotal.WithLabelValues(exec.ConfigurationID).Add(float64(retries))
	}
	return candidates, err
}

// intakeCandidate dedups one candidate against the ledger and, when the
// sighting is new for the discovery day, fetches and checksums its bytes,
// records it, and publishes the discovery and processed events. It reports
// whether the candidate was processed; a duplicate sighting is a silent
// skip.
func (e *Engine) intakeCandidate(ctx context.Context, log zerolog.Logger, src adapter.SourceAdapter, exec *models.Execution, cfg models.Configuration, candidate adapter.CandidateFile, discoveryDay string, budget *retryBudget) (bool, error) {
	file := models.NewDiscoveredFile(cfg.ID, exec.ID, cfg.ClientID, candidate.URL, candidate.Filename, discoveryDay)
	file.Size = candidate.Size
	file.LastModified = candidate.LastModified

	inserted, err := e.ledger.TryInsert(ctx, file)
	if err != nil {
		return false, models.NewInternalError("discovery ledger", err)
	}
	if !inserted {
		return false, nil
	}

	log.Info().
		Str("filename", file.Filename).
		Str("discovery_day", discoveryDay).
		Msg("New file discovered")
	metrics.FilesDiscoveredTotal.WithLabelValues(cfg.ID).Inc()

	record, err := e.fetchAndChecksum(ctx, src, exec, cfg, candidate, file, budget)
	if err != nil {
		if statusErr := e.ledger.UpdateStatus(ctx, file.ID, models.DiscoveryStatusFailed); statusErr != nil {
			log.Error().Err(statusErr).Str("discovered_file_id", file.ID).Msg("Failed to mark discovery failed")
		}
		return false, err
	}

	if err := e.processed.Insert(ctx, record); err != nil {
		return false, models.NewInternalError("processed file store", err)
	}
	if e.archive != nil {
		if err := e.archive.Append(*record, file.Filename); err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to append intake archive")
		}
	}

	discoveredEvent := models.FileDiscoveredEvent{
		EventEnvelope:     models.NewEventEnvelope(exec.ID, exec.ID+":discovered:"+file.ID),
		ConfigurationID:   cfg.ID,
		ConfigurationName: cfg.Name,
		ClientID:          cfg.ClientID,
		Protocol:          cfg.Protocol,
		ExecutionID:       exec.ID,
		DiscoveredFileID:  file.ID,
		FileURL:           file.FileURL,
		Filename:          file.Filename,
		Size:              file.Size,
		LastModified:      file.LastModified,
	}
	if err := e.publisher.PublishFileDiscovered(ctx, discoveredEvent); err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to publish file-discovered event")
	} else if err := e.ledger.UpdateStatus(ctx, file.ID, models.DiscoveryStatusEventPublished); err != nil {
		log.Error().Err(err).Str("discovered_file_id", file.ID).Msg("Failed to advance discovery status")
	}

	processedEvent := models.FileProcessedEvent{
		EventEnvelope:     models.NewEventEnvelope(exec.ID, exec.ID+":processed:"+file.ID),
		ExecutionID:       exec.ID,
		ConfigurationID:   cfg.ID,
		ClientID:          cfg.ClientID,
		DiscoveredFileID:  file.ID,
		Filename:          file.Filename,
		ChecksumAlgorithm: record.ChecksumAlgorithm,
		Checksum:          record.Checksum,
		DownloadedSize:    record.DownloadedSize,
	}
	if err := e.publisher.PublishFileProcessed(ctx, processedEvent); err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to publish file-processed event")
	} else if err := e.ledger.UpdateStatus(ctx, file.ID, models.DiscoveryStatusCompleted); err != nil {
		log.Error().Err(err).Str("discovered_file_id", file.ID).Msg("Failed to advance discovery status")
	}

	metrics.FilesProcessedTotal.WithLabelValues(cfg.ID).Inc()
	return true, nil
}

// fetchAndChecksum streams the candidate's bytes through a SHA-256 digest
// under the execution's retry budget. The whole fetch is retried on
// transient failure; a partially read stream is discarded, never resumed.
func (e *Engine) fetchAndChecksum(ctx context.Context, src adapter.SourceAdapter, exec *models.Execution, cfg models.Configuration, candidate adapter.CandidateFile, file *models.DiscoveredFile, budget *retryBudget) (*models.ProcessedFileRecord, error) {
	var digest string
	var size int64
	retries, err := e.withRetry(ctx, budget, func(callCtx context.Context) error {
		reader, _, fetchErr := src.Fetch(callCtx, candidate)
		if fetchErr != nil {
			return fetchErr
		}
		defer reader.Close()

		hasher := sha256.New()
		n, copyErr := io.Copy(hasher, reader)
		if copyErr != nil {
			return models.NewConnectionError(candidate.URL, copyErr)
		}
		digest = hex.EncodeToString(hasher.Sum(nil))
		size = n
		return nil
	})
	exec.RetryCount += retries
	if retries > 0 {
		metrics.RetriesTotal.WithLabelValues(cfg.ID).Add(float64(retries))
	}
	if err != nil {
		return nil, err
	}

	return &models.ProcessedFileRecord{
		ID:                uuid.NewString(),
		ConfigurationID:   cfg.ID,
		ExecutionID:       exec.ID,
		DiscoveredFileID:  file.ID,
		ClientID:          cfg.ClientID,
		DownloadedSize:    size,
		ChecksumAlgorithm: ChecksumAlgorithm,
		Checksum:          digest,
		ProcessedAt:       time.Now().UTC(),
	}, nil
}

// fail moves the execution to Failed, persists it, and publishes the
// failure event. The categorized error becomes execution state rather than
// propagating to the caller.
func (e *Engine) fail(ctx context.Context, log zerolog.Logger, exec *models.Execution, cfg models.Configuration, cause error) (*models.Execution, error) {
	category := models.CategoryOf(cause)
	exec.MarkFailed(time.Now().UTC(), cause.Error(), category, exec.RetryCount)

	// The run context may already be cancelled (shutdown). Terminal state
	// still has to reach the store, so persistence gets its own deadline.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := e.executions.Update(ctx, exec); err != nil {
		return nil, err
	}

	event := models.CheckFailedEvent{
		EventEnvelope:    models.NewEventEnvelope(exec.ID, exec.ID+":failed"),
		ExecutionID:      exec.ID,
		ConfigurationID:  cfg.ID,
		ClientID:         cfg.ClientID,
		ErrorMessage:     exec.ErrorMessage,
		ErrorCategory:    exec.ErrorCategory,
		RetryCount:       exec.RetryCount,
		ResolvedPath:     exec.ResolvedPath,
		ResolvedFilename: exec.ResolvedFilename,
	}
	if err := e.publisher.PublishCheckFailed(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to publish check-failed event")
	}

	metrics.RecordExecution(cfg.ID, string(exec.Status), exec.Duration)
	log.Warn().
		Str("error_category", string(exec.ErrorCategory)).
		Int("retry_count", exec.RetryCount).
		Str("error", exec.ErrorMessage).
		Msg("Execution failed")
	return exec, nil
}
