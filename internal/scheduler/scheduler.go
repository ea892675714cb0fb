// Package scheduler evaluates configuration cron expressions and dispatches
// execution triggers. Timing decisions live here; what happens during one
// check lives in the engine. Fire times are dispatched at most once even
// across ticks that overlap or commands that are redelivered.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filesentry/internal/datastore"
	"filesentry/internal/gateway"
	"filesentry/internal/metrics"
	"filesentry/internal/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultTickInterval        = time.Minute
	DefaultLedgerRetentionDays = 30

	// firedKeyRetention bounds the in-memory fire-key dedup window. Keys
	// older than this cannot be redelivered by the tick loop anyway.
	firedKeyRetention = 48 * time.Hour
)

// Runner executes one configuration check. *engine.Engine is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, command models.TriggerExecutionCommand, cfg models.Configuration) (*models.Execution, error)
}

// ConfigurationSource supplies the configurations the scheduler evaluates.
// *datastore.ConfigurationStore is the production implementation.
type ConfigurationSource interface {
	ListActive(ctx context.Context) ([]models.Configuration, error)
	GetByID(ctx context.Context, id string) (*models.Configuration, error)
}

// Options tunes the scheduler loop.
type Options struct {
	TickInterval        time.Duration
	LedgerRetentionDays int
}

// NewDefaultOptions returns the production tick cadence and retention.
func NewDefaultOptions() Options {
	return Options{
		TickInterval:        DefaultTickInterval,
		LedgerRetentionDays: DefaultLedgerRetentionDays,
	}
}

// Scheduler owns the tick loop. Each tick it refreshes the active
// configurations, computes the cron fire times that fell since the previous
// evaluation, and dispatches one trigger per fire time. It also implements
// gateway.TriggerDispatcher so manual triggers flow through the same
// single-flight and dedup checks as scheduled ones.
type Scheduler struct {
	runner  Runner
	configs ConfigurationSource
	ledger  *datastore.DiscoveryLedger
	opts    Options
	logger  zerolog.Logger

	mu          sync.Mutex
	lastEval    map[string]time.Time
	firedKeys   map[string]time.Time
	inFlight    map[string]struct{}
	pending     map[string][]models.TriggerExecutionCommand
	lastPrune   string
	isRunning   bool
	stopChan    chan struct{}
	wg          sync.WaitGroup
	executionWG sync.WaitGroup
}

// New creates a scheduler. ledger may be nil to disable retention pruning.
func New(runner Runner, configs ConfigurationSource, ledger *datastore.DiscoveryLedger, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.LedgerRetentionDays <= 0 {
		opts.LedgerRetentionDays = DefaultLedgerRetentionDays
	}
	return &Scheduler{
		runner:    runner,
		configs:   configs,
		ledger:    ledger,
		opts:      opts,
		logger:    logger.With().Str("component", "Scheduler").Logger(),
		lastEval:  make(map[string]time.Time),
		firedKeys: make(map[string]time.Time),
		inFlight:  make(map[string]struct{}),
		pending:   make(map[string][]models.TriggerExecutionCommand),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the tick loop. It returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("tick_interval", s.opts.TickInterval).
		Int("ledger_retention_days", s.opts.LedgerRetentionDays).
		Msg("Scheduler starting")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("Context cancelled, exiting scheduler loop")
				return
			case <-s.stopChan:
				s.logger.Info().Msg("Stop signal received, exiting scheduler loop")
				return
			case now := <-ticker.C:
				s.Tick(ctx, now.UTC())
			}
		}
	}()
	return nil
}

// Stop signals the loop to exit and waits for it and all in-flight
// executions to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.executionWG.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Tick evaluates every active configuration against now. Exported so tests
// and the one-shot CLI mode can drive the loop deterministically.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	configs, err := s.configs.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active configurations")
		return
	}
	metrics.ActiveConfigurations.Set(float64(len(configs)))

	for _, cfg := range configs {
		s.evaluateConfiguration(ctx, cfg, now)
	}

	s.pruneLedger(ctx, now)
	s.pruneFiredKeys(now)
}

// evaluateConfiguration dispatches one trigger for every fire time in the
// half-open interval (lastEval, now]. Overlap protection still applies: a
// fire time whose predecessor is mid-run is deferred by Dispatch until that
// run is terminal.
func (s *Scheduler) evaluateConfiguration(ctx context.Context, cfg models.Configuration, now time.Time) {
	schedule, err := cron.ParseStandard(cfg.CronExpression)
	if err != nil {
		s.logger.Error().Err(err).
			Str("configuration_id", cfg.ID).
			Str("cron", cfg.CronExpression).
			Msg("Invalid cron expression, skipping configuration")
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		s.logger.Error().Err(err).
			Str("configuration_id", cfg.ID).
			Str("timezone", cfg.Timezone).
			Msg("Invalid timezone, skipping configuration")
		return
	}

	s.mu.Lock()
	last, seen := s.lastEval[cfg.ID]
	if !seen {
		last = now
		s.lastEval[cfg.ID] = now
	}
	s.mu.Unlock()
	if !seen {
		return
	}

	for next := schedule.Next(last.In(loc)); !next.After(now); next = schedule.Next(next) {
		fireTime := next.UTC()
		command := models.TriggerExecutionCommand{
			IdempotencyKey:   FireKey(cfg.ID, fireTime),
			ConfigurationID:  cfg.ID,
			ClientID:         cfg.ClientID,
			ReferenceInstant: fireTime,
			Source:           models.TriggerSourceScheduled,
		}
		metrics.ScheduledFiresTotal.Inc()
		if err := s.Dispatch(ctx, command); err != nil {
			s.logger.Error().Err(err).
				Str("configuration_id", cfg.ID).
				Time("fire_time", fireTime).
				Msg("Failed to dispatch scheduled trigger")
		}
	}

	s.mu.Lock()
	s.lastEval[cfg.ID] = now
	s.mu.Unlock()
}

// FireKey derives the deterministic idempotency key for one scheduled fire
// time. The same configuration and fire time always yield the same key, so
// redelivery cannot start a second run.
func FireKey(configurationID string, fireTime time.Time) string {
	return configurationID + "@" + fireTime.UTC().Format(time.RFC3339)
}

// Dispatch accepts one trigger command, applies idempotency and
// single-flight checks, and runs the check asynchronously. A duplicate key
// is a silent no-op: the trigger was already honored, so there is nothing
// to report. A trigger for a configuration whose previous run is still in
// flight is deferred and runs once that run reaches a terminal state, so a
// manual trigger racing a scheduled one is never lost.
func (s *Scheduler) Dispatch(ctx context.Context, command models.TriggerExecutionCommand) error {
	if command.ConfigurationID == "" {
		return models.NewValidationError("configuration_id", "trigger command missing configuration id")
	}
	if command.Source == "" {
		command.Source = models.TriggerSourceManual
	}
	if command.ReferenceInstant.IsZero() {
		command.ReferenceInstant = time.Now().UTC()
	}
	if command.IdempotencyKey == "" {
		command.IdempotencyKey = uuid.NewString()
	}

	cfg, err := s.configs.GetByID(ctx, command.ConfigurationID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return models.NewValidationError("configuration_id", "configuration not found: "+command.ConfigurationID)
	}
	if !cfg.Active {
		return models.NewValidationError("configuration_id", "configuration is inactive: "+command.ConfigurationID)
	}

	s.mu.Lock()
	if _, fired := s.firedKeys[command.IdempotencyKey]; fired {
		s.mu.Unlock()
		s.logger.Debug().
			Str("idempotency_key", command.IdempotencyKey).
			Msg("Trigger already honored, ignoring redelivery")
		return nil
	}
	s.firedKeys[command.IdempotencyKey] = time.Now().UTC()
	if _, running := s.inFlight[cfg.ID]; running {
		s.pending[cfg.ID] = append(s.pending[cfg.ID], command)
		s.mu.Unlock()
		s.logger.Debug().
			Str("configuration_id", cfg.ID).
			Str("idempotency_key", command.IdempotencyKey).
			Msg("Execution in flight for configuration, deferring trigger")
		return nil
	}
	s.inFlight[cfg.ID] = struct{}{}
	s.mu.Unlock()

	s.executionWG.Add(1)
	go s.runAndDrain(ctx, command, *cfg)
	return nil
}

// runAndDrain executes the command, then any triggers deferred for the same
// configuration while it was in flight, one at a time. Sequential draining
// keeps runs for one configuration strictly serialized.
func (s *Scheduler) runAndDrain(ctx context.Context, command models.TriggerExecutionCommand, cfg models.Configuration) {
	defer s.executionWG.Done()
	for {
		if _, err := s.runner.Run(ctx, command, cfg); err != nil {
			s.logger.Error().Err(err).
				Str("configuration_id", cfg.ID).
				Msg("Execution run failed to persist state")
		}

		next, ok := s.nextPending(cfg.ID)
		if !ok {
			return
		}
		command = next
	}
}

// nextPending pops the oldest deferred trigger for the configuration. When
// the queue is empty it releases the in-flight slot instead, under the same
// lock, so no trigger can slip between the two.
func (s *Scheduler) nextPending(configurationID string) (models.TriggerExecutionCommand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.pending[configurationID]
	if len(queue) == 0 {
		delete(s.pending, configurationID)
		delete(s.inFlight, configurationID)
		return models.TriggerExecutionCommand{}, false
	}
	next := queue[0]
	if len(queue) == 1 {
		delete(s.pending, configurationID)
	} else {
		s.pending[configurationID] = queue[1:]
	}
	return next, true
}

// WaitIdle blocks until every dispatched execution has finished. Used by
// tests and the one-shot CLI mode.
func (s *Scheduler) WaitIdle() {
	s.executionWG.Wait()
}

// TriggerAll dispatches a manual trigger for every active configuration and
// waits for the runs to finish. This backs the one-shot CLI mode.
func (s *Scheduler) TriggerAll(ctx context.Context) error {
	configs, err := s.configs.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		command := models.TriggerExecutionCommand{
			ConfigurationID: cfg.ID,
			ClientID:        cfg.ClientID,
			Source:          models.TriggerSourceManual,
		}
		if err := s.Dispatch(ctx, command); err != nil {
			s.logger.Error().Err(err).
				Str("configuration_id", cfg.ID).
				Msg("Failed to dispatch manual trigger")
		}
	}
	s.WaitIdle()
	return nil
}

// pruneLedger removes discovery records older than the retention window,
// at most once per day.
func (s *Scheduler) pruneLedger(ctx context.Context, now time.Time) {
	if s.ledger == nil {
		return
	}
	today := now.Format(models.DiscoveryDayLayout)

	s.mu.Lock()
	alreadyPruned := s.lastPrune == today
	if !alreadyPruned {
		s.lastPrune = today
	}
	s.mu.Unlock()
	if alreadyPruned {
		return
	}

	cutoff := now.AddDate(0, 0, -s.opts.LedgerRetentionDays).Format(models.DiscoveryDayLayout)
	if _, err := s.ledger.PruneBefore(ctx, cutoff); err != nil {
		s.logger.Error().Err(err).Str("cutoff_day", cutoff).Msg("Failed to prune discovery ledger")
	}
}

func (s *Scheduler) pruneFiredKeys(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, firedAt := range s.firedKeys {
		if now.Sub(firedAt) > firedKeyRetention {
			delete(s.firedKeys, key)
		}
	}
}

var _ gateway.TriggerDispatcher = (*Scheduler)(nil)
