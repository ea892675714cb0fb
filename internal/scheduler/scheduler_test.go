package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu       sync.Mutex
	commands []models.TriggerExecutionCommand
	block    chan struct{}
}

func (r *stubRunner) Run(_ context.Context, command models.TriggerExecutionCommand, cfg models.Configuration) (*models.Execution, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	exec := models.NewExecution(cfg.ID, cfg.ClientID, command.Source, command.ReferenceInstant)
	exec.MarkCompleted(time.Now().UTC())
	return exec, nil
}

func (r *stubRunner) Commands() []models.TriggerExecutionCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TriggerExecutionCommand(nil), r.commands...)
}

type stubConfigs struct {
	mu    sync.Mutex
	items map[string]models.Configuration
}

func newStubConfigs(configs ...models.Configuration) *stubConfigs {
	s := &stubConfigs{items: make(map[string]models.Configuration)}
	for _, cfg := range configs {
		s.items[cfg.ID] = cfg
	}
	return s
}

func (s *stubConfigs) ListActive(context.Context) ([]models.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []models.Configuration
	for _, cfg := range s.items {
		if cfg.Active {
			active = append(active, cfg)
		}
	}
	return active, nil
}

func (s *stubConfigs) GetByID(_ context.Context, id string) (*models.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func minutelyConfiguration(id string) models.Configuration {
	return models.Configuration{
		ID:              id,
		ClientID:        "client-a",
		Name:            "minutely",
		Protocol:        models.ProtocolHTTPS,
		PathPattern:     "https://files.example.com/reports",
		FilenamePattern: "report.csv",
		CronExpression:  "* * * * *",
		Timezone:        "UTC",
		Active:          true,
	}
}

func TestScheduler_FireTimeDispatchedAtMostOnce(t *testing.T) {
	runner := &stubRunner{}
	cfg := minutelyConfiguration("cfg-1")
	sched := New(runner, newStubConfigs(cfg), nil, NewDefaultOptions(), zerolog.Nop())
	ctx := context.Background()

	t0 := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	sched.Tick(ctx, t0) // first evaluation only seeds the baseline
	sched.WaitIdle()
	require.Empty(t, runner.Commands())

	sched.Tick(ctx, t0.Add(time.Minute))
	sched.WaitIdle()
	commands := runner.Commands()
	require.Len(t, commands, 1)
	assert.Equal(t, t0.Add(time.Minute), commands[0].ReferenceInstant)
	assert.Equal(t, models.TriggerSourceScheduled, commands[0].Source)
	assert.Equal(t, FireKey("cfg-1", t0.Add(time.Minute)), commands[0].IdempotencyKey)

	// The same instant evaluated again produces no second run.
	sched.Tick(ctx, t0.Add(time.Minute))
	sched.WaitIdle()
	assert.Len(t, runner.Commands(), 1)

	// A redelivered command with the already-honored key is a no-op.
	require.NoError(t, sched.Dispatch(ctx, commands[0]))
	sched.WaitIdle()
	assert.Len(t, runner.Commands(), 1)
}

func TestScheduler_CatchesUpMissedFireTime(t *testing.T) {
	runner := &stubRunner{}
	cfg := minutelyConfiguration("cfg-1")
	cfg.CronExpression = "0 9 * * *"
	sched := New(runner, newStubConfigs(cfg), nil, NewDefaultOptions(), zerolog.Nop())
	ctx := context.Background()

	seed := time.Date(2026, 2, 23, 8, 59, 0, 0, time.UTC)
	sched.Tick(ctx, seed)

	// The tick lands a minute late; the 09:00 fire still dispatches with
	// the fire time as its reference instant.
	sched.Tick(ctx, time.Date(2026, 2, 23, 9, 1, 0, 0, time.UTC))
	sched.WaitIdle()

	commands := runner.Commands()
	require.Len(t, commands, 1)
	assert.Equal(t, time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC), commands[0].ReferenceInstant)
}

func TestScheduler_CronEvaluatedInConfigurationTimezone(t *testing.T) {
	runner := &stubRunner{}
	cfg := minutelyConfiguration("cfg-1")
	cfg.CronExpression = "0 9 * * *"
	cfg.Timezone = "Pacific/Auckland"
	sched := New(runner, newStubConfigs(cfg), nil, NewDefaultOptions(), zerolog.Nop())
	ctx := context.Background()

	// 09:00 in Auckland (UTC+13 in February) is 20:00 UTC the previous day.
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	fireLocal := time.Date(2026, 2, 23, 9, 0, 0, 0, auckland)

	sched.Tick(ctx, fireLocal.UTC().Add(-time.Minute))
	sched.Tick(ctx, fireLocal.UTC().Add(time.Minute))
	sched.WaitIdle()

	commands := runner.Commands()
	require.Len(t, commands, 1)
	assert.True(t, commands[0].ReferenceInstant.Equal(fireLocal))
}

func TestScheduler_OverlappingTriggerIsDeferred(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	cfg := minutelyConfiguration("cfg-1")
	sched := New(runner, newStubConfigs(cfg), nil, NewDefaultOptions(), zerolog.Nop())
	ctx := context.Background()

	first := models.TriggerExecutionCommand{
		IdempotencyKey:  "manual-1",
		ConfigurationID: "cfg-1",
		Source:          models.TriggerSourceManual,
	}
	require.NoError(t, sched.Dispatch(ctx, first))
	require.Eventually(t, func() bool { return len(runner.Commands()) == 1 }, time.Second, time.Millisecond)

	// A second trigger while the first is still running is deferred, not
	// lost, and must not start until the first reaches a terminal state.
	second := first
	second.IdempotencyKey = "manual-2"
	require.NoError(t, sched.Dispatch(ctx, second))
	require.Len(t, runner.Commands(), 1)

	// Redelivery of an already-accepted key stays a no-op even while
	// deferred.
	require.NoError(t, sched.Dispatch(ctx, second))

	runner.mu.Lock()
	block := runner.block
	runner.block = nil
	runner.mu.Unlock()
	close(block)
	sched.WaitIdle()

	commands := runner.Commands()
	require.Len(t, commands, 2)
	assert.Equal(t, "manual-1", commands[0].IdempotencyKey)
	assert.Equal(t, "manual-2", commands[1].IdempotencyKey)

	// Once the queue is drained the configuration accepts triggers again.
	third := first
	third.IdempotencyKey = "manual-3"
	require.NoError(t, sched.Dispatch(ctx, third))
	sched.WaitIdle()
	assert.Len(t, runner.Commands(), 3)
}

func TestScheduler_DispatchValidatesConfiguration(t *testing.T) {
	runner := &stubRunner{}
	inactive := minutelyConfiguration("cfg-off")
	inactive.Active = false
	sched := New(runner, newStubConfigs(inactive), nil, NewDefaultOptions(), zerolog.Nop())
	ctx := context.Background()

	err := sched.Dispatch(ctx, models.TriggerExecutionCommand{ConfigurationID: "cfg-missing"})
	require.Error(t, err)
	assert.Equal(t, models.CategoryValidation, models.CategoryOf(err))

	err = sched.Dispatch(ctx, models.TriggerExecutionCommand{ConfigurationID: "cfg-off"})
	require.Error(t, err)
	assert.Equal(t, models.CategoryValidation, models.CategoryOf(err))

	err = sched.Dispatch(ctx, models.TriggerExecutionCommand{})
	require.Error(t, err)
	assert.Equal(t, models.CategoryValidation, models.CategoryOf(err))

	assert.Empty(t, runner.Commands())
}

func TestScheduler_TriggerAllRunsEveryActiveConfiguration(t *testing.T) {
	runner := &stubRunner{}
	cfgA := minutelyConfiguration("cfg-a")
	cfgB := minutelyConfiguration("cfg-b")
	inactive := minutelyConfiguration("cfg-off")
	inactive.Active = false
	sched := New(runner, newStubConfigs(cfgA, cfgB, inactive), nil, NewDefaultOptions(), zerolog.Nop())

	require.NoError(t, sched.TriggerAll(context.Background()))

	commands := runner.Commands()
	require.Len(t, commands, 2)
	ids := []string{commands[0].ConfigurationID, commands[1].ConfigurationID}
	assert.ElementsMatch(t, []string{"cfg-a", "cfg-b"}, ids)
	for _, command := range commands {
		assert.Equal(t, models.TriggerSourceManual, command.Source)
		assert.NotEmpty(t, command.IdempotencyKey)
		assert.False(t, command.ReferenceInstant.IsZero())
	}
}

func TestFireKey_Deterministic(t *testing.T) {
	fire := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, FireKey("cfg-1", fire), FireKey("cfg-1", fire))
	assert.NotEqual(t, FireKey("cfg-1", fire), FireKey("cfg-2", fire))
	assert.NotEqual(t, FireKey("cfg-1", fire), FireKey("cfg-1", fire.Add(time.Minute)))

	// Keys normalize to UTC so the same instant in another zone maps to
	// the same key.
	auckland, _ := time.LoadLocation("Pacific/Auckland")
	assert.Equal(t, FireKey("cfg-1", fire), FireKey("cfg-1", fire.In(auckland)))
}
