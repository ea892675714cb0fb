package gateway

import (
	"context"
	"testing"
	"time"

	"filesentry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	commands []models.TriggerExecutionCommand
}

func (d *recordingDispatcher) Dispatch(_ context.Context, command models.TriggerExecutionCommand) error {
	d.commands = append(d.commands, command)
	return nil
}

func TestCommandReceiver_ForwardsValidCommand(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	receiver := NewCommandReceiver(dispatcher)

	command := models.TriggerExecutionCommand{
		IdempotencyKey:   "key-1",
		ConfigurationID:  "cfg-1",
		ClientID:         "client-a",
		ReferenceInstant: time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC),
		Source:           models.TriggerSourceScheduled,
	}
	require.NoError(t, receiver.Receive(context.Background(), command))
	require.Len(t, dispatcher.commands, 1)
	assert.Equal(t, command, dispatcher.commands[0])
}

func TestCommandReceiver_DefaultsSourceToManual(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	receiver := NewCommandReceiver(dispatcher)

	err := receiver.Receive(context.Background(), models.TriggerExecutionCommand{ConfigurationID: "cfg-1"})
	require.NoError(t, err)
	require.Len(t, dispatcher.commands, 1)
	assert.Equal(t, models.TriggerSourceManual, dispatcher.commands[0].Source)
}

func TestCommandReceiver_RejectsMissingConfigurationID(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	receiver := NewCommandReceiver(dispatcher)

	err := receiver.Receive(context.Background(), models.TriggerExecutionCommand{})
	require.Error(t, err)
	assert.Equal(t, models.CategoryValidation, models.CategoryOf(err))
	assert.Empty(t, dispatcher.commands)
}

func TestMemoryGateway_RecordsEnvelopes(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	event := models.FileDiscoveredEvent{
		EventEnvelope:   models.NewEventEnvelope("exec-1", "exec-1:discovered:file-1"),
		ConfigurationID: "cfg-1",
		Filename:        "report.csv",
	}
	require.NoError(t, g.PublishFileDiscovered(ctx, event))
	require.NoError(t, g.PublishCheckCompleted(ctx, models.CheckCompletedEvent{
		EventEnvelope: models.NewEventEnvelope("exec-1", "exec-1:completed"),
		ExecutionID:   "exec-1",
	}))

	discovered, _, completed, failed := g.Snapshot()
	require.Len(t, discovered, 1)
	require.Len(t, completed, 1)
	assert.Empty(t, failed)

	// Every envelope carries a unique message id, the execution id as
	// correlation id, and an occurred-at instant.
	assert.NotEmpty(t, discovered[0].MessageID)
	assert.NotEqual(t, discovered[0].MessageID, completed[0].MessageID)
	assert.Equal(t, "exec-1", discovered[0].CorrelationID)
	assert.Equal(t, "exec-1:discovered:file-1", discovered[0].IdempotencyKey)
	assert.False(t, discovered[0].OccurredAt.IsZero())
}
