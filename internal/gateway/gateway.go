// Package gateway is the only component that talks to the outside messaging
// system. Internal outcomes are translated into outbound events here, and
// inbound trigger commands are translated into internal dispatch calls.
// The transport itself stays behind the Publisher interface so the engine
// and scheduler never depend on a broker client.
package gateway

import (
	"context"

	"filesentry/internal/models"
)

// Publisher emits the engine's outbound events. Implementations must be
// safe for concurrent use: executions for different configurations publish
// in parallel.
type Publisher interface {
	PublishFileDiscovered(ctx context.Context, event models.FileDiscoveredEvent) error
	PublishFileProcessed(ctx context.Context, event models.FileProcessedEvent) error
	PublishCheckCompleted(ctx context.Context, event models.CheckCompletedEvent) error
	PublishCheckFailed(ctx context.Context, event models.CheckFailedEvent) error
}

// TriggerDispatcher accepts an inbound execution-trigger command. The
// scheduler implements this; the gateway routes external commands to it.
type TriggerDispatcher interface {
	Dispatch(ctx context.Context, command models.TriggerExecutionCommand) error
}

// CommandReceiver hands inbound commands from the external transport to the
// dispatcher. It exists so transport bindings stay out of the scheduler.
type CommandReceiver struct {
	dispatcher TriggerDispatcher
}

// NewCommandReceiver wires a receiver to its dispatcher.
func NewCommandReceiver(dispatcher TriggerDispatcher) *CommandReceiver {
	return &CommandReceiver{dispatcher: dispatcher}
}

// Receive validates and forwards one inbound trigger command.
func (r *CommandReceiver) Receive(ctx context.Context, command models.TriggerExecutionCommand) error {
	if command.ConfigurationID == "" {
		return models.NewValidationError("configuration_id", "trigger command missing configuration id")
	}
	if command.Source == "" {
		command.Source = models.TriggerSourceManual
	}
	return r.dispatcher.Dispatch(ctx, command)
}
