package gateway

import (
	"context"
	"sync"

	"filesentry/internal/models"
)

// MemoryGateway records published events in memory. Tests assert on it; it
// can also back an in-process consumer during local development.
type MemoryGateway struct {
	mu             sync.Mutex
	FileDiscovered []models.FileDiscoveredEvent
	FileProcessed  []models.FileProcessedEvent
	CheckCompleted []models.CheckCompletedEvent
	CheckFailed    []models.CheckFailedEvent
}

// NewMemoryGateway creates an empty in-memory publisher.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

func (g *MemoryGateway) PublishFileDiscovered(_ context.Context, event models.FileDiscoveredEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FileDiscovered = append(g.FileDiscovered, event)
	return nil
}

func (g *MemoryGateway) PublishFileProcessed(_ context.Context, event models.FileProcessedEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FileProcessed = append(g.FileProcessed, event)
	return nil
}

func (g *MemoryGateway) PublishCheckCompleted(_ context.Context, event models.CheckCompletedEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CheckCompleted = append(g.CheckCompleted, event)
	return nil
}

func (g *MemoryGateway) PublishCheckFailed(_ context.Context, event models.CheckFailedEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CheckFailed = append(g.CheckFailed, event)
	return nil
}

// Snapshot returns copies of the recorded event slices, safe to inspect
// while publishing continues.
func (g *MemoryGateway) Snapshot() (discovered []models.FileDiscoveredEvent, processed []models.FileProcessedEvent, completed []models.CheckCompletedEvent, failed []models.CheckFailedEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	discovered = append(discovered, g.FileDiscovered...)
	processed = append(processed, g.FileProcessed...)
	completed = append(completed, g.CheckCompleted...)
	failed = append(failed, g.CheckFailed...)
	return discovered, processed, completed, failed
}
