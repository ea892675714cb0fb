package engine

import (
	"context"
	"fmt"
	"runtime"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	DefaultMaxConcurrentExecutions = 8
	DefaultMemoryUsedPercentLimit  = 90.0
)

// ResourceLimiter is the admission gate in front of Run. It bounds
// concurrent executions with a semaphore and refuses new admissions while
// system memory pressure is above the configured threshold, so a burst of
// simultaneous fire times cannot push the host over.
type ResourceLimiter struct {
	slots           chan struct{}
	memUsedPctLimit float64
	logger          zerolog.Logger
}

// NewResourceLimiter creates a limiter allowing maxConcurrent simultaneous
// executions. memUsedPctLimit is the system memory used-percent above which
// admissions are refused; zero disables the memory check.
func NewResourceLimiter(maxConcurrent int, memUsedPctLimit float64, logger zerolog.Logger) *ResourceLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExecutions
	}
	return &ResourceLimiter{
		slots:           make(chan struct{}, maxConcurrent),
		memUsedPctLimit: memUsedPctLimit,
		logger:          logger.With().Str("component", "ResourceLimiter").Logger(),
	}
}

// Acquire blocks until an execution slot is free, then checks memory
// pressure. A refused admission is an internal error the caller surfaces as
// a failed trigger, not a failed execution.
func (l *ResourceLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return models.NewCancelledError("execution admission", ctx.Err())
	}

	if l.memUsedPctLimit > 0 {
		if vmStat, err := mem.VirtualMemory(); err == nil && vmStat.UsedPercent > l.memUsedPctLimit {
			runtime.GC()
			l.logger.Warn().
				Float64("used_percent", vmStat.UsedPercent).
				Float64("limit_percent", l.memUsedPctLimit).
				Msg("Refusing execution admission under memory pressure")
			<-l.slots
			return models.NewInternalError("execution admission",
				fmt.Errorf("system memory used %.1f%% exceeds limit %.1f%%", vmStat.UsedPercent, l.memUsedPctLimit))
		}
	}
	return nil
}

// Release frees the slot taken by Acquire.
func (l *ResourceLimiter) Release() {
	<-l.slots
}

// InFlight reports how many executions currently hold a slot.
func (l *ResourceLimiter) InFlight() int {
	return len(l.slots)
}
