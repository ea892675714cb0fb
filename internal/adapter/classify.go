package adapter

import (
	"context"
	"errors"
	"net"

	"filesentry/internal/models"
)

// classifyNetworkError tags a transport-level failure with the right error
// category. Timeouts (deadline expiry or net.Error timeouts) are
// distinguished from plain connection failures because both are transient
// but are reported separately on executions and events.
func classifyNetworkError(source string, err error) error {
	if err == nil {
		return nil
	}

	var ce *models.CategorizedError
	if errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError(source, err)
	}
	if errors.Is(err, context.Canceled) {
		return models.NewCancelledError(source, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewTimeoutError(source, err)
	}

	return models.NewConnectionError(source, err)
}
