package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// InitialDelay is the first backoff delay (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay (default: 30 seconds)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0)
	Multiplier float64

	// RespectRetryAfter uses the Retry-After header when present
	RespectRetryAfter bool
}

// DefaultRetryConfig waits 1s, 2s and 4s between attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// RetryWithBackoff calls fn until it succeeds, fails with an error that is
// not a quota error, or the retries run out. Only quota errors are retried.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		result = res
		lastErr = err

		if !IsQuotaError(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		// Next delay: honour Retry-After, otherwise grow geometrically
		next := time.Duration(float64(delay) * cfg.Multiplier)
		if attempt == 0 {
			next = cfg.InitialDelay
		}
		var apiErr *APIError
		if cfg.RespectRetryAfter && errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			next = apiErr.RetryAfter
		}
		if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
			next = cfg.MaxDelay
		}
		delay = next

		logger.Warn().
			Int("retries_left", cfg.MaxRetries-attempt).
			Dur("delay", delay).
			Msg("quota exceeded, retrying")
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
