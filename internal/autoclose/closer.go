package autoclose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/ledger"
	"github.com/eddiefleurent/schrute_spreads/internal/storage"
)

// LedgerCloser executes close requests directly against the ledger. Monitor
// intents carry the exit price as a magnitude; the closer re-signs it to the
// position's entry convention (negative for debit positions) before the
// ledger applies the signed P&L formula.
type LedgerCloser struct {
	Ledger *ledger.Ledger
}

var _ Closer = (*LedgerCloser)(nil)

// RequestClose closes the position at the given exit price.
func (c *LedgerCloser) RequestClose(ctx context.Context, positionID string, exitPrice float64, notes string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pos, err := c.Ledger.Position(positionID)
	if err != nil {
		return err
	}
	signed := math.Abs(exitPrice)
	if !pos.IsCredit() {
		signed = -signed
	}
	_, err = c.Ledger.ClosePosition(positionID, signed, notes)
	return err
}

// RetryConfig bounds the retrying closer.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig is the default retry policy for close requests.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// RetryCloser decorates a Closer with bounded exponential backoff. A close
// that exhausts its retries leaves the position open; the monitor retriggers
// it on a later tick.
type RetryCloser struct {
	inner  Closer
	logger *log.Logger
	config RetryConfig
}

var _ Closer = (*RetryCloser)(nil)

// NewRetryCloser wraps a closer with retries.
func NewRetryCloser(inner Closer, logger *log.Logger, config ...RetryConfig) *RetryCloser {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = log.New(os.Stderr, "autoclose: ", log.LstdFlags)
	}
	return &RetryCloser{inner: inner, logger: logger, config: cfg}
}

// RequestClose attempts the close, backing off between failures until the
// context expires or the retry budget runs out.
func (r *RetryCloser) RequestClose(ctx context.Context, positionID string, exitPrice float64, notes string) error {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("close canceled: %w", err)
		}

		lastErr = r.inner.RequestClose(ctx, positionID, exitPrice, notes)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == r.config.MaxRetries {
			break
		}

		r.logger.Printf("Close attempt %d/%d for position %s failed: %v",
			attempt+1, r.config.MaxRetries+1, positionID, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("close canceled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.config.MaxBackoff {
			backoff = r.config.MaxBackoff
		}
	}

	return fmt.Errorf("close failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

// isRetryable filters out close failures that cannot improve with another
// attempt: the position is gone or already terminal.
func isRetryable(err error) bool {
	return !errors.Is(err, storage.ErrPositionNotFound) &&
		!errors.Is(err, ledger.ErrPositionNotOpen)
}
