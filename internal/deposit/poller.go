package deposit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stablevault/internal/chain"
	"stablevault/internal/domain"
	"stablevault/internal/observability"
	"stablevault/internal/storage"
)

const (
	defaultPollAttempts = 30
	defaultPollInterval = 2 * time.Second
)

// ConfirmationPoller watches submitted deposits until they reach a terminal
// on-chain state and writes that state back to the movements ledger. Each
// watched movement gets its own goroutine, bounded to a fixed number of poll
// attempts; a movement whose budget runs out stays PENDING for the reconciler
// to pick up later.
type ConfirmationPoller struct {
	gateway   chain.Gateway
	movements storage.MovementStore
	logger    zerolog.Logger

	attempts int
	interval time.Duration

	mu     sync.Mutex
	active map[string]struct{} // movement IDs currently being watched
	wg     sync.WaitGroup
}

// PollerOptions configures a ConfirmationPoller.
type PollerOptions struct {
	Gateway   chain.Gateway
	Movements storage.MovementStore
	Logger    zerolog.Logger

	// Attempts bounds how many times one movement is polled. Zero means the
	// default of 30.
	Attempts int

	// Interval is the pause between polls. Zero means the default of 2s.
	Interval time.Duration
}

// NewConfirmationPoller creates a new ConfirmationPoller.
func NewConfirmationPoller(opts PollerOptions) *ConfirmationPoller {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ConfirmationPoller{
		gateway:   opts.Gateway,
		movements: opts.Movements,
		logger:    opts.Logger.With().Str("component", "poller").Logger(),
		attempts:  attempts,
		interval:  interval,
		active:    make(map[string]struct{}),
	}
}

// Watch starts polling for the terminal state of the movement created for
// sub. Returns false without starting anything if the movement is already
// being watched, so the reconciler cannot double-poll an in-flight movement.
//
// Polling deliberately detaches from the caller's context: confirmation must
// outlive the request that triggered the deposit.
func (p *ConfirmationPoller) Watch(sub domain.SubmissionResult, movementID string) bool {
	p.mu.Lock()
	if _, watching := p.active[movementID]; watching {
		p.mu.Unlock()
		return false
	}
	p.active[movementID] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.active, movementID)
			p.mu.Unlock()
		}()
		p.poll(context.Background(), sub, movementID)
	}()
	return true
}

// Wait blocks until every active watch goroutine has finished.
func (p *ConfirmationPoller) Wait() {
	p.wg.Wait()
}

func (p *ConfirmationPoller) poll(ctx context.Context, sub domain.SubmissionResult, movementID string) {
	logger := p.logger.With().
		Str("movement_id", movementID).
		Str("path", string(sub.Path)).
		Str("tx_ref", sub.TxRef()).
		Logger()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		receipt, err := p.queryReceipt(ctx, sub)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("confirmation query failed")
		} else if receipt != nil {
			p.complete(ctx, movementID, receipt, logger, attempt)
			return
		}
		if attempt < p.attempts {
			time.Sleep(p.interval)
		}
	}

	logger.Warn().
		Int("attempts", p.attempts).
		Msg("poll budget exhausted, movement left pending")
	observability.RecordPollerOutcome("exhausted", p.attempts)
}

// queryReceipt asks the chain for a terminal receipt. Returns (nil, nil)
// while the submission is still pending.
func (p *ConfirmationPoller) queryReceipt(ctx context.Context, sub domain.SubmissionResult) (*chain.Receipt, error) {
	if sub.Path == domain.SubmissionPathBatch {
		status, err := p.gateway.CallsStatus(ctx, sub.BatchID)
		if err != nil {
			return nil, err
		}
		if !status.Terminal() {
			return nil, nil
		}
		// The deposit flow submits one atomic batch, so the batch-level
		// outcome is the outcome of its single receipt.
		return &status.Receipts[0], nil
	}
	return p.gateway.TransactionReceipt(ctx, sub.TxHash)
}

// complete writes the terminal outcome to the movement. On the batch path
// this is also the moment the provisional batch identifier is replaced by the
// receipt's real transaction hash.
func (p *ConfirmationPoller) complete(ctx context.Context, movementID string, receipt *chain.Receipt, logger zerolog.Logger, attempt int) {
	status := domain.MovementStatusConfirmed
	outcome := "confirmed"
	if !receipt.Success {
		status = domain.MovementStatusFailed
		outcome = "failed"
	}

	err := p.movements.CompleteTerminal(ctx, movementID, receipt.TransactionHash, status, nowMillis())
	switch {
	case errors.Is(err, storage.ErrTerminalStatus):
		// Someone else (typically a reconciler sweep racing this watch)
		// already finalized it. The first write wins.
		logger.Debug().Msg("movement already terminal")
	case err != nil:
		logger.Error().Err(err).Msg("failed to write terminal movement status")
		observability.RecordLedgerWriteError("movement")
		return
	default:
		logger.Info().
			Str("tx_hash", receipt.TransactionHash).
			Str("status", string(status)).
			Int("attempts", attempt).
			Msg("movement finalized")
	}
	observability.RecordPollerOutcome(outcome, attempt)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
