package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stablevault/internal/domain"
	"stablevault/internal/observability"
	"stablevault/internal/storage"
)

const defaultStaleAfter = 5 * time.Minute

// Reconciler sweeps movements that stayed PENDING past the poller's soft
// timeout and hands them back to the poller. This covers poll-budget
// exhaustion and process restarts that dropped in-flight watches.
type Reconciler struct {
	movements  storage.MovementStore
	poller     *ConfirmationPoller
	staleAfter time.Duration
	logger     zerolog.Logger
}

// NewReconciler creates a new Reconciler. staleAfter bounds how old a
// pending movement must be before a sweep picks it up; zero means the
// default of 5 minutes.
func NewReconciler(movements storage.MovementStore, poller *ConfirmationPoller, staleAfter time.Duration, logger zerolog.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Reconciler{
		movements:  movements,
		poller:     poller,
		staleAfter: staleAfter,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// Sweep re-watches every stale pending movement and returns how many were
// handed to the poller. Movements the poller is already watching are skipped
// by Watch itself.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := nowMillis() - r.staleAfter.Milliseconds()
	stale, err := r.movements.GetPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale pending movements: %w", err)
	}

	requeued := 0
	for _, m := range stale {
		sub := submissionFromMovement(m)
		if r.poller.Watch(sub, m.ID) {
			requeued++
			r.logger.Info().
				Str("movement_id", m.ID).
				Str("path", string(sub.Path)).
				Str("tx_ref", m.TxHash).
				Msg("requeued stale pending movement")
		}
	}
	observability.RecordReconcilerSweep(requeued)
	if len(stale) > 0 {
		r.logger.Info().
			Int("stale", len(stale)).
			Int("requeued", requeued).
			Msg("reconciler sweep complete")
	}
	return requeued, nil
}

// submissionFromMovement rebuilds the submission result a movement was
// created with, from the provisional tx_hash and the recorded path.
// Movements written before the path was recorded default to sequential, for
// which the stored reference is already a real transaction hash.
func submissionFromMovement(m *domain.Movement) domain.SubmissionResult {
	if m.Metadata.SubmissionPath == domain.SubmissionPathBatch {
		return domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: m.TxHash}
	}
	return domain.SubmissionResult{Path: domain.SubmissionPathSequential, TxHash: m.TxHash}
}
