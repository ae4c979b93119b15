// Package ingest orchestrates one inbound judgment notification end to end:
// filter the signal, resolve the category, aggregate the batch, persist the
// score, detect completion under the record's lock, and classify once
// complete.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"melaknowma/internal/classify"
	"melaknowma/internal/jobs"
	"melaknowma/internal/record"
	"melaknowma/internal/scoring"
	"melaknowma/internal/types"
)

// Disposition says what processing did with a notification. Structurally
// unprocessable payloads are dispositions, not errors: retrying them cannot
// succeed, so the provider must see success and stop redelivering.
type Disposition string

const (
	// DispositionIgnored: the signal was not a batch-complete signal.
	DispositionIgnored Disposition = "ignored"
	// DispositionDropped: missing record id or unresolvable job id. Logged,
	// no state created.
	DispositionDropped Disposition = "dropped"
	// DispositionScored: the category's score was stored; the record is not
	// yet complete.
	DispositionScored Disposition = "scored"
	// DispositionClassified: the score completed the record and a diagnosis
	// was stored.
	DispositionClassified Disposition = "classified"
)

// Handler processes inbound notifications. It is invoked concurrently, once
// per delivery, with no ordering guarantee; every step is idempotent so
// duplicate deliveries converge on the same stored state.
type Handler struct {
	repo    *record.Repository
	jobs    *jobs.Config
	weights scoring.Weights
	policy  classify.Policy
	logger  *zap.Logger
}

// NewHandler wires the handler. All collaborators are injected so tests can
// swap the store backend and the classification policy.
func NewHandler(repo *record.Repository, cfg *jobs.Config, weights scoring.Weights, policy classify.Policy, logger *zap.Logger) *Handler {
	return &Handler{
		repo:    repo,
		jobs:    cfg,
		weights: weights,
		policy:  policy,
		logger:  logger,
	}
}

// Process runs the notification through the ingestion state machine.
//
// A non-nil error is always transient (store unreachable, lock wait
// exhausted) and safe for the upstream delivery system to retry: the score
// write is a full overwrite and the classifier is pure, so redelivery
// converges. Everything structurally wrong with the payload is absorbed as a
// Dropped or Ignored disposition with a nil error.
func (h *Handler) Process(ctx context.Context, n *types.Notification) (Disposition, error) {
	if n.Signal != types.SignalBatchComplete {
		h.logger.Debug("ignoring notification signal", zap.String("signal", n.Signal))
		return DispositionIgnored, nil
	}

	recordID := n.Data.RecordID
	if recordID == "" {
		h.logger.Warn("notification without record id dropped", zap.String("job_id", n.JobID))
		return DispositionDropped, nil
	}

	category, ok, err := h.jobs.ResolveCategory(ctx, n.JobID)
	if err != nil {
		return "", fmt.Errorf("resolving job %s: %w", n.JobID, err)
	}
	if !ok {
		h.logger.Warn("notification for unconfigured job dropped",
			zap.String("job_id", n.JobID),
			zap.String("record_id", recordID))
		return DispositionDropped, nil
	}

	score := h.weights.Score(category, n.Results.Judgments)

	// The score write happens outside the lock. Field writes are independent
	// full overwrites, so a concurrent writer for another category cannot be
	// corrupted, and redelivery rewrites the same value.
	if err := h.repo.SetScore(ctx, recordID, category, score); err != nil {
		return "", err
	}

	h.logger.Info("category scored",
		zap.String("record_id", recordID),
		zap.String("category", string(category)),
		zap.Float64("score", score),
		zap.Int("judgments", len(n.Results.Judgments)))

	// Lock scope is read+decide only. Two notifications may both observe a
	// completed record here and both stage a diagnosis outside the lock;
	// that race is tolerated because the policy is a pure function of the
	// same stored scores, so both writers stage the same label.
	var staged types.Diagnosis
	err = h.repo.Lock(ctx, recordID, func(ctx context.Context) error {
		complete, err := h.repo.IsComplete(ctx, recordID)
		if err != nil {
			return err
		}
		if !complete {
			return nil
		}
		scores, err := h.repo.Scores(ctx, recordID)
		if err != nil {
			return err
		}
		staged = h.policy.Classify(scores)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("completion check for %s: %w", recordID, err)
	}

	if staged == types.DiagnosisNone {
		return DispositionScored, nil
	}

	if err := h.repo.SetDiagnosis(ctx, recordID, staged); err != nil {
		return "", err
	}
	h.logger.Info("record classified",
		zap.String("record_id", recordID),
		zap.String("diagnosis", string(staged)))
	return DispositionClassified, nil
}
