// Package record is the typed layer over the string-typed record store: it
// translates between the Record entity and flat hash fields, and owns
// completion detection.
package record

import (
	"context"
	"fmt"
	"strconv"

	"melaknowma/internal/store"
	"melaknowma/internal/types"
)

// Reserved hash fields alongside the per-category score fields.
const (
	fieldDiagnosis   = "diagnosis"
	fieldDataRef     = "data_ref"
	fieldGroundTruth = "ground_truth"
)

// Repository provides typed access to records. All numeric serialization to
// the store's string representation happens here and nowhere else.
type Repository struct {
	store store.Store
}

// New creates a repository over the given store.
func New(s store.Store) *Repository {
	return &Repository{store: s}
}

// Create registers the record in the id set and writes its initial fields.
// Diagnosis starts pending. Creating the same record twice converges on the
// same state because every write is a full overwrite.
func (r *Repository) Create(ctx context.Context, rec *types.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if err := r.store.AddID(ctx, rec.ID); err != nil {
		return fmt.Errorf("registering record %s: %w", rec.ID, err)
	}
	if rec.Diagnosis == types.DiagnosisNone {
		rec.Diagnosis = types.DiagnosisPending
	}
	if err := r.store.WriteField(ctx, rec.ID, fieldDiagnosis, string(rec.Diagnosis)); err != nil {
		return fmt.Errorf("writing diagnosis for %s: %w", rec.ID, err)
	}
	if rec.DataRef != "" {
		if err := r.store.WriteField(ctx, rec.ID, fieldDataRef, rec.DataRef); err != nil {
			return fmt.Errorf("writing data ref for %s: %w", rec.ID, err)
		}
	}
	if rec.GroundTruth != "" {
		if err := r.store.WriteField(ctx, rec.ID, fieldGroundTruth, rec.GroundTruth); err != nil {
			return fmt.Errorf("writing ground truth for %s: %w", rec.ID, err)
		}
	}
	for category, score := range rec.Scores {
		if err := r.SetScore(ctx, rec.ID, category, score); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a record, or returns nil if the id is unknown. Membership is
// checked against the id set first so unknown ids never materialize a hash
// read.
func (r *Repository) Get(ctx context.Context, id string) (*types.Record, error) {
	known, err := r.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking record %s: %w", id, err)
	}
	if !known {
		return nil, nil
	}
	fields, err := r.store.ReadAll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return fromFields(id, fields)
}

// SetScore overwrites one category's score. Never an increment: redelivering
// the same batch recomputes and rewrites the same value.
func (r *Repository) SetScore(ctx context.Context, id string, category types.Category, score float64) error {
	if !category.IsValid() {
		return fmt.Errorf("unknown category %q", category)
	}
	value := strconv.FormatFloat(score, 'f', -1, 64)
	if err := r.store.WriteField(ctx, id, string(category), value); err != nil {
		return fmt.Errorf("writing %s score for %s: %w", category, id, err)
	}
	return nil
}

// SetDiagnosis overwrites the diagnosis field.
func (r *Repository) SetDiagnosis(ctx context.Context, id string, d types.Diagnosis) error {
	if err := r.store.WriteField(ctx, id, fieldDiagnosis, string(d)); err != nil {
		return fmt.Errorf("writing diagnosis for %s: %w", id, err)
	}
	return nil
}

// SetDataRef attaches the stored-object reference to the record.
func (r *Repository) SetDataRef(ctx context.Context, id, ref string) error {
	if err := r.store.WriteField(ctx, id, fieldDataRef, ref); err != nil {
		return fmt.Errorf("writing data ref for %s: %w", id, err)
	}
	return nil
}

// IsComplete reports whether every required category has a stored score.
// Callers must invoke this inside store.WithLock(id, ...): the read-check
// sequence is the one place where observing a half-written record would
// change a decision. The test is set intersection, not a counter, so
// duplicate or out-of-order score writes cannot double-count.
func (r *Repository) IsComplete(ctx context.Context, id string) (bool, error) {
	fields, err := r.store.ReadAll(ctx, id)
	if err != nil {
		return false, fmt.Errorf("reading record %s: %w", id, err)
	}
	for _, category := range types.Categories {
		if _, ok := fields[string(category)]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Scores reads just the per-category scores for a record.
func (r *Repository) Scores(ctx context.Context, id string) (map[types.Category]float64, error) {
	fields, err := r.store.ReadAll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return scoresFromFields(id, fields)
}

// Lock runs fn holding the record's mutual-exclusion lock.
func (r *Repository) Lock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return r.store.WithLock(ctx, id, fn)
}

func fromFields(id string, fields map[string]string) (*types.Record, error) {
	scores, err := scoresFromFields(id, fields)
	if err != nil {
		return nil, err
	}
	return &types.Record{
		ID:          id,
		DataRef:     fields[fieldDataRef],
		Scores:      scores,
		Diagnosis:   types.Diagnosis(fields[fieldDiagnosis]),
		GroundTruth: fields[fieldGroundTruth],
	}, nil
}

func scoresFromFields(id string, fields map[string]string) (map[types.Category]float64, error) {
	scores := make(map[types.Category]float64)
	for _, category := range types.Categories {
		raw, ok := fields[string(category)]
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s score %q for %s: %w", category, raw, id, err)
		}
		scores[category] = score
	}
	return scores, nil
}
