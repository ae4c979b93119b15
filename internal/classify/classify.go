// Package classify computes the one-time diagnosis for a completed record.
package classify

import (
	"melaknowma/internal/types"
)

// Policy decides the diagnosis label from a completed record's per-category
// scores. Implementations must be pure and total: the same scores always
// yield the same label, and no combination of present or absent scores may
// fail. Purity is load-bearing: two concurrent writers that both observe a
// completed record both run the policy and must stage the same label.
type Policy interface {
	Classify(scores map[types.Category]float64) types.Diagnosis
}

// ThresholdPolicy labels a record for review when every required category
// scores strictly above its threshold, and likely benign otherwise. The
// per-category-AND shape is a placeholder medical heuristic, kept table-driven
// so it can be replaced without touching aggregation.
type ThresholdPolicy struct {
	// MinExclusive is the per-category threshold a score must strictly exceed.
	MinExclusive map[types.Category]float64 `yaml:"min_exclusive"`
}

// DefaultPolicy flags a record when all required categories score above zero.
func DefaultPolicy() ThresholdPolicy {
	thresholds := make(map[types.Category]float64, len(types.Categories))
	for _, category := range types.Categories {
		thresholds[category] = 0
	}
	return ThresholdPolicy{MinExclusive: thresholds}
}

// Classify implements Policy. A category with no stored score fails its
// threshold, so an incomplete score map can never flag for review.
func (p ThresholdPolicy) Classify(scores map[types.Category]float64) types.Diagnosis {
	for _, category := range types.Categories {
		score, ok := scores[category]
		if !ok || score <= p.MinExclusive[category] {
			return types.DiagnosisLikelyBenign
		}
	}
	return types.DiagnosisFlagForReview
}
