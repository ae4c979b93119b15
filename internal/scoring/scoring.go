// Package scoring reduces a raw judgment batch for one category to a single
// weighted score.
package scoring

import (
	"melaknowma/internal/types"
)

// Weights holds the two per-category weight tables, one applied per "no"
// answer and one per "yes" answer. The asymmetry in the default policy (count
// "no" responses, ignore "yes") is deliberate: a "no" is a worker flagging the
// dimension as abnormal. The tables stay configurable rather than hard-coded
// 50/50 because the policy is expected to change independent of the
// aggregation mechanics.
type Weights struct {
	No  map[types.Category]float64 `yaml:"no"`
	Yes map[types.Category]float64 `yaml:"yes"`
}

// DefaultWeights counts each non-tainted "no" as 1 and each "yes" as 0, for
// every required category.
func DefaultWeights() Weights {
	w := Weights{
		No:  make(map[types.Category]float64, len(types.Categories)),
		Yes: make(map[types.Category]float64, len(types.Categories)),
	}
	for _, category := range types.Categories {
		w.No[category] = 1
		w.Yes[category] = 0
	}
	return w
}

// Score reduces the batch to the category's weighted score: tainted judgments
// contribute zero, every other judgment adds its answer's configured weight.
// The result is a plain accumulator; judgment count is not normalized in.
// The reduction is commutative, so delivery order within a batch is
// irrelevant.
//
// Known limitation, inherited from the upstream design: a batch whose
// judgments are all tainted scores 0, indistinguishable from a batch where
// every judge gave the zero-weighted answer.
func (w Weights) Score(category types.Category, judgments []types.Judgment) float64 {
	var score float64
	for _, j := range judgments {
		if j.Tainted {
			continue
		}
		switch j.Answers[category] {
		case types.AnswerNo:
			score += w.No[category]
		case types.AnswerYes:
			score += w.Yes[category]
		}
	}
	return score
}
