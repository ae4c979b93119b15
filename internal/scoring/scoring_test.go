package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"melaknowma/internal/types"
)

func judgment(tainted bool, answer types.Answer, category types.Category) types.Judgment {
	return types.Judgment{
		Tainted: tainted,
		Answers: map[types.Category]types.Answer{category: answer},
	}
}

func TestScoreTaintedOnlyBatchIsZero(t *testing.T) {
	weights := DefaultWeights()
	// Crank every weight up to prove taint filtering ignores the tables.
	for _, category := range types.Categories {
		weights.No[category] = 100
		weights.Yes[category] = 100
	}

	batch := []types.Judgment{
		judgment(true, types.AnswerNo, types.CategoryBorder),
		judgment(true, types.AnswerYes, types.CategoryBorder),
		judgment(true, types.AnswerNo, types.CategoryBorder),
	}
	assert.Equal(t, 0.0, weights.Score(types.CategoryBorder, batch))
}

func TestScoreCountsNoAnswersByWeight(t *testing.T) {
	tests := []struct {
		name     string
		noWeight float64
		count    int
	}{
		{name: "unit weight", noWeight: 1, count: 4},
		{name: "heavier weight", noWeight: 2.5, count: 3},
		{name: "single judgment", noWeight: 7, count: 1},
		{name: "empty batch", noWeight: 7, count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := DefaultWeights()
			weights.No[types.CategorySymmetry] = tt.noWeight

			var batch []types.Judgment
			for i := 0; i < tt.count; i++ {
				batch = append(batch, judgment(false, types.AnswerNo, types.CategorySymmetry))
			}
			assert.Equal(t, float64(tt.count)*tt.noWeight, weights.Score(types.CategorySymmetry, batch))
		})
	}
}

func TestScoreIgnoresYesByDefaultPolicy(t *testing.T) {
	weights := DefaultWeights()
	batch := []types.Judgment{
		judgment(false, types.AnswerNo, types.CategoryBorder),
		judgment(false, types.AnswerNo, types.CategoryBorder),
		judgment(false, types.AnswerYes, types.CategoryBorder),
	}
	// Scenario: 3 judges, answers [no, no, yes], noWeight=1, yesWeight=0.
	assert.Equal(t, 2.0, weights.Score(types.CategoryBorder, batch))
}

func TestScoreIsOrderInvariant(t *testing.T) {
	weights := DefaultWeights()
	weights.No[types.CategoryColor] = 3
	weights.Yes[types.CategoryColor] = 1

	batch := []types.Judgment{
		judgment(false, types.AnswerNo, types.CategoryColor),
		judgment(true, types.AnswerNo, types.CategoryColor),
		judgment(false, types.AnswerYes, types.CategoryColor),
		judgment(false, types.AnswerNo, types.CategoryColor),
		judgment(false, types.AnswerYes, types.CategoryColor),
	}
	want := weights.Score(types.CategoryColor, batch)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]types.Judgment, len(batch))
		copy(shuffled, batch)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, weights.Score(types.CategoryColor, shuffled))
	}
}

// TestScoreZeroAmbiguity documents the inherited limitation: an all-tainted
// batch and a unanimous-yes batch both score 0 under the default policy and
// cannot be told apart from the stored value alone.
func TestScoreZeroAmbiguity(t *testing.T) {
	weights := DefaultWeights()

	allTainted := []types.Judgment{
		judgment(true, types.AnswerNo, types.CategoryBorder),
		judgment(true, types.AnswerNo, types.CategoryBorder),
	}
	unanimousYes := []types.Judgment{
		judgment(false, types.AnswerYes, types.CategoryBorder),
		judgment(false, types.AnswerYes, types.CategoryBorder),
	}
	assert.Equal(t, weights.Score(types.CategoryBorder, allTainted),
		weights.Score(types.CategoryBorder, unanimousYes))
}

func TestScoreSkipsJudgmentsWithoutAnswerForCategory(t *testing.T) {
	weights := DefaultWeights()
	batch := []types.Judgment{
		{Tainted: false, Answers: map[types.Category]types.Answer{}},
		judgment(false, types.AnswerNo, types.CategoryBorder),
	}
	assert.Equal(t, 1.0, weights.Score(types.CategoryBorder, batch))
}
