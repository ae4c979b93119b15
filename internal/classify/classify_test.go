package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"melaknowma/internal/types"
)

func TestClassifyDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name   string
		scores map[types.Category]float64
		want   types.Diagnosis
	}{
		{
			name: "all positive flags for review",
			scores: map[types.Category]float64{
				types.CategorySymmetry: 1,
				types.CategoryBorder:   2,
				types.CategoryColor:    1,
			},
			want: types.DiagnosisFlagForReview,
		},
		{
			name: "one zero score is likely benign",
			scores: map[types.Category]float64{
				types.CategorySymmetry: 1,
				types.CategoryBorder:   0,
				types.CategoryColor:    1,
			},
			want: types.DiagnosisLikelyBenign,
		},
		{
			name:   "empty scores never fail",
			scores: map[types.Category]float64{},
			want:   types.DiagnosisLikelyBenign,
		},
		{
			name:   "nil scores never fail",
			scores: nil,
			want:   types.DiagnosisLikelyBenign,
		},
		{
			name: "missing category is likely benign",
			scores: map[types.Category]float64{
				types.CategorySymmetry: 5,
				types.CategoryColor:    5,
			},
			want: types.DiagnosisLikelyBenign,
		},
		{
			name: "negative score is likely benign",
			scores: map[types.Category]float64{
				types.CategorySymmetry: -1,
				types.CategoryBorder:   1,
				types.CategoryColor:    1,
			},
			want: types.DiagnosisLikelyBenign,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Classify(tt.scores))
		})
	}
}

// TestClassifyDeterministic: purity is what makes the persist-outside-lock
// race safe, so pin it down.
func TestClassifyDeterministic(t *testing.T) {
	policy := DefaultPolicy()
	scores := map[types.Category]float64{
		types.CategorySymmetry: 1,
		types.CategoryBorder:   2,
		types.CategoryColor:    3,
	}
	first := policy.Classify(scores)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, policy.Classify(scores))
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	policy := ThresholdPolicy{MinExclusive: map[types.Category]float64{
		types.CategorySymmetry: 2,
		types.CategoryBorder:   0,
		types.CategoryColor:    0,
	}}

	scores := map[types.Category]float64{
		types.CategorySymmetry: 2, // not strictly above 2
		types.CategoryBorder:   1,
		types.CategoryColor:    1,
	}
	assert.Equal(t, types.DiagnosisLikelyBenign, policy.Classify(scores))

	scores[types.CategorySymmetry] = 2.5
	assert.Equal(t, types.DiagnosisFlagForReview, policy.Classify(scores))
}
