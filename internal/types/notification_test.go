package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotification(t *testing.T) {
	raw := `{
		"signal": "unit_complete",
		"job_id": "5001",
		"data": {"image_id": "r1"},
		"results": {"judgments": [
			{"tainted": false, "data": {"border": "no"}},
			{"tainted": true,  "data": {"border": "yes"}}
		]}
	}`

	n, err := ParseNotification([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, SignalBatchComplete, n.Signal)
	assert.Equal(t, "5001", n.JobID)
	assert.Equal(t, "r1", n.Data.RecordID)
	require.Len(t, n.Results.Judgments, 2)
	assert.Equal(t, AnswerNo, n.Results.Judgments[0].Answers[CategoryBorder])
	assert.True(t, n.Results.Judgments[1].Tainted)
}

// The provider is inconsistent about job_id: sometimes a number, sometimes a
// string. Both must resolve to the same value.
func TestParseNotificationNumericJobID(t *testing.T) {
	n, err := ParseNotification([]byte(`{"signal": "unit_complete", "job_id": 5001, "data": {"image_id": "r1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "5001", n.JobID)
}

func TestParseNotificationMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `signal=unit_complete`},
		{name: "truncated", raw: `{"signal": "unit_comp`},
		{name: "job_id is object", raw: `{"job_id": {"nested": true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNotification([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseNotificationMissingFields(t *testing.T) {
	// Missing ids parse fine; the ingestion handler is what decides to drop.
	n, err := ParseNotification([]byte(`{"signal": "unit_complete"}`))
	require.NoError(t, err)
	assert.Empty(t, n.JobID)
	assert.Empty(t, n.Data.RecordID)
}
