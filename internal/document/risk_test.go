package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		severity, likelihood int
		score                int
		level                RiskLevel
	}{
		{3, 4, 12, RiskMedium},
		{5, 5, 25, RiskHigh},
		{1, 1, 1, RiskLow},
		{3, 5, 15, RiskHigh},
		{3, 3, 9, RiskMedium},
		{2, 4, 8, RiskLow},
	}
	for _, tc := range tests {
		score := Score(tc.severity, tc.likelihood)
		assert.Equal(t, tc.score, score)
		assert.Equal(t, tc.level, LevelForScore(score))
	}
}

func TestRecalculate(t *testing.T) {
	i := &Inspection{Severity: 4, Likelihood: 4}
	i.Recalculate()
	assert.Equal(t, 16, i.RiskScore)
	assert.Equal(t, RiskHigh, i.RiskLevel)
}
