package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"house-ai/internal/classify"
)

func TestSelect(t *testing.T) {
	r := New(0.65)
	cases := []struct {
		intent     classify.Intent
		confidence float64
		complexity Complexity
		want       Tier
	}{
		{classify.IntentComparison, 0.5, ComplexityNone, TierAdvanced},
		{classify.IntentProductDetail, 0.64, ComplexityLow, TierAdvanced},
		{classify.IntentComparison, 0.65, ComplexityNone, TierDefault},
		{classify.IntentRecommendation, 0.1, ComplexityNone, TierDefault},
		{classify.IntentGeneralChat, 0.9, ComplexityHigh, TierAdvanced},
		{classify.IntentGeneralChat, 0.9, ComplexityLow, TierDefault},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Select(tc.intent, tc.confidence, tc.complexity), "%+v", tc)
	}
}

func TestSelectIsPure(t *testing.T) {
	r := New(0)
	for _, in := range classify.Intents {
		for _, c := range []float64{0, 0.3, 0.65, 0.95} {
			first := r.Select(in, c, ComplexityNone)
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, r.Select(in, c, ComplexityNone))
			}
		}
	}
	var zero Router
	assert.Equal(t, TierAdvanced, zero.Select(classify.IntentComparison, 0.5, ComplexityNone))
}

func TestEstimateComplexity(t *testing.T) {
	assert.Equal(t, ComplexityLow, EstimateComplexity("best camera phone?"))
	assert.Equal(t, ComplexityHigh, EstimateComplexity("iPhone 15 vs Galaxy S24 vs Pixel 8"))
	assert.Equal(t, ComplexityHigh, EstimateComplexity(strings.Repeat("a", 700)))
}
