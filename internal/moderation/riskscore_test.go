package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreRiskBase(t *testing.T) {
	// Full confidence carries full severity.
	r := ScoreRisk(80, 1.0, 0, 0, 0)
	assert.Equal(t, 80, r.Score)
	assert.InDelta(t, 80.0, r.Base, 1e-9)

	// Zero confidence halves it.
	r = ScoreRisk(80, 0.0, 0, 0, 0)
	assert.Equal(t, 40, r.Score)

	r = ScoreRisk(0, 1.0, 0, 0, 0)
	assert.Equal(t, 0, r.Score)
}

func TestScoreRiskRepeatBonus(t *testing.T) {
	r := ScoreRisk(50, 1.0, 3, 0, 0)
	assert.InDelta(t, 12.0, r.RepeatBonus, 1e-9)
	assert.Equal(t, 62, r.Score)

	// Capped at 20 regardless of history length.
	r = ScoreRisk(50, 1.0, 100, 0, 0)
	assert.InDelta(t, 20.0, r.RepeatBonus, 1e-9)
	assert.Equal(t, 70, r.Score)
}

func TestScoreRiskVelocityBonus(t *testing.T) {
	r := ScoreRisk(50, 1.0, 0, 4.0, 0)
	assert.InDelta(t, 4.0, r.VelocityBonus, 1e-9)

	r = ScoreRisk(50, 1.0, 0, 50.0, 0)
	assert.InDelta(t, 10.0, r.VelocityBonus, 1e-9)

	r = ScoreRisk(50, 1.0, 0, -5.0, 0)
	assert.InDelta(t, 0.0, r.VelocityBonus, 1e-9)
}

func TestScoreRiskAgePenalty(t *testing.T) {
	// One-year-old account earns the per-year penalty.
	r := ScoreRisk(50, 1.0, 0, 0, 365)
	assert.InDelta(t, 5.0, r.AgePenalty, 1e-9)
	assert.Equal(t, 45, r.Score)

	// Capped at 10.
	r = ScoreRisk(50, 1.0, 0, 0, 365*10)
	assert.InDelta(t, 10.0, r.AgePenalty, 1e-9)

	r = ScoreRisk(50, 1.0, 0, 0, 0)
	assert.InDelta(t, 0.0, r.AgePenalty, 1e-9)
}

func TestScoreRiskClamping(t *testing.T) {
	// Bonuses cannot push past 100.
	r := ScoreRisk(100, 1.0, 10, 20, 0)
	assert.Equal(t, 100, r.Score)

	// Penalty cannot push below 0.
	r = ScoreRisk(0, 0.0, 0, 0, 365*10)
	assert.Equal(t, 0, r.Score)

	// Out-of-range inputs are clamped before scoring.
	r = ScoreRisk(500, 3.0, 0, 0, 0)
	assert.Equal(t, 100, r.Score)
	r = ScoreRisk(-10, -1.0, 0, 0, 0)
	assert.Equal(t, 0, r.Score)
}

func TestScoreRiskMonotonic(t *testing.T) {
	low := ScoreRisk(40, 0.5, 0, 0, 0)
	higherSeverity := ScoreRisk(60, 0.5, 0, 0, 0)
	higherConfidence := ScoreRisk(40, 0.9, 0, 0, 0)
	moreRepeats := ScoreRisk(40, 0.5, 2, 0, 0)

	assert.Greater(t, higherSeverity.Score, low.Score)
	assert.Greater(t, higherConfidence.Score, low.Score)
	assert.Greater(t, moreRepeats.Score, low.Score)
}
