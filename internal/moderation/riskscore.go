package moderation

import (
	"math"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// Risk score weighting. The exact numbers are policy; the contract that must
// hold is monotonicity in severity, confidence, and repeat offenses, and a
// [0,100] clamp.
const (
	repeatBonusPerOffense = 4.0
	repeatBonusCap        = 20.0
	velocityBonusCap      = 10.0
	agePenaltyCap         = 10.0
	agePenaltyPerYear     = 5.0
)

// ScoreRisk combines classification severity/confidence with the commenter's
// history into a 0-100 risk score. Pure, no I/O.
//
// repeatOffenses is the commenter's prior flagged+deleted count on this
// account, velocity their comments/day since first seen, accountAgeDays how
// long the commenter account has existed (0 when unknown).
func ScoreRisk(severity int, confidence float64, repeatOffenses int, velocity float64, accountAgeDays int) models.RiskScoreResult {
	if severity < 0 {
		severity = 0
	}
	if severity > 100 {
		severity = 100
	}
	confidence = math.Max(0, math.Min(1, confidence))

	// Severity scaled by confidence: a 0-confidence verdict still carries
	// half its severity so low-confidence signal is dampened, not erased.
	base := float64(severity) * (0.5 + 0.5*confidence)

	repeatBonus := math.Min(repeatBonusCap, float64(repeatOffenses)*repeatBonusPerOffense)

	velocityBonus := 0.0
	if velocity > 0 {
		velocityBonus = math.Min(velocityBonusCap, velocity)
	}

	agePenalty := 0.0
	if accountAgeDays > 0 {
		agePenalty = math.Min(agePenaltyCap, float64(accountAgeDays)/365.0*agePenaltyPerYear)
	}

	score := base + repeatBonus + velocityBonus - agePenalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return models.RiskScoreResult{
		Score:         int(math.Round(score)),
		Base:          base,
		RepeatBonus:   repeatBonus,
		VelocityBonus: velocityBonus,
		AgePenalty:    agePenalty,
	}
}
