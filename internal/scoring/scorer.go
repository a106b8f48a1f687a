// Package scoring turns engagement metrics into a lead score and tier.
package scoring

import (
	"math"

	"github.com/webinarwins/backend/internal/models"
)

// Weights are expressed per hundredth of a point so that the weighted sum is
// exact for integer inputs (95% attendance * 0.30 = 28.5, not 28.499...).
const (
	focusWeight      = 35  // 0.35 per focus percent
	attendanceWeight = 30  // 0.30 per attendance percent
	perMessage       = 500 // 5 points per message
	messageCap       = 2500
	perQuestion      = 250 // 2.5 points per question
	questionCap      = 1000
	maxRaw           = 10000
)

// Tier thresholds, closed on the lower end.
const (
	HotThreshold  = 80
	WarmThreshold = 60
	CoolThreshold = 40
)

// Input is everything the scorer looks at.
type Input struct {
	FocusPercent      float64
	AttendancePercent float64
	MessageCount      int
	QuestionCount     int
	Attended          bool
}

// Result is a score in [0,100] with its tier.
type Result struct {
	Score int
	Tier  models.Tier
}

// Score computes the engagement score and tier. It is pure and deterministic.
func Score(in Input) Result {
	raw := clampPercent(in.FocusPercent)*focusWeight +
		clampPercent(in.AttendancePercent)*attendanceWeight +
		capped(in.MessageCount, perMessage, messageCap) +
		capped(in.QuestionCount, perQuestion, questionCap)
	raw = math.Min(raw, maxRaw)

	score := int(math.Round(raw / 100))
	return Result{Score: score, Tier: Classify(score, in.Attended)}
}

// Classify maps a score to a tier. Non-attendance always wins.
func Classify(score int, attended bool) models.Tier {
	switch {
	case !attended:
		return models.TierNoShow
	case score >= HotThreshold:
		return models.TierHot
	case score >= WarmThreshold:
		return models.TierWarm
	case score >= CoolThreshold:
		return models.TierCool
	default:
		return models.TierCold
	}
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func capped(n, per, limit int) float64 {
	if n <= 0 {
		return 0
	}
	if n > limit/per {
		return float64(limit)
	}
	return float64(n * per)
}
