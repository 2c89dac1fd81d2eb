package score

import (
	"time"

	"finsight/pkg/core/confidence"
)

// Labels for the overall score, inclusive lower bounds.
const (
	LabelCritical  = "Critical"
	LabelFragile   = "Fragile"
	LabelGood      = "Good"
	LabelExcellent = "Excellent"
)

// Label maps an overall score to its qualitative band.
func Label(overall float64) string {
	switch {
	case overall >= 80:
		return LabelExcellent
	case overall >= 60:
		return LabelGood
	case overall >= 40:
		return LabelFragile
	default:
		return LabelCritical
	}
}

// Aggregate sums the pillars into the overall 0-100 score and produces the
// Result skeleton; the action prioritizer fills Actions afterwards. Pure and
// side-effect free.
func Aggregate(pillars []PillarScore, conf confidence.Level, fingerprint string, computedAt time.Time) *Result {
	var overall float64
	for _, p := range pillars {
		overall += p.Points
	}
	return &Result{
		Overall:            overall,
		Label:              Label(overall),
		Pillars:            pillars,
		Confidence:         conf,
		Actions:            []PrioritizedAction{},
		ComputedAt:         computedAt,
		DatasetFingerprint: fingerprint,
	}
}
