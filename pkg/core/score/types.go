// Package score maps KPI values and anomaly counts to the four-pillar
// 0-100 composite score. The band tables are configuration, not code:
// sector overrides replace the defaults per request.
package score

import (
	"time"

	"github.com/shopspring/decimal"

	"finsight/pkg/core/confidence"
)

// PillarName identifies one of the four scoring pillars.
type PillarName string

const (
	PillarCash       PillarName = "CASH"
	PillarMargin     PillarName = "MARGIN"
	PillarResilience PillarName = "RESILIENCE"
	PillarRisk       PillarName = "RISK"
)

// SubScore is one banded sub-metric inside a pillar.
type SubScore struct {
	Metric        string  `json:"metric"`
	PointsAwarded float64 `json:"points_awarded"`
	MaxPoints     float64 `json:"max_points"`
}

// PillarScore holds a pillar total and its ordered breakdown.
// Invariant: Points == sum of the breakdown, 0 <= Points <= 25.
type PillarScore struct {
	Name         PillarName `json:"name"`
	Points       float64    `json:"points"`
	SubBreakdown []SubScore `json:"sub_breakdown"`
}

// PrioritizedAction is one recommended improvement lever, ordered descending
// by priority score.
type PrioritizedAction struct {
	Description        string          `json:"description"`
	EstimatedImpactEUR decimal.Decimal `json:"estimated_impact_eur"`
	PriorityScore      float64         `json:"priority_score"`
}

// Result is the immutable outcome of one scoring run, cached by dataset
// fingerprint. Field names and enum values are part of the published
// contract and are rendered verbatim to end users.
type Result struct {
	Overall            float64             `json:"overall"`
	Label              string              `json:"label"`
	Pillars            []PillarScore       `json:"pillars"`
	Confidence         confidence.Level    `json:"confidence"`
	Actions            []PrioritizedAction `json:"actions"`
	ComputedAt         time.Time           `json:"computed_at"`
	DatasetFingerprint string              `json:"dataset_fingerprint"`
}
