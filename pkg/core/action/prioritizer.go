// Package action turns band headroom into a ranked, bounded list of
// improvement levers. Every sub-metric below its maximum band is a
// candidate; the top three by priority are returned.
package action

import (
	"sort"

	"github.com/shopspring/decimal"

	"finsight/pkg/core/kpi"
	"finsight/pkg/core/score"
)

// MaxActions bounds the returned list.
const MaxActions = 3

const (
	impactWeight = 0.7
	easeWeight   = 0.3
)

// ImpactEstimator converts one lever's band headroom into an estimated euro
// impact. The exact derivation is domain-supplied configuration, not engine
// code; DefaultEstimator is the shipped heuristic.
type ImpactEstimator func(metric string, headroomFraction float64, snap kpi.Snapshot, lever score.Lever) decimal.Decimal

// DefaultEstimator scales the lever weight by the headroom fraction and the
// period revenue: a metric one full band away from its max on a 0.15-weight
// lever over 200k of revenue is worth 30k.
func DefaultEstimator(metric string, headroomFraction float64, snap kpi.Snapshot, lever score.Lever) decimal.Decimal {
	return snap.Revenue.
		Mul(decimal.NewFromFloat(lever.Weight)).
		Mul(decimal.NewFromFloat(headroomFraction)).
		Round(2)
}

type candidate struct {
	metric    string
	action    score.PrioritizedAction
	rawImpact decimal.Decimal
}

// Prioritize builds the top-3 action list from the scored pillars.
// priority = impact*0.7 + ease*0.3, with impact normalized against the
// largest candidate; ties break toward the larger raw impact. Fewer than
// three actions come back only when fewer sub-metrics have headroom.
func Prioritize(pillars []score.PillarScore, snap kpi.Snapshot, tbl *score.ThresholdTable, estimate ImpactEstimator) []score.PrioritizedAction {
	if estimate == nil {
		estimate = DefaultEstimator
	}

	var candidates []candidate
	maxImpact := decimal.Zero
	for _, pillar := range pillars {
		if pillar.Name == score.PillarRisk {
			// Anomaly penalties are symptoms, not levers the business can
			// pull directly; they surface through the score itself.
			continue
		}
		for _, sub := range pillar.SubBreakdown {
			gap := sub.MaxPoints - sub.PointsAwarded
			if gap <= 0 || sub.MaxPoints <= 0 {
				continue
			}
			lever, ok := tbl.Levers[sub.Metric]
			if !ok {
				continue
			}
			impact := estimate(sub.Metric, gap/sub.MaxPoints, snap, lever)
			if impact.GreaterThan(maxImpact) {
				maxImpact = impact
			}
			candidates = append(candidates, candidate{
				metric: sub.Metric,
				action: score.PrioritizedAction{
					Description:        lever.Description,
					EstimatedImpactEUR: impact,
				},
				rawImpact: impact,
			})
		}
	}

	for i := range candidates {
		normalized := 0.0
		if maxImpact.IsPositive() {
			ratio, _ := candidates[i].rawImpact.Div(maxImpact).Float64()
			normalized = ratio
		}
		lever := tbl.Levers[candidates[i].metric]
		candidates[i].action.PriorityScore = impactWeight*normalized + easeWeight*lever.Ease
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].action.PriorityScore != candidates[j].action.PriorityScore {
			return candidates[i].action.PriorityScore > candidates[j].action.PriorityScore
		}
		return candidates[i].rawImpact.GreaterThan(candidates[j].rawImpact)
	})

	if len(candidates) > MaxActions {
		candidates = candidates[:MaxActions]
	}
	actions := make([]score.PrioritizedAction, len(candidates))
	for i, c := range candidates {
		actions[i] = c.action
	}
	return actions
}
