package score

import (
	"math"

	"finsight/pkg/core/anomaly"
	"finsight/pkg/core/kpi"
)

// Sub-metric maximums from the published band table. Net cash flow and
// charge control take their maximum from the table's award block instead.
const (
	maxRunway        = 15
	maxDSO           = 5
	maxNetMargin     = 15
	maxRevenueGrowth = 5
	maxFixedCharge   = 10
	maxConcentration = 10
	maxDiversity     = 5
)

// ComputePillars maps the KPI snapshot and anomaly report to the four
// pillars, in the fixed order CASH, MARGIN, RESILIENCE, RISK. Each pillar is
// the sum of its breakdown, hard-capped at 25.
func ComputePillars(snap kpi.Snapshot, report anomaly.Report, tbl *ThresholdTable) []PillarScore {
	return []PillarScore{
		cashPillar(snap, tbl),
		marginPillar(snap, tbl),
		resiliencePillar(snap, tbl),
		riskPillar(report, tbl),
	}
}

func cashPillar(snap kpi.Snapshot, tbl *ThresholdTable) PillarScore {
	subs := []SubScore{
		{Metric: "runway", MaxPoints: maxRunway, PointsAwarded: runwayPoints(snap, tbl)},
		{Metric: "net_cash_flow", MaxPoints: tbl.NetCashFlow.Positive, PointsAwarded: netCashFlowPoints(snap, tbl)},
		{Metric: "dso", MaxPoints: maxDSO, PointsAwarded: ceilMetric(snap.DSODays, tbl.DSO)},
	}
	return assemble(PillarCash, subs)
}

// runwayPoints: a cash-flow-positive company has unbounded runway and gets
// the top band, wherever a sector table sets its lower bound.
func runwayPoints(snap kpi.Snapshot, tbl *ThresholdTable) float64 {
	if snap.RunwayUnbounded && len(tbl.Runway) > 0 {
		return tbl.Runway[0].Points
	}
	return bandMetric(snap.RunwayMonths, tbl.Runway)
}

func marginPillar(snap kpi.Snapshot, tbl *ThresholdTable) PillarScore {
	subs := []SubScore{
		{Metric: "net_margin", MaxPoints: maxNetMargin, PointsAwarded: bandMetric(snap.NetMarginPct, tbl.NetMargin)},
		{Metric: "revenue_growth", MaxPoints: maxRevenueGrowth, PointsAwarded: bandMetric(snap.RevenueGrowthPct, tbl.RevenueGrowth)},
		{Metric: "charge_control", MaxPoints: tbl.ChargeControl.Falling, PointsAwarded: chargeControlPoints(snap, tbl)},
	}
	return assemble(PillarMargin, subs)
}

func resiliencePillar(snap kpi.Snapshot, tbl *ThresholdTable) PillarScore {
	subs := []SubScore{
		{Metric: "fixed_charge_ratio", MaxPoints: maxFixedCharge, PointsAwarded: ceilMetric(snap.FixedChargeRatio, tbl.FixedCharge)},
		{Metric: "client_concentration", MaxPoints: maxConcentration, PointsAwarded: ceilMetric(snap.TopClientSharePct, tbl.ClientConcentration)},
		{Metric: "category_diversity", MaxPoints: maxDiversity, PointsAwarded: pointsAtLeast(float64(snap.CategoryCount), tbl.CategoryDiversity)},
	}
	return assemble(PillarResilience, subs)
}

// riskPillar starts from 25 and subtracts capped penalties. Each sub-score
// is expressed as max minus its penalty so the breakdown still sums to the
// pillar total, and the 25-10-5-10 worst case floors at exactly 0.
func riskPillar(report anomaly.Report, tbl *ThresholdTable) PillarScore {
	p := tbl.Risk

	critPenalty := math.Min(p.PerCritical*float64(report.Criticals()), p.CriticalCap)
	anyPenalty := math.Min(p.PerAnomaly*float64(len(report.Records)), p.AnomalyCap)
	volPenalty := math.Min(p.VolatilityFactor*report.VolatilityCoefficient, p.VolatilityCap)

	subs := []SubScore{
		{Metric: "critical_anomalies", MaxPoints: p.CriticalCap, PointsAwarded: p.CriticalCap - critPenalty},
		{Metric: "anomaly_count", MaxPoints: p.AnomalyCap, PointsAwarded: p.AnomalyCap - anyPenalty},
		{Metric: "flow_volatility", MaxPoints: p.VolatilityCap, PointsAwarded: p.VolatilityCap - volPenalty},
	}
	return assemble(PillarRisk, subs)
}

// netCashFlowPoints: positive is full points, a deficit within the
// configured share of revenue is "slightly negative", worse gets the bottom
// award. The awards themselves come from the table.
func netCashFlowPoints(snap kpi.Snapshot, tbl *ThresholdTable) float64 {
	a := tbl.NetCashFlow
	if !snap.NetCashFlow.Defined {
		return a.VeryNegative
	}
	v := snap.NetCashFlow.Value
	if v >= 0 {
		return a.Positive
	}
	revenue, _ := snap.Revenue.Float64()
	floor := -tbl.NetCashFlowSlightFloorPct / 100 * revenue
	if v >= floor && floor < 0 {
		return a.SlightlyNegative
	}
	return a.VeryNegative
}

// chargeControlPoints compares charge growth against revenue growth:
// falling charges, charges growing slower than revenue, charges within
// tolerance, and runaway charges, each awarded from the table.
func chargeControlPoints(snap kpi.Snapshot, tbl *ThresholdTable) float64 {
	a := tbl.ChargeControl
	if !snap.ChargeGrowthPct.Defined || !snap.RevenueGrowthPct.Defined {
		return a.Runaway
	}
	charge := snap.ChargeGrowthPct.Value
	rev := snap.RevenueGrowthPct.Value
	switch {
	case charge < 0:
		return a.Falling
	case charge < rev:
		return a.SlowerThanRevenue
	case charge <= rev+tbl.ChargeTolerancePct:
		return a.WithinTolerance
	default:
		return a.Runaway
	}
}

func bandMetric(m kpi.Metric, bands []Band) float64 {
	if !m.Defined {
		return lowestBand(bands)
	}
	return pointsAtLeast(m.Value, bands)
}

func ceilMetric(m kpi.Metric, bands []CeilBand) float64 {
	if !m.Defined {
		return lowestCeilBand(bands)
	}
	return pointsUpTo(m.Value, bands)
}

// assemble sums the breakdown and enforces the 0..25 pillar bounds. If the
// cap trims the total, the trim is taken off the first sub-scores so the
// sum invariant holds.
func assemble(name PillarName, subs []SubScore) PillarScore {
	var total float64
	for _, s := range subs {
		total += s.PointsAwarded
	}
	if total > 25 {
		excess := total - 25
		for i := range subs {
			take := math.Min(subs[i].PointsAwarded, excess)
			subs[i].PointsAwarded -= take
			excess -= take
			if excess <= 0 {
				break
			}
		}
		total = 25
	}
	if total < 0 {
		total = 0
	}
	return PillarScore{Name: name, Points: total, SubBreakdown: subs}
}
