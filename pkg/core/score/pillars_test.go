package score

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/core/anomaly"
	"finsight/pkg/core/kpi"
)

func TestRunwayBandBoundaries(t *testing.T) {
	tbl := DefaultTable()
	cases := []struct {
		months float64
		want   float64
	}{
		{18, 15},
		{12, 15}, // boundary lands in the higher band
		{11.99, 12},
		{6, 12},
		{5.99, 8},
		{3, 8},
		{2.99, 3},
		{0, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, bandMetric(kpi.Defined(tc.months), tbl.Runway), "runway %v", tc.months)
	}
	assert.Equal(t, 3.0, bandMetric(kpi.Undefined(), tbl.Runway), "undefined runway")
}

func TestDSOBandBoundaries(t *testing.T) {
	tbl := DefaultTable()
	cases := []struct {
		days float64
		want float64
	}{
		{20, 5},
		{30, 5},
		{30.01, 3},
		{45, 3},
		{60, 1},
		{60.01, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ceilMetric(kpi.Defined(tc.days), tbl.DSO), "dso %v", tc.days)
	}
	assert.Equal(t, 0.0, ceilMetric(kpi.Undefined(), tbl.DSO), "undefined dso")
}

func TestUnboundedRunwayTakesTopBand(t *testing.T) {
	// A sector table whose top band starts above the 12-month clamp.
	tbl := DefaultTable()
	tbl.Runway = []Band{
		{AtLeast: 15, Points: 15},
		{AtLeast: 9, Points: 12},
		{AtLeast: 0, Points: 5},
	}

	unbounded := kpi.Snapshot{RunwayMonths: kpi.Defined(12), RunwayUnbounded: true}
	pillar := cashPillar(unbounded, tbl)
	require.Equal(t, "runway", pillar.SubBreakdown[0].Metric)
	assert.Equal(t, 15.0, pillar.SubBreakdown[0].PointsAwarded,
		"cash-flow positive company gets the top band")

	bounded := kpi.Snapshot{RunwayMonths: kpi.Defined(12)}
	pillar = cashPillar(bounded, tbl)
	assert.Equal(t, 12.0, pillar.SubBreakdown[0].PointsAwarded,
		"a real 12-month runway stays in its band")
}

func TestNetCashFlowPoints(t *testing.T) {
	tbl := DefaultTable()
	snap := kpi.Snapshot{Revenue: decimal.NewFromInt(100000)}

	snap.NetCashFlow = kpi.Defined(1)
	assert.Equal(t, 5.0, netCashFlowPoints(snap, tbl))

	snap.NetCashFlow = kpi.Defined(0)
	assert.Equal(t, 5.0, netCashFlowPoints(snap, tbl))

	// Slightly negative: within 5% of revenue.
	snap.NetCashFlow = kpi.Defined(-4000)
	assert.Equal(t, 2.0, netCashFlowPoints(snap, tbl))

	snap.NetCashFlow = kpi.Defined(-5000)
	assert.Equal(t, 2.0, netCashFlowPoints(snap, tbl))

	snap.NetCashFlow = kpi.Defined(-5001)
	assert.Equal(t, 0.0, netCashFlowPoints(snap, tbl))

	snap.NetCashFlow = kpi.Undefined()
	assert.Equal(t, 0.0, netCashFlowPoints(snap, tbl))

	// No revenue means no "slightly negative" allowance.
	snap = kpi.Snapshot{NetCashFlow: kpi.Defined(-100)}
	assert.Equal(t, 0.0, netCashFlowPoints(snap, tbl))
}

func TestChargeControlPoints(t *testing.T) {
	tbl := DefaultTable()
	mk := func(charge, rev float64) kpi.Snapshot {
		return kpi.Snapshot{
			ChargeGrowthPct:  kpi.Defined(charge),
			RevenueGrowthPct: kpi.Defined(rev),
		}
	}

	assert.Equal(t, 5.0, chargeControlPoints(mk(-5, 10), tbl), "falling charges")
	assert.Equal(t, 3.0, chargeControlPoints(mk(5, 10), tbl), "slower than revenue")
	assert.Equal(t, 1.0, chargeControlPoints(mk(12, 10), tbl), "within tolerance")
	assert.Equal(t, 0.0, chargeControlPoints(mk(16, 10), tbl), "runaway charges")

	undef := kpi.Snapshot{ChargeGrowthPct: kpi.Undefined(), RevenueGrowthPct: kpi.Defined(10)}
	assert.Equal(t, 0.0, chargeControlPoints(undef, tbl), "undefined growth")
}

func TestAwardOverrides(t *testing.T) {
	tbl := DefaultTable()
	tbl.NetCashFlow = NetCashFlowAwards{Positive: 8, SlightlyNegative: 4, VeryNegative: 1}
	tbl.ChargeControl = ChargeControlAwards{Falling: 6, SlowerThanRevenue: 4, WithinTolerance: 2, Runaway: 1}

	snap := kpi.Snapshot{
		NetCashFlow: kpi.Defined(-4000),
		Revenue:     decimal.NewFromInt(100000),
	}
	assert.Equal(t, 4.0, netCashFlowPoints(snap, tbl))

	snap.ChargeGrowthPct = kpi.Defined(-5)
	snap.RevenueGrowthPct = kpi.Defined(10)
	assert.Equal(t, 6.0, chargeControlPoints(snap, tbl))

	// The sub-metric maximums follow the overridden top awards.
	cash := cashPillar(snap, tbl)
	assert.Equal(t, 8.0, cash.SubBreakdown[1].MaxPoints, "net_cash_flow max")
	margin := marginPillar(snap, tbl)
	assert.Equal(t, 6.0, margin.SubBreakdown[2].MaxPoints, "charge_control max")
}

func TestRiskPillarFloorsAtZero(t *testing.T) {
	records := make([]anomaly.Record, 0, 20)
	for i := 0; i < 4; i++ {
		records = append(records, anomaly.Record{Severity: anomaly.SeverityCritical})
	}
	for i := 0; i < 16; i++ {
		records = append(records, anomaly.Record{Severity: anomaly.SeverityMinor})
	}
	report := anomaly.Report{Records: records, VolatilityCoefficient: 1}

	pillar := riskPillar(report, DefaultTable())
	assert.Equal(t, 0.0, pillar.Points)
	for _, sub := range pillar.SubBreakdown {
		assert.Equal(t, 0.0, sub.PointsAwarded, sub.Metric)
	}
}

func TestRiskPillarPartialPenalties(t *testing.T) {
	records := make([]anomaly.Record, 0, 8)
	for i := 0; i < 2; i++ {
		records = append(records, anomaly.Record{Severity: anomaly.SeverityCritical})
	}
	for i := 0; i < 6; i++ {
		records = append(records, anomaly.Record{Severity: anomaly.SeverityMinor})
	}
	report := anomaly.Report{Records: records, VolatilityCoefficient: 0.2}

	pillar := riskPillar(report, DefaultTable())
	require.Len(t, pillar.SubBreakdown, 3)
	assert.Equal(t, 4.0, pillar.SubBreakdown[0].PointsAwarded, "critical penalty 2*3")
	assert.Equal(t, 1.0, pillar.SubBreakdown[1].PointsAwarded, "count penalty 8*0.5")
	assert.Equal(t, 8.0, pillar.SubBreakdown[2].PointsAwarded, "volatility penalty 0.2*10")
	assert.Equal(t, 13.0, pillar.Points)
}

// A struggling-but-viable company: short runway, deep cash deficit, slow
// collections, decent margin and growth, a couple of critical anomalies.
func fragileFixture() (kpi.Snapshot, anomaly.Report) {
	snap := kpi.Snapshot{
		RunwayMonths:      kpi.Defined(7),
		NetCashFlow:       kpi.Defined(-30000),
		DSODays:           kpi.Defined(75),
		NetMarginPct:      kpi.Defined(12),
		RevenueGrowthPct:  kpi.Defined(16),
		ChargeGrowthPct:   kpi.Defined(18),
		FixedChargeRatio:  kpi.Defined(45),
		TopClientSharePct: kpi.Defined(18),
		CategoryCount:     4,
		Revenue:           decimal.NewFromInt(200000),
	}
	records := []anomaly.Record{
		{TransactionID: "a", Severity: anomaly.SeverityCritical},
		{TransactionID: "b", Severity: anomaly.SeverityCritical},
	}
	for _, id := range []string{"c", "d", "e", "f", "g", "h"} {
		records = append(records, anomaly.Record{TransactionID: id, Severity: anomaly.SeverityMinor})
	}
	return snap, anomaly.Report{Records: records, VolatilityCoefficient: 0.2}
}

func TestComputePillarsFragileScenario(t *testing.T) {
	snap, report := fragileFixture()
	pillars := ComputePillars(snap, report, DefaultTable())
	require.Len(t, pillars, 4)

	byName := map[PillarName]PillarScore{}
	for _, p := range pillars {
		byName[p.Name] = p
	}
	assert.Equal(t, 12.0, byName[PillarCash].Points)
	assert.Equal(t, 15.0, byName[PillarMargin].Points)
	assert.Equal(t, 18.0, byName[PillarResilience].Points)
	assert.Equal(t, 13.0, byName[PillarRisk].Points)

	// Fixed ordering and the sum invariant.
	order := []PillarName{PillarCash, PillarMargin, PillarResilience, PillarRisk}
	for i, p := range pillars {
		assert.Equal(t, order[i], p.Name)
		var sum float64
		for _, s := range p.SubBreakdown {
			sum += s.PointsAwarded
		}
		assert.InDelta(t, p.Points, sum, 1e-9, "breakdown must sum to pillar total for %s", p.Name)
		assert.GreaterOrEqual(t, p.Points, 0.0)
		assert.LessOrEqual(t, p.Points, 25.0)
	}
}

func TestAssembleCapsAtTwentyFive(t *testing.T) {
	pillar := assemble(PillarCash, []SubScore{
		{Metric: "a", PointsAwarded: 20, MaxPoints: 20},
		{Metric: "b", PointsAwarded: 10, MaxPoints: 10},
	})
	assert.Equal(t, 25.0, pillar.Points)

	var sum float64
	for _, s := range pillar.SubBreakdown {
		sum += s.PointsAwarded
	}
	assert.Equal(t, 25.0, sum)
}
