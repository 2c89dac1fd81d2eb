package score

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// Band awards Points to any value at or above AtLeast (inclusive lower
// bound, so exact boundary values land in the higher band). Lists are
// ordered best band first; the last band is the catch-all.
type Band struct {
	AtLeast float64 `yaml:"at_least"`
	Points  float64 `yaml:"points"`
}

// CeilBand is the lower-is-better counterpart: Points go to any value at or
// below UpTo.
type CeilBand struct {
	UpTo   float64 `yaml:"up_to"`
	Points float64 `yaml:"points"`
}

// Lever configures the action prioritizer for one sub-metric: how easy the
// improvement is to execute (0-1) and the weight converting band headroom
// into euros of period revenue.
type Lever struct {
	Description string  `yaml:"description"`
	Ease        float64 `yaml:"ease"`
	Weight      float64 `yaml:"weight"`
}

// NetCashFlowAwards are the points for the three net-cash-flow outcomes.
// Positive doubles as the sub-metric maximum.
type NetCashFlowAwards struct {
	Positive         float64 `yaml:"positive"`
	SlightlyNegative float64 `yaml:"slightly_negative"`
	VeryNegative     float64 `yaml:"very_negative"`
}

// ChargeControlAwards are the points for the four charge-growth outcomes.
// Falling doubles as the sub-metric maximum.
type ChargeControlAwards struct {
	Falling           float64 `yaml:"falling"`
	SlowerThanRevenue float64 `yaml:"slower_than_revenue"`
	WithinTolerance   float64 `yaml:"within_tolerance"`
	Runaway           float64 `yaml:"runaway"`
}

// RiskPenalties drive the subtractive RISK pillar.
type RiskPenalties struct {
	PerCritical      float64 `yaml:"per_critical"`
	CriticalCap      float64 `yaml:"critical_cap"`
	PerAnomaly       float64 `yaml:"per_anomaly"`
	AnomalyCap       float64 `yaml:"anomaly_cap"`
	VolatilityFactor float64 `yaml:"volatility_factor"`
	VolatilityCap    float64 `yaml:"volatility_cap"`
}

// ThresholdTable is the full scoring configuration for one run. Version
// participates in the dataset fingerprint so a config change invalidates
// cached results.
type ThresholdTable struct {
	Version string `yaml:"version"`

	Runway              []Band     `yaml:"runway"`
	DSO                 []CeilBand `yaml:"dso"`
	NetMargin           []Band     `yaml:"net_margin"`
	RevenueGrowth       []Band     `yaml:"revenue_growth"`
	FixedCharge         []CeilBand `yaml:"fixed_charge"`
	ClientConcentration []CeilBand `yaml:"client_concentration"`
	CategoryDiversity   []Band     `yaml:"category_diversity"`

	NetCashFlow   NetCashFlowAwards   `yaml:"net_cash_flow"`
	ChargeControl ChargeControlAwards `yaml:"charge_control"`

	// NetCashFlowSlightFloorPct separates "slightly" from "very" negative
	// cash flow, as a percentage of period revenue.
	NetCashFlowSlightFloorPct float64 `yaml:"net_cash_flow_slight_floor_pct"`

	// ChargeTolerancePct is how many percentage points charge growth may
	// exceed revenue growth and still count as "controlled".
	ChargeTolerancePct float64 `yaml:"charge_tolerance_pct"`

	Risk RiskPenalties `yaml:"risk"`

	// FixedChargeCategories feed the KPI calculator; sector tables override
	// them together with the bands.
	FixedChargeCategories []string `yaml:"fixed_charge_categories"`

	Levers map[string]Lever `yaml:"levers"`
}

// DefaultTable returns the documented band table.
func DefaultTable() *ThresholdTable {
	return &ThresholdTable{
		Version: "default-v1",

		Runway: []Band{
			{AtLeast: 12, Points: 15},
			{AtLeast: 6, Points: 12},
			{AtLeast: 3, Points: 8},
			{AtLeast: math.Inf(-1), Points: 3},
		},
		DSO: []CeilBand{
			{UpTo: 30, Points: 5},
			{UpTo: 45, Points: 3},
			{UpTo: 60, Points: 1},
			{UpTo: math.Inf(1), Points: 0},
		},
		NetMargin: []Band{
			{AtLeast: 20, Points: 15},
			{AtLeast: 15, Points: 12},
			{AtLeast: 10, Points: 9},
			{AtLeast: 5, Points: 5},
			{AtLeast: 0, Points: 2},
			{AtLeast: math.Inf(-1), Points: 0},
		},
		RevenueGrowth: []Band{
			{AtLeast: 15, Points: 5},
			{AtLeast: 5, Points: 3},
			{AtLeast: 0, Points: 1},
			{AtLeast: math.Inf(-1), Points: 0},
		},
		FixedCharge: []CeilBand{
			{UpTo: 30, Points: 10},
			{UpTo: 50, Points: 7},
			{UpTo: 70, Points: 4},
			{UpTo: math.Inf(1), Points: 1},
		},
		ClientConcentration: []CeilBand{
			{UpTo: 20, Points: 10},
			{UpTo: 35, Points: 7},
			{UpTo: 50, Points: 4},
			{UpTo: math.Inf(1), Points: 1},
		},
		CategoryDiversity: []Band{
			{AtLeast: 8, Points: 5},
			{AtLeast: 5, Points: 3},
			{AtLeast: 3, Points: 1},
			{AtLeast: math.Inf(-1), Points: 0},
		},

		NetCashFlow: NetCashFlowAwards{
			Positive:         5,
			SlightlyNegative: 2,
			VeryNegative:     0,
		},
		ChargeControl: ChargeControlAwards{
			Falling:           5,
			SlowerThanRevenue: 3,
			WithinTolerance:   1,
			Runaway:           0,
		},

		NetCashFlowSlightFloorPct: 5,
		ChargeTolerancePct:        5,

		Risk: RiskPenalties{
			PerCritical:      3,
			CriticalCap:      10,
			PerAnomaly:       0.5,
			AnomalyCap:       5,
			VolatilityFactor: 10,
			VolatilityCap:    10,
		},

		FixedChargeCategories: []string{
			"rent", "payroll", "insurance", "subscriptions", "loan_repayment",
		},

		Levers: map[string]Lever{
			"runway": {
				Description: "Rebuild the cash buffer to extend runway",
				Ease:        0.3,
				Weight:      0.20,
			},
			"net_cash_flow": {
				Description: "Bring net cash flow back to positive territory",
				Ease:        0.4,
				Weight:      0.15,
			},
			"dso": {
				Description: "Shorten collection delays on receivables (DSO)",
				Ease:        0.8,
				Weight:      0.15,
			},
			"net_margin": {
				Description: "Improve net margin through pricing or cost of sales",
				Ease:        0.4,
				Weight:      0.20,
			},
			"revenue_growth": {
				Description: "Reignite revenue growth on the core offer",
				Ease:        0.3,
				Weight:      0.15,
			},
			"charge_control": {
				Description: "Slow down charge growth relative to revenue",
				Ease:        0.6,
				Weight:      0.10,
			},
			"fixed_charge_ratio": {
				Description: "Reduce fixed charges (rent, subscriptions, payroll mix)",
				Ease:        0.5,
				Weight:      0.10,
			},
			"client_concentration": {
				Description: "Diversify the client base away from the top account",
				Ease:        0.2,
				Weight:      0.10,
			},
			"category_diversity": {
				Description: "Broaden the mix of activity categories",
				Ease:        0.2,
				Weight:      0.05,
			},
		},
	}
}

// LoadTable reads a sector override file. The file starts from the default
// table, so partial overrides (just the bands that differ) are enough.
func LoadTable(path string) (*ThresholdTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read threshold table: %w", err)
	}
	table := DefaultTable()
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("parse threshold table %s: %w", path, err)
	}
	return table, nil
}

// pointsAtLeast walks a higher-is-better band list.
func pointsAtLeast(v float64, bands []Band) float64 {
	for _, b := range bands {
		if v >= b.AtLeast {
			return b.Points
		}
	}
	return 0
}

// pointsUpTo walks a lower-is-better band list.
func pointsUpTo(v float64, bands []CeilBand) float64 {
	for _, b := range bands {
		if v <= b.UpTo {
			return b.Points
		}
	}
	return 0
}

// lowestBand is the catch-all award for undefined metrics.
func lowestBand(bands []Band) float64 {
	if len(bands) == 0 {
		return 0
	}
	return bands[len(bands)-1].Points
}

func lowestCeilBand(bands []CeilBand) float64 {
	if len(bands) == 0 {
		return 0
	}
	return bands[len(bands)-1].Points
}
