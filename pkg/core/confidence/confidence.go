// Package confidence rates how much each KPI (and the run as a whole) should
// be trusted given the data that backs it. Confidence never blocks scoring:
// a Low-confidence KPI is still scored with its best-available value.
package confidence

import (
	"finsight/pkg/core/kpi"
)

// Level is the qualitative data-sufficiency rating.
type Level string

const (
	High   Level = "High"
	Medium Level = "Medium"
	Low    Level = "Low"
)

func rank(l Level) int {
	switch l {
	case High:
		return 3
	case Medium:
		return 2
	default:
		return 1
	}
}

// Worst returns the lowest of the given levels.
func Worst(levels ...Level) Level {
	worst := High
	for _, l := range levels {
		if rank(l) < rank(worst) {
			worst = l
		}
	}
	return worst
}

// Thresholds are the documented data minimums.
type Thresholds struct {
	PaidInvoicesHigh   int `yaml:"paid_invoices_high"`
	PaidInvoicesMedium int `yaml:"paid_invoices_medium"`
	HistoryMonthsHigh  int `yaml:"history_months_high"`
	HistoryMonthsMed   int `yaml:"history_months_medium"`
	TransactionsHigh   int `yaml:"transactions_high"`
	TransactionsMedium int `yaml:"transactions_medium"`
}

// DefaultThresholds: >=8 paid invoices for per-client KPIs, >=6 months of
// history for growth/seasonality KPIs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PaidInvoicesHigh:   8,
		PaidInvoicesMedium: 4,
		HistoryMonthsHigh:  6,
		HistoryMonthsMed:   3,
		TransactionsHigh:   25,
		TransactionsMedium: 10,
	}
}

// Assessment is the per-KPI confidence map plus the overall (worst) level.
type Assessment struct {
	PerKPI  map[string]Level `json:"per_kpi"`
	Overall Level            `json:"overall"`
}

// Evaluate rates every KPI that feeds a pillar. Undefined metrics are always
// Low; otherwise the rating follows the volume of history behind the KPI.
// Collection behavior is a per-client property, so DSO is rated on the paid
// history of the dominant client, not the dataset-wide paid count.
func Evaluate(snap kpi.Snapshot, sup kpi.Support, t Thresholds) Assessment {
	perKPI := map[string]Level{
		"runway":               gate(snap.RunwayMonths, band(sup.MonthsOfHistory, t.HistoryMonthsHigh, t.HistoryMonthsMed)),
		"net_cash_flow":        gate(snap.NetCashFlow, band(sup.TransactionCount, t.TransactionsHigh, t.TransactionsMedium)),
		"dso":                  gate(snap.DSODays, band(sup.TopClientPaidCount, t.PaidInvoicesHigh, t.PaidInvoicesMedium)),
		"net_margin":           gate(snap.NetMarginPct, band(sup.TransactionCount, t.TransactionsHigh, t.TransactionsMedium)),
		"revenue_growth":       gate(snap.RevenueGrowthPct, band(sup.MonthsOfHistory, t.HistoryMonthsHigh, t.HistoryMonthsMed)),
		"charge_growth":        gate(snap.ChargeGrowthPct, band(sup.MonthsOfHistory, t.HistoryMonthsHigh, t.HistoryMonthsMed)),
		"fixed_charge_ratio":   gate(snap.FixedChargeRatio, band(sup.TransactionCount, t.TransactionsHigh, t.TransactionsMedium)),
		"client_concentration": gate(snap.TopClientSharePct, band(sup.TransactionCount, t.TransactionsHigh, t.TransactionsMedium)),
		"category_diversity":   band(sup.TransactionCount, t.TransactionsHigh, t.TransactionsMedium),
	}

	overall := High
	for _, l := range perKPI {
		overall = Worst(overall, l)
	}
	return Assessment{PerKPI: perKPI, Overall: overall}
}

// gate forces Low for undefined metrics regardless of data volume.
func gate(m kpi.Metric, l Level) Level {
	if !m.Defined {
		return Low
	}
	return l
}

func band(count, high, medium int) Level {
	switch {
	case count >= high:
		return High
	case count >= medium:
		return Medium
	default:
		return Low
	}
}
