// Package kpi derives the per-run KPI snapshot from a company's normalized
// transactions. Every function here is pure: same transactions, same numbers.
package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"finsight/pkg/models"
)

// Metric is a guarded numeric KPI. Degenerate inputs (zero revenue, zero
// burn) produce Defined=false instead of NaN/Inf; downstream scoring treats
// an undefined metric as the lowest band and the confidence evaluator rates
// it Low.
type Metric struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Defined wraps a concrete value.
func Defined(v float64) Metric { return Metric{Value: v, Defined: true} }

// Undefined is the sentinel for a metric that could not be computed.
func Undefined() Metric { return Metric{} }

// Snapshot is the KPI value object for one scoring run. Percentages are on
// the 0-100 scale to match the published band tables. Never mutated after
// Compute returns it.
type Snapshot struct {
	RunwayMonths      Metric `json:"runway_months"`
	RunwayUnbounded   bool   `json:"runway_unbounded"`
	NetCashFlow       Metric `json:"net_cash_flow"`
	DSODays           Metric `json:"dso_days"`
	NetMarginPct      Metric `json:"net_margin_pct"`
	RevenueGrowthPct  Metric `json:"revenue_growth_pct"`
	ChargeGrowthPct   Metric `json:"charge_growth_pct"`
	FixedChargeRatio  Metric `json:"fixed_charge_ratio"`
	TopClientSharePct Metric `json:"top_client_share_pct"`
	CategoryCount     int    `json:"category_count"`

	// Revenue is the period revenue in euros, kept for downstream impact
	// estimation (not part of the published result surface).
	Revenue decimal.Decimal `json:"revenue_eur"`
}

// Support carries the data-sufficiency counters the confidence evaluator
// rates: how much history backs each KPI.
type Support struct {
	TransactionCount   int
	MonthsOfHistory    int
	TopClientID        string
	TopClientPaidCount int
	PaidInvoiceCount   int
	PriorPeriodHasData bool
}

// Config holds the calculator knobs that are company/sector specific.
type Config struct {
	// FixedChargeCategories lists the outgoing categories counted as fixed
	// charges (rent, payroll, insurance, ...).
	FixedChargeCategories []string
}

const daysPerMonth = 30.44

// Compute derives the full KPI snapshot for the transactions of one company
// over [periodStart, periodEnd]. Transactions dated before the period feed
// the cash-on-hand and growth baselines; the caller is expected to have
// validated individual records already.
func Compute(txns []models.Transaction, periodStart, periodEnd time.Time, cfg Config) (Snapshot, Support) {
	var snap Snapshot
	var sup Support

	fixed := make(map[string]bool, len(cfg.FixedChargeCategories))
	for _, c := range cfg.FixedChargeCategories {
		fixed[c] = true
	}

	periodDays := periodEnd.Sub(periodStart).Hours() / 24
	periodMonths := periodDays / daysPerMonth

	// Prior comparable period: same length, immediately before.
	priorStart := periodStart.Add(-periodEnd.Sub(periodStart))

	var (
		cashOnHand   decimal.Decimal
		netFlow      decimal.Decimal
		revenue      decimal.Decimal
		charges      decimal.Decimal
		fixedCharges decimal.Decimal
		priorRevenue decimal.Decimal
		priorCharges decimal.Decimal
	)
	revenueByClient := map[string]decimal.Decimal{}
	paidByClient := map[string]int{}
	categories := map[string]bool{}

	var dsoWeighted float64
	var dsoBase decimal.Decimal

	earliest := periodEnd
	for _, t := range txns {
		if t.InvoiceDate.Before(earliest) {
			earliest = t.InvoiceDate
		}

		// Cash on hand accumulates every movement settled up to period end.
		if !t.CashDate().After(periodEnd) {
			cashOnHand = cashOnHand.Add(t.Signed())
		}

		inPeriod := inWindow(t.InvoiceDate, periodStart, periodEnd)
		inPrior := inWindow(t.InvoiceDate, priorStart, periodStart)

		if inWindow(t.CashDate(), periodStart, periodEnd) {
			netFlow = netFlow.Add(t.Signed())
		}

		switch t.Direction {
		case models.DirectionIn:
			if t.Paid() {
				paidByClient[t.ClientID]++
				sup.PaidInvoiceCount++
			}
			if inPeriod {
				revenue = revenue.Add(t.Amount)
				revenueByClient[t.ClientID] = revenueByClient[t.ClientID].Add(t.Amount)

				// DSO: settled invoices count their real collection delay,
				// unpaid invoices past due count full elapsed days.
				if days, ok := collectionDays(t, periodEnd); ok {
					dsoWeighted += days * amountFloat(t.Amount)
					dsoBase = dsoBase.Add(t.Amount)
				}
			}
			if inPrior {
				priorRevenue = priorRevenue.Add(t.Amount)
			}
		case models.DirectionOut:
			if inPeriod {
				charges = charges.Add(t.Amount)
				if fixed[t.Category] {
					fixedCharges = fixedCharges.Add(t.Amount)
				}
			}
			if inPrior {
				priorCharges = priorCharges.Add(t.Amount)
			}
		}

		if inPeriod {
			categories[t.Category] = true
			sup.TransactionCount++
		}
	}

	snap.Revenue = revenue
	snap.CategoryCount = len(categories)
	snap.NetCashFlow = Defined(amountFloat(netFlow))

	// Runway: months of operation fundable at the current burn rate. A
	// non-positive burn means the company is cash-flow positive and runway
	// is unbounded, reported as the top band.
	if periodMonths > 0 {
		burn := -amountFloat(netFlow) / periodMonths
		if burn <= 0 {
			snap.RunwayMonths = Defined(12)
			snap.RunwayUnbounded = true
		} else {
			snap.RunwayMonths = Defined(amountFloat(cashOnHand) / burn)
		}
	} else {
		snap.RunwayMonths = Undefined()
	}

	if dsoBase.IsPositive() {
		snap.DSODays = Defined(dsoWeighted / amountFloat(dsoBase))
	} else {
		snap.DSODays = Undefined()
	}

	snap.NetMarginPct = ratioPct(revenue.Sub(charges), revenue)
	snap.FixedChargeRatio = ratioPct(fixedCharges, revenue)

	snap.RevenueGrowthPct = growthPct(revenue, priorRevenue)
	snap.ChargeGrowthPct = growthPct(charges, priorCharges)

	// Top client concentration.
	var topRevenue decimal.Decimal
	for clientID, r := range revenueByClient {
		if r.GreaterThan(topRevenue) || (r.Equal(topRevenue) && clientID < sup.TopClientID) {
			topRevenue = r
			sup.TopClientID = clientID
		}
	}
	snap.TopClientSharePct = ratioPct(topRevenue, revenue)
	sup.TopClientPaidCount = paidByClient[sup.TopClientID]

	sup.MonthsOfHistory = monthsBetween(earliest, periodEnd)
	sup.PriorPeriodHasData = priorRevenue.IsPositive() || priorCharges.IsPositive()

	return snap, sup
}

// collectionDays returns the number of days an invoice took (or has taken so
// far) to collect. Unpaid invoices not yet due are excluded.
func collectionDays(t models.Transaction, periodEnd time.Time) (float64, bool) {
	if t.Paid() {
		return t.PaymentDate.Sub(t.InvoiceDate).Hours() / 24, true
	}
	if periodEnd.After(t.DueDate) {
		return periodEnd.Sub(t.InvoiceDate).Hours() / 24, true
	}
	return 0, false
}

// ratioPct computes num/den on the 0-100 scale, undefined when den is zero.
func ratioPct(num, den decimal.Decimal) Metric {
	if den.IsZero() {
		return Undefined()
	}
	return Defined(amountFloat(num) / amountFloat(den) * 100)
}

// growthPct is the period-over-period delta in percent, undefined when the
// prior period has no base.
func growthPct(current, prior decimal.Decimal) Metric {
	if prior.IsZero() {
		return Undefined()
	}
	return Defined(amountFloat(current.Sub(prior)) / amountFloat(prior.Abs()) * 100)
}

// inWindow is [from, to): half-open so adjacent periods never double count.
func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := int(to.Sub(from).Hours() / 24 / daysPerMonth)
	if months < 1 {
		return 1
	}
	return months
}

func amountFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
