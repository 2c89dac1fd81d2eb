package anomaly

import (
	"math"
	"sort"
	"time"

	"finsight/pkg/models"
)

// monthlySeries is the net cash flow aggregated per calendar month, ordered
// chronologically.
type monthlySeries struct {
	months []string // "YYYY-MM"
	values []float64
}

func (s monthlySeries) flows() []float64 { return s.values }

func monthlyNetFlow(txns []models.Transaction, periodStart, periodEnd time.Time) monthlySeries {
	byMonth := map[string]float64{}
	for _, t := range txns {
		d := t.CashDate()
		if d.Before(periodStart) || !d.Before(periodEnd) {
			d = t.InvoiceDate
		}
		key := d.Format("2006-01")
		signed, _ := t.Signed().Float64()
		byMonth[key] += signed
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	series := monthlySeries{months: months}
	for _, m := range months {
		series.values = append(series.values, byMonth[m])
	}
	return series
}

// detectTrendBreak flags a minor anomaly on any month whose month-over-month
// change exceeds TrendBreakFactor times the standard deviation of the
// trailing months. The record is keyed by the month, not by a transaction.
func detectTrendBreak(series monthlySeries, cfg Config) []Record {
	var records []Record
	for i := 2; i < len(series.values); i++ {
		trailing := series.values[:i]
		sd := stddev(trailing)
		if sd == 0 {
			continue
		}
		change := math.Abs(series.values[i] - series.values[i-1])
		if change > cfg.TrendBreakFactor*sd {
			records = append(records, Record{
				TransactionID: "month:" + series.months[i],
				Kind:          KindTrendBreak,
				Severity:      SeverityMinor,
			})
		}
	}
	return records
}
