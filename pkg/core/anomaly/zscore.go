package anomaly

import (
	"math"

	"finsight/pkg/models"
)

// detectZScore flags transactions whose amount deviates from the mean by
// more than ZMinor (minor) or ZCritical (critical) standard deviations.
// With StratifyByCategory set, each category forms its own population.
func detectZScore(txns []models.Transaction, cfg Config) []Record {
	var records []Record
	for _, group := range stratify(txns, cfg) {
		amounts := make([]float64, len(group))
		for i, t := range group {
			amounts[i], _ = t.Amount.Float64()
		}
		m := mean(amounts)
		sd := stddev(amounts)
		if sd == 0 {
			continue
		}
		for i, t := range group {
			z := math.Abs(amounts[i]-m) / sd
			switch {
			case z > cfg.ZCritical:
				records = append(records, Record{TransactionID: t.ID, Kind: KindZScore, Severity: SeverityCritical})
			case z > cfg.ZMinor:
				records = append(records, Record{TransactionID: t.ID, Kind: KindZScore, Severity: SeverityMinor})
			}
		}
	}
	return records
}

// stratify groups transactions per category when configured, otherwise
// returns the whole set as a single population.
func stratify(txns []models.Transaction, cfg Config) [][]models.Transaction {
	if !cfg.StratifyByCategory {
		return [][]models.Transaction{txns}
	}
	byCategory := map[string][]models.Transaction{}
	for _, t := range txns {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}
	groups := make([][]models.Transaction, 0, len(byCategory))
	for _, g := range byCategory {
		groups = append(groups, g)
	}
	return groups
}
