package anomaly

import (
	"finsight/pkg/models"
)

// detectIQR flags transactions outside the Tukey fences: beyond
// IQRMinor*IQR from the quartiles is minor, beyond IQRCritical*IQR is
// critical.
func detectIQR(txns []models.Transaction, cfg Config) []Record {
	var records []Record
	for _, group := range stratify(txns, cfg) {
		if len(group) < 4 {
			continue
		}
		amounts := make([]float64, len(group))
		for i, t := range group {
			amounts[i], _ = t.Amount.Float64()
		}
		q1, q3 := quartiles(amounts)
		iqr := q3 - q1
		if iqr == 0 {
			continue
		}
		for i, t := range group {
			v := amounts[i]
			switch {
			case v < q1-cfg.IQRCritical*iqr || v > q3+cfg.IQRCritical*iqr:
				records = append(records, Record{TransactionID: t.ID, Kind: KindIQR, Severity: SeverityCritical})
			case v < q1-cfg.IQRMinor*iqr || v > q3+cfg.IQRMinor*iqr:
				records = append(records, Record{TransactionID: t.ID, Kind: KindIQR, Severity: SeverityMinor})
			}
		}
	}
	return records
}
