package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"finsight/pkg/core/anomaly"
	"finsight/pkg/core/score"
	"finsight/pkg/models"
)

func fpRequest() ScoreRequest {
	return ScoreRequest{
		CompanyID:   "acme",
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Transactions: []models.Transaction{
			{ID: "t1", Amount: decimal.NewFromInt(100)},
			{ID: "t2", Amount: decimal.NewFromInt(250)},
			{ID: "t3", Amount: decimal.NewFromInt(75)},
		},
	}
}

func TestFingerprintOrderInsensitive(t *testing.T) {
	a := fpRequest()
	b := fpRequest()
	b.Transactions[0], b.Transactions[2] = b.Transactions[2], b.Transactions[0]

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint(fpRequest())

	amount := fpRequest()
	amount.Transactions[1].Amount = decimal.NewFromInt(251)
	assert.NotEqual(t, base, Fingerprint(amount), "amount change")

	company := fpRequest()
	company.CompanyID = "other"
	assert.NotEqual(t, base, Fingerprint(company), "company change")

	period := fpRequest()
	period.PeriodEnd = period.PeriodEnd.AddDate(0, 1, 0)
	assert.NotEqual(t, base, Fingerprint(period), "period change")

	config := fpRequest()
	tbl := score.DefaultTable()
	tbl.Version = "sector-v9"
	config.Config = tbl
	assert.NotEqual(t, base, Fingerprint(config), "config version change")
}

func TestFingerprintCoversAnomalyConfig(t *testing.T) {
	base := Fingerprint(fpRequest())

	loose := fpRequest()
	loose.Anomaly = anomaly.Config{ZCritical: 5, ZMinor: 4}
	assert.NotEqual(t, base, Fingerprint(loose), "detector thresholds change the result")

	// The zero value and the explicit defaults run the same detectors and
	// must share a cache entry.
	explicit := fpRequest()
	explicit.Anomaly = anomaly.DefaultConfig()
	assert.Equal(t, base, Fingerprint(explicit))
}

func TestFingerprintStableFormat(t *testing.T) {
	fp := Fingerprint(fpRequest())
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint(fpRequest()), "deterministic")
}
