// Package anomaly flags statistically abnormal transactions and computes the
// flow-volatility coefficient. Three independent detectors run over the same
// dataset (Z-score, IQR, trend break); a merge step resolves the final
// severity per transaction as the maximum across detectors. New detectors
// only need to emit more Records into the same merge.
package anomaly

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/pkg/models"
)

// Kind tags which detector produced a record.
type Kind string

const (
	KindZScore     Kind = "z_score"
	KindIQR        Kind = "iqr"
	KindTrendBreak Kind = "trend_break"
)

// Severity of a flagged anomaly. Severities never stack.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMinor    Severity = "minor"
)

// Record is one flagged anomaly. Trend breaks are detected on monthly
// aggregates rather than single transactions; their TransactionID carries
// the synthetic key "month:YYYY-MM".
type Record struct {
	TransactionID string   `json:"transaction_id"`
	Kind          Kind     `json:"kind"`
	Severity      Severity `json:"severity"`
}

// Report is the detector output consumed by the pillar scorer.
type Report struct {
	Records               []Record `json:"records"`
	VolatilityCoefficient float64  `json:"volatility_coefficient"`
}

// Criticals counts records with critical severity.
func (r Report) Criticals() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Config holds the detector thresholds. Zero values fall back to defaults.
type Config struct {
	ZCritical          float64 `yaml:"z_critical"`
	ZMinor             float64 `yaml:"z_minor"`
	IQRCritical        float64 `yaml:"iqr_critical"`
	IQRMinor           float64 `yaml:"iqr_minor"`
	TrendBreakFactor   float64 `yaml:"trend_break_factor"`
	MaxVolatility      float64 `yaml:"max_volatility"`
	StratifyByCategory bool    `yaml:"stratify_by_category"`
}

// DefaultConfig mirrors the documented detector thresholds.
func DefaultConfig() Config {
	return Config{
		ZCritical:        3,
		ZMinor:           2,
		IQRCritical:      3,
		IQRMinor:         1.5,
		TrendBreakFactor: 2,
		MaxVolatility:    1,
	}
}

// Normalized returns the config with defaults filled in, the form the
// detectors actually run with. Two configs that normalize equally produce
// identical reports for the same dataset.
func (c Config) Normalized() Config {
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ZCritical == 0 {
		c.ZCritical = d.ZCritical
	}
	if c.ZMinor == 0 {
		c.ZMinor = d.ZMinor
	}
	if c.IQRCritical == 0 {
		c.IQRCritical = d.IQRCritical
	}
	if c.IQRMinor == 0 {
		c.IQRMinor = d.IQRMinor
	}
	if c.TrendBreakFactor == 0 {
		c.TrendBreakFactor = d.TrendBreakFactor
	}
	if c.MaxVolatility == 0 {
		c.MaxVolatility = d.MaxVolatility
	}
	return c
}

// Detect runs the three detectors concurrently over the transactions dated
// inside [periodStart, periodEnd) and merges their findings. It is pure with
// respect to its inputs; the context only bounds the goroutines.
func Detect(ctx context.Context, txns []models.Transaction, periodStart, periodEnd time.Time, cfg Config) (Report, error) {
	cfg = cfg.withDefaults()

	var inPeriod []models.Transaction
	for _, t := range txns {
		if !t.InvoiceDate.Before(periodStart) && t.InvoiceDate.Before(periodEnd) {
			inPeriod = append(inPeriod, t)
		}
	}

	monthly := monthlyNetFlow(inPeriod, periodStart, periodEnd)

	var zRecs, iqrRecs, trendRecs []Record
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		zRecs = detectZScore(inPeriod, cfg)
		return nil
	})
	g.Go(func() error {
		iqrRecs = detectIQR(inPeriod, cfg)
		return nil
	})
	g.Go(func() error {
		trendRecs = detectTrendBreak(monthly, cfg)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Records:               merge(zRecs, iqrRecs, trendRecs),
		VolatilityCoefficient: volatility(monthly.flows(), cfg),
	}
	return report, nil
}

// merge resolves the final severity per subject id as the maximum across
// detectors and returns a deterministically ordered record list.
func merge(groups ...[]Record) []Record {
	bestByID := map[string]Record{}
	for _, group := range groups {
		for _, rec := range group {
			current, seen := bestByID[rec.TransactionID]
			if !seen || rank(rec.Severity) > rank(current.Severity) {
				bestByID[rec.TransactionID] = rec
			}
		}
	}
	merged := make([]Record, 0, len(bestByID))
	for _, rec := range bestByID {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TransactionID < merged[j].TransactionID
	})
	return merged
}

func rank(s Severity) int {
	if s == SeverityCritical {
		return 2
	}
	return 1
}

// volatility is the coefficient of variation of the monthly net flow.
// Perfectly stable flows give 0. A near-zero mean with real dispersion is
// reported as maximal volatility instead of dividing by ~0.
func volatility(flows []float64, cfg Config) float64 {
	if len(flows) < 2 {
		return 0
	}
	sd := stddev(flows)
	if sd == 0 {
		return 0
	}
	m := math.Abs(mean(flows))
	if m < sd*1e-6 {
		return cfg.MaxVolatility
	}
	cv := sd / m
	if cv > cfg.MaxVolatility {
		return cfg.MaxVolatility
	}
	return cv
}
