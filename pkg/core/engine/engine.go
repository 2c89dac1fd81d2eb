// Package engine wires the scoring stages together: request validation, the
// parallel KPI/anomaly pass, the join into confidence and pillar scoring,
// aggregation, and action prioritization. The engine holds no state between
// runs; everything it produces is a pure function of the request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"finsight/pkg/core/action"
	"finsight/pkg/core/anomaly"
	"finsight/pkg/core/confidence"
	"finsight/pkg/core/kpi"
	"finsight/pkg/core/score"
	"finsight/pkg/models"
)

var (
	// ErrInvalidInput is the only hard failure: an empty transaction list,
	// or a list where every record is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData wraps ErrInvalidInput for the all-records-invalid
	// case.
	ErrInsufficientData = fmt.Errorf("%w: insufficient data", ErrInvalidInput)
)

// ScoreRequest is the engine boundary input. Transactions must already be
// normalized; upload parsing is the caller's problem.
type ScoreRequest struct {
	CompanyID    string               `json:"company_id" validate:"required"`
	PeriodStart  time.Time            `json:"period_start" validate:"required"`
	PeriodEnd    time.Time            `json:"period_end" validate:"required,gtfield=PeriodStart"`
	Transactions []models.Transaction `json:"transactions"`

	// Config replaces the default band table (sector overrides). Nil means
	// defaults.
	Config *score.ThresholdTable `json:"config,omitempty"`

	// Anomaly tunes the statistical detectors. Zero value means defaults.
	Anomaly anomaly.Config `json:"anomaly,omitempty"`
}

func defaultTable() *score.ThresholdTable { return score.DefaultTable() }

// Engine computes ScoreResults. Safe for concurrent use.
type Engine struct {
	log      *logrus.Logger
	validate *validator.Validate
	estimate action.ImpactEstimator
}

// Option configures the engine.
type Option func(*Engine)

// WithImpactEstimator swaps the euro-impact heuristic used by the action
// prioritizer.
func WithImpactEstimator(est action.ImpactEstimator) Option {
	return func(e *Engine) { e.estimate = est }
}

// New builds an engine logging through the given logger.
func New(log *logrus.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logrus.New()
	}
	e := &Engine{
		log:      log,
		validate: validator.New(),
		estimate: action.DefaultEstimator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score runs one full scoring pass. Malformed individual records are
// skipped and logged; only an empty or entirely invalid dataset fails.
func (e *Engine) Score(ctx context.Context, req ScoreRequest) (*score.Result, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(req.Transactions) == 0 {
		return nil, fmt.Errorf("%w: empty transaction list", ErrInvalidInput)
	}

	txns := e.cleanTransactions(req)
	if len(txns) == 0 {
		return nil, ErrInsufficientData
	}

	table := req.Config
	if table == nil {
		table = defaultTable()
	}

	fingerprint := Fingerprint(req)
	log := e.log.WithFields(logrus.Fields{
		"component":   "engine",
		"run_id":      uuid.NewString(),
		"company_id":  req.CompanyID,
		"fingerprint": fingerprint,
	})

	// KPI derivation and anomaly detection are independent; run them in
	// parallel and join before scoring.
	var (
		snap    kpi.Snapshot
		support kpi.Support
		report  anomaly.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, support = kpi.Compute(txns, req.PeriodStart, req.PeriodEnd, kpi.Config{
			FixedChargeCategories: table.FixedChargeCategories,
		})
		return nil
	})
	g.Go(func() error {
		var err error
		report, err = anomaly.Detect(gctx, txns, req.PeriodStart, req.PeriodEnd, req.Anomaly)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("anomaly detection: %w", err)
	}

	assessment := confidence.Evaluate(snap, support, confidence.DefaultThresholds())
	pillars := score.ComputePillars(snap, report, table)
	result := score.Aggregate(pillars, assessment.Overall, fingerprint, time.Now().UTC())
	result.Actions = action.Prioritize(pillars, snap, table, e.estimate)

	log.WithFields(logrus.Fields{
		"overall":    result.Overall,
		"label":      result.Label,
		"confidence": result.Confidence,
		"anomalies":  len(report.Records),
	}).Info("score computed")

	return result, nil
}

// cleanTransactions drops malformed records (missing required fields,
// non-positive amounts) and logs each skip.
func (e *Engine) cleanTransactions(req ScoreRequest) []models.Transaction {
	valid := make([]models.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		if err := e.validate.Struct(t); err != nil {
			e.log.WithFields(logrus.Fields{
				"component":      "engine",
				"company_id":     req.CompanyID,
				"transaction_id": t.ID,
			}).WithError(err).Warn("skipping malformed transaction")
			continue
		}
		if !t.Amount.IsPositive() {
			e.log.WithFields(logrus.Fields{
				"component":      "engine",
				"company_id":     req.CompanyID,
				"transaction_id": t.ID,
			}).Warn("skipping transaction with non-positive amount")
			continue
		}
		valid = append(valid, t)
	}
	return valid
}
