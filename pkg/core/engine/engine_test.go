package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/core/confidence"
	"finsight/pkg/core/score"
	"finsight/pkg/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(id, client, category, invoiced string, amount float64, dir models.Direction, paidOn string) models.Transaction {
	d := date(invoiced)
	t := models.Transaction{
		ID:          id,
		ClientID:    client,
		Category:    category,
		InvoiceDate: d,
		DueDate:     d.AddDate(0, 0, 30),
		Amount:      decimal.NewFromFloat(amount),
		Direction:   dir,
	}
	if paidOn != "" {
		p := date(paidOn)
		t.PaymentDate = &p
	}
	return t
}

func validRequest() ScoreRequest {
	return ScoreRequest{
		CompanyID:   "acme",
		PeriodStart: date("2025-01-01"),
		PeriodEnd:   date("2025-04-01"),
		Transactions: []models.Transaction{
			record("p1", "c1", "sales", "2024-11-10", 8000, models.DirectionIn, "2024-11-20"),
			record("p2", "s1", "payroll", "2024-11-15", 5000, models.DirectionOut, "2024-11-15"),
			record("t1", "c1", "sales", "2025-01-10", 4000, models.DirectionIn, "2025-02-01"),
			record("t2", "c2", "sales", "2025-02-05", 3000, models.DirectionIn, "2025-02-20"),
			record("t3", "c3", "consulting", "2025-03-01", 5000, models.DirectionIn, ""),
			record("t4", "s1", "rent", "2025-01-20", 2000, models.DirectionOut, "2025-01-20"),
			record("t5", "s2", "marketing", "2025-02-15", 1500, models.DirectionOut, "2025-02-15"),
			record("t6", "s1", "payroll", "2025-03-10", 1000, models.DirectionOut, "2025-03-10"),
		},
	}
}

func TestScoreEmptyDataset(t *testing.T) {
	e := New(quietLogger())
	req := validRequest()
	req.Transactions = nil

	_, err := e.Score(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScoreAllRecordsMalformed(t *testing.T) {
	e := New(quietLogger())
	req := validRequest()
	req.Transactions = []models.Transaction{
		{ID: "bad1", Amount: decimal.NewFromInt(100)},
		{ID: "bad2", Amount: decimal.NewFromInt(-5)},
	}

	_, err := e.Score(context.Background(), req)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScoreInvalidPeriod(t *testing.T) {
	e := New(quietLogger())
	req := validRequest()
	req.PeriodEnd = req.PeriodStart.AddDate(0, -1, 0)

	_, err := e.Score(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScoreResultShape(t *testing.T) {
	e := New(quietLogger())
	req := validRequest()

	res, err := e.Score(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.GreaterOrEqual(t, res.Overall, 0.0)
	assert.LessOrEqual(t, res.Overall, 100.0)
	assert.Equal(t, score.Label(res.Overall), res.Label)
	assert.Contains(t, []confidence.Level{confidence.High, confidence.Medium, confidence.Low}, res.Confidence)
	assert.Equal(t, Fingerprint(req), res.DatasetFingerprint)
	assert.False(t, res.ComputedAt.IsZero())
	assert.LessOrEqual(t, len(res.Actions), 3)

	require.Len(t, res.Pillars, 4)
	order := []score.PillarName{score.PillarCash, score.PillarMargin, score.PillarResilience, score.PillarRisk}
	var total float64
	for i, p := range res.Pillars {
		assert.Equal(t, order[i], p.Name)
		assert.GreaterOrEqual(t, p.Points, 0.0)
		assert.LessOrEqual(t, p.Points, 25.0)
		var sum float64
		for _, s := range p.SubBreakdown {
			sum += s.PointsAwarded
			assert.LessOrEqual(t, s.PointsAwarded, s.MaxPoints, s.Metric)
		}
		assert.InDelta(t, p.Points, sum, 1e-9, "breakdown sum for %s", p.Name)
		total += p.Points
	}
	assert.InDelta(t, res.Overall, total, 1e-9)
}

func TestScoreDeterministic(t *testing.T) {
	e := New(quietLogger())
	req := validRequest()

	first, err := e.Score(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Overall, second.Overall)
	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, first.Pillars, second.Pillars)
	assert.Equal(t, first.Actions, second.Actions)
	assert.Equal(t, first.DatasetFingerprint, second.DatasetFingerprint)
}

func TestScoreSkipsMalformedRecords(t *testing.T) {
	e := New(quietLogger())
	clean := validRequest()
	dirty := validRequest()
	dirty.Transactions = append(dirty.Transactions,
		models.Transaction{ID: "no-client", Category: "sales", InvoiceDate: date("2025-02-01"), DueDate: date("2025-03-01"), Amount: decimal.NewFromInt(100), Direction: models.DirectionIn},
		record("zero", "c9", "sales", "2025-02-02", 0, models.DirectionIn, ""),
	)

	want, err := e.Score(context.Background(), clean)
	require.NoError(t, err)
	got, err := e.Score(context.Background(), dirty)
	require.NoError(t, err)

	assert.Equal(t, want.Overall, got.Overall)
	assert.Equal(t, want.Pillars, got.Pillars)
}

func TestNewWithNilLogger(t *testing.T) {
	e := New(nil)
	require.NotNil(t, e)

	_, err := e.Score(context.Background(), validRequest())
	assert.NoError(t, err)
}
