// Package models defines the normalized finance records the scoring engine
// consumes. Records are produced upstream (CSV import, bank sync) and are
// read-only once handed to the engine.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction marks a transaction as money coming in or going out.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Transaction is one normalized invoice or payment record for a company.
// Amounts are always positive; Direction carries the sign.
type Transaction struct {
	ID          string          `json:"id" validate:"required"`
	ClientID    string          `json:"client_id" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	InvoiceDate time.Time       `json:"invoice_date" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction" validate:"required,oneof=in out"`
}

// Paid reports whether the transaction has settled.
func (t Transaction) Paid() bool {
	return t.PaymentDate != nil && !t.PaymentDate.IsZero()
}

// Signed returns the amount with the direction applied (out is negative).
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionOut {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CashDate is the date the money actually moved: payment date when settled,
// invoice date otherwise.
func (t Transaction) CashDate() time.Time {
	if t.Paid() {
		return *t.PaymentDate
	}
	return t.InvoiceDate
}

// Client is a derived aggregate, computed on the fly from transactions
// grouped by client id. It is never persisted by the engine.
type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
