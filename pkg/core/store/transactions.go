package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"finsight/pkg/models"
)

// TransactionStore reads the validated, normalized transaction history for
// one company. The engine treats it as an external collaborator: calls
// should carry a caller-side timeout.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore wraps an existing pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// ListTransactions returns every transaction of the company invoiced up to
// the given date, oldest first. Scoring wants the full history: cash on
// hand and the growth baselines both look before the analysis period.
func (s *TransactionStore) ListTransactions(ctx context.Context, companyID string, upTo time.Time) ([]models.Transaction, error) {
	query := `
		SELECT id, client_id, category, invoice_date, due_date, payment_date, amount, direction
		FROM transactions
		WHERE company_id = $1 AND invoice_date < $2
		ORDER BY invoice_date, id
	`
	rows, err := s.pool.Query(ctx, query, companyID, upTo)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", companyID, err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.ClientID, &t.Category, &t.InvoiceDate, &t.DueDate, &t.PaymentDate, &t.Amount, &t.Direction); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}
