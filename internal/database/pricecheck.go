package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PriceCheck is one persisted snapshot of a market price lookup.
type PriceCheck struct {
	ID         uuid.UUID `json:"id"`
	Query      string    `json:"query"`
	Average    float64   `json:"average"`
	Median     float64   `json:"median"`
	MinPrice   float64   `json:"min"`
	MaxPrice   float64   `json:"max"`
	SampleSize int       `json:"sample_size"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// PriceCheckRepository persists price-check snapshots.
type PriceCheckRepository struct {
	db *DB
}

func NewPriceCheckRepository(db *DB) *PriceCheckRepository {
	return &PriceCheckRepository{db: db}
}

// Insert stores a snapshot, assigning ID and CreatedAt when unset.
func (r *PriceCheckRepository) Insert(ctx context.Context, check *PriceCheck) error {
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO price_checks
		(id, query, average, median, min_price, max_price, sample_size, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		check.ID, check.Query, check.Average, check.Median,
		check.MinPrice, check.MaxPrice, check.SampleSize, check.Currency, check.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price check: %w", err)
	}

	return nil
}

// ListByQuery returns the newest snapshots recorded for a query.
func (r *PriceCheckRepository) ListByQuery(ctx context.Context, searchQuery string, limit int) ([]*PriceCheck, error) {
	query := `
		SELECT id, query, average, median, min_price, max_price, sample_size, currency, created_at
		FROM price_checks
		WHERE query = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, searchQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price checks: %w", err)
	}
	defer rows.Close()

	return scanPriceChecks(rows)
}

// ListRecent returns the newest snapshots across all queries.
func (r *PriceCheckRepository) ListRecent(ctx context.Context, limit int) ([]*PriceCheck, error) {
	query := `
		SELECT id, query, average, median, min_price, max_price, sample_size, currency, created_at
		FROM price_checks
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price checks: %w", err)
	}
	defer rows.Close()

	return scanPriceChecks(rows)
}

func scanPriceChecks(rows pgx.Rows) ([]*PriceCheck, error) {
	var checks []*PriceCheck
	for rows.Next() {
		check := &PriceCheck{}
		err := rows.Scan(
			&check.ID, &check.Query, &check.Average, &check.Median,
			&check.MinPrice, &check.MaxPrice, &check.SampleSize,
			&check.Currency, &check.CreatedAt,
		)
		if err != nil {
			continue
		}
		checks = append(checks, check)
	}

	return checks, nil
}
