package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository defines persistence operations for procurement records.
type Repository interface {
	Create(ctx context.Context, item Item) (int64, error)
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// Create inserts a procurement record.
func (r *PGRepository) Create(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO procurement_items (name, type, supplier, quantity, unit_price, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		item.Name, item.Type, item.Supplier, item.Quantity, item.UnitPrice, item.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("procurement: create: %w", err)
	}
	return id, nil
}

// Get fetches one record.
func (r *PGRepository) Get(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, supplier, quantity, unit_price, created_by, created_at
		FROM procurement_items WHERE id = $1`, id).Scan(
		&item.ID, &item.Name, &item.Type, &item.Supplier,
		&item.Quantity, &item.UnitPrice, &item.CreatedBy, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, fmt.Errorf("procurement: get: %w", err)
	}
	return item, nil
}

// List applies the optional type, name and created-range filters and returns
// one page plus the total row count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	from, until := rangeBounds(filter)

	const where = `
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		  AND created_at >= $3 AND created_at < $4`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM procurement_items`+where,
		filter.Type, filter.Name, from, until).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("procurement: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, supplier, quantity, unit_price, created_by, created_at
		FROM procurement_items`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6`,
		filter.Type, filter.Name, from, until, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("procurement: list: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Type, &item.Supplier,
			&item.Quantity, &item.UnitPrice, &item.CreatedBy, &item.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("procurement: scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("procurement: list: %w", err)
	}
	return items, total, nil
}

func rangeBounds(filter ListFilter) (time.Time, time.Time) {
	from := filter.CreatedFrom
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	until := filter.CreatedUntil
	if until.IsZero() {
		until = time.Now().AddDate(100, 0, 0)
	}
	return from, until
}
