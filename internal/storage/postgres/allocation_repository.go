package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type allocationRepository struct {
	db *sql.DB
}

// NewAllocationRepository создаёт PostgreSQL-реализацию AllocationRepository.
func NewAllocationRepository(store *Store) domain.AllocationRepository {
	return &allocationRepository{db: store.DB()}
}

// ListByOrder возвращает записи аллокации заказа в порядке строк заказа.
func (r *allocationRepository) ListByOrder(orderID string) ([]domain.AllocationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.order_id, a.order_line_id, a.partner_id, a.quantity, a.allocated_at
		FROM allocation_records a
		JOIN order_lines l ON l.id = a.order_line_id
		WHERE a.order_id = $1
		ORDER BY l.created_at ASC, l.id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list allocation records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AllocationRecord, 0)
	for rows.Next() {
		var record domain.AllocationRecord
		if err := rows.Scan(
			&record.ID, &record.OrderID, &record.OrderLineID,
			&record.PartnerID, &record.Quantity, &record.AllocatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan allocation record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation records: %w", err)
	}

	return records, nil
}

var _ domain.AllocationRepository = (*allocationRepository)(nil)
