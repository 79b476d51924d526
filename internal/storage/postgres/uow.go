package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// unitOfWork фиксирует аллокацию одной транзакцией PostgreSQL: условный
// декремент запаса, записи решения, курсор ротации и владельца заказа.
// Откат любой части откатывает всё.
type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork возвращает PostgreSQL unit of work аллокации.
func NewUnitOfWork(store *Store) domain.AllocationUnitOfWork {
	return &unitOfWork{db: store.DB()}
}

// Commit применяет атомарную единицу аллокации. Проигранная CAS-гонка
// откатывает транзакцию и возвращает ErrStockVersionConflict.
func (u *unitOfWork) Commit(commit domain.AllocationCommit) (domain.InventoryRecord, error) {
	if commit.Quantity <= 0 {
		return domain.InventoryRecord{}, domain.ErrInvalidQuantity
	}

	allocatedAt := commit.AllocatedAt
	if allocatedAt.IsZero() {
		allocatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := decrementRemainingTx(ctx, tx, commit.RecordID, commit.Quantity, commit.ExpectedVersion, allocatedAt)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	if err = claimOrderTx(ctx, tx, commit.OrderID, commit.PartnerID, allocatedAt); err != nil {
		return domain.InventoryRecord{}, err
	}

	if err = advancePartnerCursorTx(ctx, tx, commit.PartnerID, allocatedAt); err != nil {
		return domain.InventoryRecord{}, err
	}

	for _, rec := range commit.Records {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO allocation_records (
				id, order_id, order_line_id, partner_id, quantity, allocated_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			rec.ID, rec.OrderID, rec.OrderLineID, rec.PartnerID, rec.Quantity, rec.AllocatedAt,
		); err != nil {
			return domain.InventoryRecord{}, fmt.Errorf("insert allocation record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("commit allocation: %w", err)
	}

	return record, nil
}

// claimOrderTx закрепляет заказ за партнёром, если заказ ещё никому не
// принадлежит. Нулевое число затронутых строк различает отсутствие заказа
// и уже состоявшуюся аллокацию.
func claimOrderTx(ctx context.Context, tx *sql.Tx, orderID, partnerID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET fulfillment_partner_id = $2,
		    updated_at = $3
		WHERE id = $1
		  AND fulfillment_partner_id IS NULL
	`, orderID, partnerID, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrPartnerNotFound
		}
		return fmt.Errorf("claim order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order claim: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var owner sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT fulfillment_partner_id FROM orders WHERE id = $1`, orderID,
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("classify failed order claim: %w", err)
	}

	return fmt.Errorf("order %s owned by partner %s: %w",
		orderID, owner.String, domain.ErrOrderAlreadyAllocated)
}

// advancePartnerCursorTx сдвигает курсор ротации партнёра на момент аллокации.
func advancePartnerCursorTx(ctx context.Context, tx *sql.Tx, partnerID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE partners
		SET last_allocated_at = $2,
		    updated_at = $2
		WHERE id = $1
	`, partnerID, now)
	if err != nil {
		return fmt.Errorf("advance partner cursor: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for partner cursor: %w", err)
	}
	if affected == 0 {
		return domain.ErrPartnerNotFound
	}

	return nil
}

var _ domain.AllocationUnitOfWork = (*unitOfWork)(nil)
