package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Create(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if record.ID == "" {
		return domain.ErrInventoryIDRequired
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partner_inventory (
			id, partner_id, product_id, allocated_quantity, remaining_quantity,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		record.ID, record.PartnerID, record.ProductID, record.AllocatedQuantity,
		record.RemainingQuantity, record.Version, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inventory %s: %w", record.ID, domain.ErrDuplicateRecord)
		}
		if isForeignKeyViolation(err) {
			return domain.ErrPartnerNotFound
		}
		return fmt.Errorf("insert inventory record: %w", err)
	}

	return nil
}

func (r *inventoryRepository) Get(id string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := scanInventoryRecord(r.db.QueryRowContext(ctx, `
		SELECT id, partner_id, product_id, allocated_quantity, remaining_quantity,
		       version, created_at, updated_at
		FROM partner_inventory
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory record: %w", err)
	}

	return record, nil
}

// SnapshotByProduct возвращает снимок "партнёр + запись" по товару, включая
// записи неактивных партнёров, в порядке ID партнёра.
func (r *inventoryRepository) SnapshotByProduct(productID string) ([]domain.PartnerStock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.email, p.region, p.active, p.last_allocated_at,
		       p.created_at, p.updated_at,
		       i.id, i.partner_id, i.product_id, i.allocated_quantity,
		       i.remaining_quantity, i.version, i.created_at, i.updated_at
		FROM partner_inventory i
		JOIN partners p ON p.id = i.partner_id
		WHERE i.product_id = $1
		ORDER BY p.id ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("snapshot inventory by product: %w", err)
	}
	defer rows.Close()

	result := make([]domain.PartnerStock, 0)
	for rows.Next() {
		var (
			stock           domain.PartnerStock
			lastAllocatedAt sql.NullTime
		)
		if err := rows.Scan(
			&stock.Partner.ID, &stock.Partner.Name, &stock.Partner.Email,
			&stock.Partner.Region, &stock.Partner.Active, &lastAllocatedAt,
			&stock.Partner.CreatedAt, &stock.Partner.UpdatedAt,
			&stock.Record.ID, &stock.Record.PartnerID, &stock.Record.ProductID,
			&stock.Record.AllocatedQuantity, &stock.Record.RemainingQuantity,
			&stock.Record.Version, &stock.Record.CreatedAt, &stock.Record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan partner stock row: %w", err)
		}
		if lastAllocatedAt.Valid {
			stock.Partner.LastAllocatedAt = lastAllocatedAt.Time.UTC()
		}
		result = append(result, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partner stock rows: %w", err)
	}

	return result, nil
}

// TotalAvailableByProduct суммирует остаток по всем записям товара,
// включая записи неактивных партнёров.
func (r *inventoryRepository) TotalAvailableByProduct(productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var total int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(remaining_quantity), 0)
		FROM partner_inventory
		WHERE product_id = $1
	`, productID).Scan(&total); err != nil {
		return 0, fmt.Errorf("total available by product: %w", err)
	}

	return total, nil
}

// DecrementRemaining выполняет условный декремент: остаток уменьшается и
// версия растёт на 1 только если версия строки равна ожидаемой.
func (r *inventoryRepository) DecrementRemaining(id string, qty, version int64) (domain.InventoryRecord, error) {
	if qty <= 0 {
		return domain.InventoryRecord{}, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := decrementRemainingTx(ctx, tx, id, qty, version, time.Now().UTC())
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("commit decrement: %w", err)
	}

	return record, nil
}

// decrementRemainingTx — условный декремент внутри переданной транзакции.
// Используется и репозиторием, и unit of work аллокации.
func decrementRemainingTx(ctx context.Context, tx *sql.Tx, id string, qty, version int64, now time.Time) (domain.InventoryRecord, error) {
	record, err := scanInventoryRecord(tx.QueryRowContext(ctx, `
		UPDATE partner_inventory
		SET remaining_quantity = remaining_quantity - $2,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1
		  AND version = $3
		  AND remaining_quantity >= $2
		RETURNING id, partner_id, product_id, allocated_quantity, remaining_quantity,
		          version, created_at, updated_at
	`, id, qty, version, now))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryRecord{}, fmt.Errorf("conditional decrement: %w", err)
	}

	// Декремент не прошёл: различаем отсутствие записи, проигранную гонку
	// и нехватку остатка по текущему состоянию строки.
	var (
		actualVersion int64
		remaining     int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, remaining_quantity
		FROM partner_inventory
		WHERE id = $1
	`, id).Scan(&actualVersion, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("classify failed decrement: %w", err)
	}

	if actualVersion != version {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: expected version %d, actual %d: %w",
			id, version, actualVersion, domain.ErrStockVersionConflict)
	}
	return domain.InventoryRecord{}, fmt.Errorf("inventory %s holds %d, requested %d: %w",
		id, remaining, qty, domain.ErrInsufficientStock)
}

// AdjustRemaining перезаписывает остаток без проверки версии и атомарно
// добавляет запись аудита. Версию не меняет.
func (r *inventoryRepository) AdjustRemaining(id string, newQty int64, actorID, reason string) (domain.AdjustmentEntry, error) {
	if actorID == "" {
		return domain.AdjustmentEntry{}, domain.ErrActorRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AdjustmentEntry{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		oldQty    int64
		allocated int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT remaining_quantity, allocated_quantity
		FROM partner_inventory
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&oldQty, &allocated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AdjustmentEntry{}, domain.ErrInventoryNotFound
		}
		return domain.AdjustmentEntry{}, fmt.Errorf("lock inventory record: %w", err)
	}

	if newQty < 0 || newQty > allocated {
		err = fmt.Errorf("inventory %s: new quantity %d out of [0, %d]: %w",
			id, newQty, allocated, domain.ErrInvalidQuantity)
		return domain.AdjustmentEntry{}, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `
		UPDATE partner_inventory
		SET remaining_quantity = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, newQty, now); err != nil {
		return domain.AdjustmentEntry{}, fmt.Errorf("overwrite remaining quantity: %w", err)
	}

	entry := domain.AdjustmentEntry{
		ID:                uuid.NewString(),
		InventoryRecordID: id,
		OldQuantity:       oldQty,
		NewQuantity:       newQty,
		Reason:            reason,
		ActorID:           actorID,
		CreatedAt:         now,
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (
			id, inventory_record_id, old_quantity, new_quantity, reason, actor_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		entry.ID, entry.InventoryRecordID, entry.OldQuantity, entry.NewQuantity,
		entry.Reason, entry.ActorID, entry.CreatedAt,
	); err != nil {
		return domain.AdjustmentEntry{}, fmt.Errorf("insert adjustment entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.AdjustmentEntry{}, fmt.Errorf("commit adjustment: %w", err)
	}

	return entry, nil
}

// AdjustmentHistory возвращает последние limit записей аудита, новые первыми.
func (r *inventoryRepository) AdjustmentHistory(id string, limit int) ([]domain.AdjustmentEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	var exists string
	if err := r.db.QueryRowContext(ctx,
		`SELECT id FROM partner_inventory WHERE id = $1`, id,
	).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, fmt.Errorf("check inventory exists: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, inventory_record_id, old_quantity, new_quantity, reason, actor_id, created_at
		FROM inventory_adjustments
		WHERE inventory_record_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list adjustment history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AdjustmentEntry, 0, limit)
	for rows.Next() {
		var entry domain.AdjustmentEntry
		if err := rows.Scan(
			&entry.ID, &entry.InventoryRecordID, &entry.OldQuantity,
			&entry.NewQuantity, &entry.Reason, &entry.ActorID, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan adjustment entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustment entries: %w", err)
	}

	return entries, nil
}

func scanInventoryRecord(row rowScanner) (domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	if err := row.Scan(
		&record.ID, &record.PartnerID, &record.ProductID, &record.AllocatedQuantity,
		&record.RemainingQuantity, &record.Version, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return domain.InventoryRecord{}, err
	}
	return record, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
