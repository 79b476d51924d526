package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type partnerRepository struct {
	db *sql.DB
}

// NewPartnerRepository создаёт PostgreSQL-реализацию PartnerRepository.
func NewPartnerRepository(store *Store) domain.PartnerRepository {
	return &partnerRepository{db: store.DB()}
}

func (r *partnerRepository) Create(partner domain.Partner) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partners (
			id, name, email, region, active, last_allocated_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		partner.ID, partner.Name, partner.Email, partner.Region, partner.Active,
		nullableTime(partner.LastAllocatedAt), partner.CreatedAt, partner.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRecord
		}
		return fmt.Errorf("insert partner: %w", err)
	}

	return nil
}

func (r *partnerRepository) Get(id string) (domain.Partner, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	partner, err := scanPartner(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, region, active, last_allocated_at, created_at, updated_at
		FROM partners
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Partner{}, domain.ErrPartnerNotFound
		}
		return domain.Partner{}, fmt.Errorf("select partner: %w", err)
	}

	return partner, nil
}

func (r *partnerRepository) SetActive(id string, active bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE partners
		SET active = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update partner active: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPartnerNotFound
	}

	return nil
}

func (r *partnerRepository) List() ([]domain.Partner, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, region, active, last_allocated_at, created_at, updated_at
		FROM partners
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	partners := make([]domain.Partner, 0)
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner row: %w", err)
		}
		partners = append(partners, partner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partner rows: %w", err)
	}

	return partners, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPartner читает строку партнёра; NULL last_allocated_at становится
// нулевым временем ("ещё не получал заказов").
func scanPartner(row rowScanner) (domain.Partner, error) {
	var (
		partner         domain.Partner
		lastAllocatedAt sql.NullTime
	)

	if err := row.Scan(
		&partner.ID, &partner.Name, &partner.Email, &partner.Region, &partner.Active,
		&lastAllocatedAt, &partner.CreatedAt, &partner.UpdatedAt,
	); err != nil {
		return domain.Partner{}, err
	}
	if lastAllocatedAt.Valid {
		partner.LastAllocatedAt = lastAllocatedAt.Time.UTC()
	}

	return partner, nil
}

// nullableTime переводит нулевое время в NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ domain.PartnerRepository = (*partnerRepository)(nil)
