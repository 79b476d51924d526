package domain

import "time"

// InventoryRecord — запас, который партнёр держит под один товар.
// Пара (PartnerID, ProductID) уникальна. Записи никогда не удаляются:
// исчерпанный запас остаётся строкой с нулевым остатком.
type InventoryRecord struct {
	ID        string
	PartnerID string
	ProductID string
	// AllocatedQuantity — объём, выделенный партнёру изначально.
	AllocatedQuantity int64
	// RemainingQuantity — текущий остаток; 0 <= remaining <= allocated.
	RemainingQuantity int64
	// Version растёт ровно на 1 при каждом успешном декременте.
	// Неудачные попытки и корректировки версию не трогают.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет инварианты записи запаса и возвращает список замечаний.
func (r *InventoryRecord) ValidateInvariants() []error {
	var errs []error

	if r.PartnerID == "" {
		errs = append(errs, ErrPartnerIDRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.AllocatedQuantity < 0 {
		errs = append(errs, ErrAllocatedNegative)
	}
	if r.RemainingQuantity < 0 {
		errs = append(errs, ErrRemainingNegative)
	}
	if r.RemainingQuantity > r.AllocatedQuantity {
		errs = append(errs, ErrRemainingExceedsAllocated)
	}
	if r.Version < 0 {
		errs = append(errs, ErrVersionNegative)
	}

	return errs
}

// PartnerStock — снимок "партнёр + его запись запаса" по одному товару.
// Вход политики ранжирования; снимок не отражает параллельные изменения.
type PartnerStock struct {
	Partner Partner
	Record  InventoryRecord
}
