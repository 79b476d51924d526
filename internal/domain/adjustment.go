package domain

import "time"

// AdjustmentEntry — строка аудита ручной корректировки остатка.
// Фиксирует старое и новое значение, оператора и необязательную причину.
type AdjustmentEntry struct {
	ID                string
	InventoryRecordID string
	OldQuantity       int64
	NewQuantity       int64
	// Reason опциональна; пустая строка допустима.
	Reason    string
	ActorID   string
	CreatedAt time.Time
}

// Validate проверяет, корректно ли заполнена запись корректировки.
func (e *AdjustmentEntry) Validate() []error {
	var errs []error

	if e.InventoryRecordID == "" {
		errs = append(errs, ErrInventoryIDRequired)
	}
	if e.ActorID == "" {
		errs = append(errs, ErrActorRequired)
	}
	if e.NewQuantity < 0 {
		errs = append(errs, ErrInvalidQuantity)
	}

	return errs
}
