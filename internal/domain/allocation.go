package domain

import "time"

// AllocationRecord — неизменяемая запись решения: строка заказа закреплена
// за партнёром на указанное количество. Создаётся по одной на строку заказа,
// все записи одного заказа указывают на одного партнёра.
type AllocationRecord struct {
	ID          string
	OrderID     string
	OrderLineID string
	PartnerID   string
	Quantity    int64
	AllocatedAt time.Time
}

// Validate проверяет, корректно ли заполнена запись аллокации.
func (a *AllocationRecord) Validate() []error {
	var errs []error

	if a.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if a.PartnerID == "" {
		errs = append(errs, ErrPartnerIDRequired)
	}
	if a.Quantity <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}
