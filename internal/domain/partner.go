package domain

import "time"

// Partner описывает fulfillment-партнёра, исполняющего заказы.
type Partner struct {
	ID     string
	Name   string
	Email  string
	Region string
	// Active — выключенные партнёры не участвуют в аллокации,
	// но их записи запаса сохраняются.
	Active bool
	// LastAllocatedAt — курсор ротации: момент последней успешной аллокации.
	// Нулевое значение означает "ещё не получал заказов" и хранится как NULL.
	LastAllocatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NeverAllocated сообщает, получал ли партнёр хотя бы один заказ.
func (p *Partner) NeverAllocated() bool {
	return p.LastAllocatedAt.IsZero()
}

// Validate проверяет, корректно ли заполнены ключевые поля партнёра.
func (p *Partner) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrPartnerIDRequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrPartnerNameRequired)
	}

	return errs
}
