package domain

import "time"

// OrderStatus описывает состояние заказа в вышестоящем order-сервисе.
// Движок аллокации статус не меняет; поле нужно для сидирования и аудита.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена, заказ готов к аллокации.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан партнёру на доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCanceled — заказ отменён.
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderLine представляет одну строку заказа.
type OrderLine struct {
	// ID строки нужен для связи с записью аллокации.
	ID string
	// ProductID — товар строки; все строки заказа ссылаются на один товар.
	ProductID string
	// Quantity — количество единиц товара.
	Quantity int64
	// CreatedAt фиксирует момент добавления строки в заказ.
	CreatedAt time.Time
}

// Order агрегирует входные данные заказа для движка аллокации.
type Order struct {
	ID         string
	Number     string
	CustomerID string
	Status     OrderStatus
	// FulfillmentPartnerID пустой до аллокации; после — партнёр-владелец заказа.
	FulfillmentPartnerID string
	Lines                []OrderLine
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Allocated сообщает, закреплён ли заказ за партнёром.
func (o *Order) Allocated() bool {
	return o.FulfillmentPartnerID != ""
}

// RequiredQuantity суммирует количество по всем строкам заказа.
func (o *Order) RequiredQuantity() int64 {
	var total int64
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}

// ProductID возвращает товар заказа. Заказ обслуживает ровно один товар;
// строки с разными товарами — ошибка входных данных.
func (o *Order) ProductID() (string, error) {
	if len(o.Lines) == 0 {
		return "", ErrOrderLineNotFound
	}

	productID := o.Lines[0].ProductID
	for _, line := range o.Lines[1:] {
		if line.ProductID != productID {
			return "", ErrMixedProductOrder
		}
	}
	return productID, nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	for _, line := range o.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
	}

	return errs
}
