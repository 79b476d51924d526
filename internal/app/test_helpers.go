package app

import (
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// newTestOrder создаёт тестовый заказ для использования в тестах.
func newTestOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "test-order-1",
		Number:     "FMS-TEST-1",
		CustomerID: "test-customer-1",
		Status:     domain.OrderStatusPaid,
		Lines: []domain.OrderLine{
			{
				ID:        "line-1",
				ProductID: "product-1",
				Quantity:  1,
				CreatedAt: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
