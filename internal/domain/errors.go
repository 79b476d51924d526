package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора партнёра.
	ErrPartnerIDRequired = errors.New("partner_id is required")
	// Ошибка отсутствующего имени партнёра.
	ErrPartnerNameRequired = errors.New("partner name is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего идентификатора записи запаса.
	ErrInventoryIDRequired = errors.New("inventory_record_id is required")
	// Ошибка отсутствующего идентификатора оператора в корректировке.
	ErrActorRequired = errors.New("actor_id is required")
	// Ошибка отсутствия хотя бы одной строки в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве в строке заказа (<= 0).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка отрицательного выделенного запаса.
	ErrAllocatedNegative = errors.New("allocated_quantity must be non-negative")
	// Ошибка отрицательного остатка.
	ErrRemainingNegative = errors.New("remaining_quantity must be non-negative")
	// Ошибка превышения остатком выделенного объёма.
	ErrRemainingExceedsAllocated = errors.New("remaining_quantity exceeds allocated_quantity")
	// Ошибка отрицательной версии записи запаса.
	ErrVersionNegative = errors.New("stock version must be non-negative")

	// ErrDuplicateRecord возвращается при попытке создать запись с занятым
	// идентификатором или занятой парой (partner_id, product_id).
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderLineNotFound возвращается, если у существующего заказа нет строк.
	ErrOrderLineNotFound = errors.New("order lines not found")
	// ErrPartnerNotFound возвращается, если партнёр не найден.
	ErrPartnerNotFound = errors.New("partner not found")
	// ErrInventoryNotFound возвращается, если запись запаса не найдена.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrMixedProductOrder — строки заказа ссылаются на разные товары.
	ErrMixedProductOrder = errors.New("order lines reference different products")
	// ErrOrderAlreadyAllocated — заказ уже закреплён за партнёром.
	ErrOrderAlreadyAllocated = errors.New("order already allocated")
	// ErrInvalidQuantity — недопустимое количество в запросе.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientStock — бизнес-ответ: остатка не хватает на запрошенное количество.
	// Не повторяется: повторное чтение не изменит ответ.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAllPartnersInsufficientStock — ни один партнёр в одиночку не покрывает заказ.
	ErrAllPartnersInsufficientStock = errors.New("no single partner can cover the order")
	// ErrNoActivePartners — нет активных партнёров с записями по товару.
	ErrNoActivePartners = errors.New("no active partners")

	// ErrStockVersionConflict сигнализирует о проигранной CAS-гонке: версия записи
	// изменилась между чтением и условным обновлением. Восстановимая ошибка.
	ErrStockVersionConflict = errors.New("stock version conflict")
	// ErrOptimisticLockFailed — исчерпаны попытки условного обновления.
	ErrOptimisticLockFailed = errors.New("optimistic lock failed after retries")

	// ErrInventoryUpdateFailed — корректировка не зафиксирована; ни количество,
	// ни запись аудита не сохранены.
	ErrInventoryUpdateFailed = errors.New("inventory update failed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Машиночитаемые коды ошибок аллокации и корректировок.
const (
	CodeOrderNotFound                = "ORDER_NOT_FOUND"
	CodeOrderItemNotFound            = "ORDER_ITEM_NOT_FOUND"
	CodePartnerNotFound              = "PARTNER_NOT_FOUND"
	CodeInventoryNotFound            = "INVENTORY_NOT_FOUND"
	CodeMixedProductOrder            = "MIXED_PRODUCT_ORDER"
	CodeOrderAlreadyAllocated        = "ORDER_ALREADY_ALLOCATED"
	CodeInvalidQuantity              = "INVALID_QUANTITY"
	CodeInsufficientStock            = "INSUFFICIENT_STOCK"
	CodeAllPartnersInsufficientStock = "ALL_PARTNERS_INSUFFICIENT_STOCK"
	CodeNoActivePartners             = "NO_ACTIVE_PARTNERS"
	CodeOptimisticLockFailed         = "OPTIMISTIC_LOCK_FAILED"
	CodeInventoryUpdateFailed        = "INVENTORY_UPDATE_FAILED"
	CodeInternal                     = "INTERNAL"
)

// Code переводит ошибку в машиночитаемый код для событий и логов.
// Работает и для обёрнутых через %w ошибок.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOrderNotFound):
		return CodeOrderNotFound
	case errors.Is(err, ErrOrderLineNotFound):
		return CodeOrderItemNotFound
	case errors.Is(err, ErrPartnerNotFound):
		return CodePartnerNotFound
	case errors.Is(err, ErrInventoryNotFound):
		return CodeInventoryNotFound
	case errors.Is(err, ErrMixedProductOrder):
		return CodeMixedProductOrder
	case errors.Is(err, ErrOrderAlreadyAllocated):
		return CodeOrderAlreadyAllocated
	case errors.Is(err, ErrInvalidQuantity):
		return CodeInvalidQuantity
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrAllPartnersInsufficientStock):
		return CodeAllPartnersInsufficientStock
	case errors.Is(err, ErrNoActivePartners):
		return CodeNoActivePartners
	case errors.Is(err, ErrOptimisticLockFailed):
		return CodeOptimisticLockFailed
	case errors.Is(err, ErrInventoryUpdateFailed):
		return CodeInventoryUpdateFailed
	default:
		return CodeInternal
	}
}

// IsStockConflict проверяет, является ли ошибка CAS-конфликтом версии запаса.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockVersionConflict)
}

// IsBusinessFailure отличает терминальные бизнес-отказы аллокации от
// инфраструктурных ошибок: первые не имеет смысла повторять.
func IsBusinessFailure(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrAllPartnersInsufficientStock) ||
		errors.Is(err, ErrNoActivePartners) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderLineNotFound) ||
		errors.Is(err, ErrMixedProductOrder) ||
		errors.Is(err, ErrOrderAlreadyAllocated) ||
		errors.Is(err, ErrInvalidQuantity)
}
