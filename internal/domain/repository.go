package domain

// OrderRepository описывает требования к хранилищу заказов.
// Движок читает заказы и сидирует их в тестах; владение заказом
// записывается только через AllocationUnitOfWork.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе со строками. Возвращает ошибку,
	// если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ со строками или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
}

// PartnerRepository описывает требования к хранилищу партнёров.
type PartnerRepository interface {
	// Create сохраняет нового партнёра.
	Create(partner Partner) error
	// Get возвращает партнёра по идентификатору или ErrPartnerNotFound.
	Get(id string) (Partner, error)
	// SetActive включает или выключает партнёра в аллокации.
	SetActive(id string, active bool) error
	// List возвращает всех партнёров в детерминированном порядке.
	List() ([]Partner, error)
}

// InventoryRepository описывает требования к хранилищу записей запаса.
type InventoryRepository interface {
	// Create сохраняет новую запись запаса. Пара (partner_id, product_id) уникальна.
	Create(record InventoryRecord) error
	// Get возвращает запись по идентификатору или ErrInventoryNotFound.
	Get(id string) (InventoryRecord, error)
	// SnapshotByProduct возвращает снимок "партнёр + запись" по товару,
	// включая записи неактивных партнёров, в детерминированном порядке.
	SnapshotByProduct(productID string) ([]PartnerStock, error)
	// TotalAvailableByProduct суммирует остаток по всем записям товара,
	// включая записи неактивных партнёров.
	TotalAvailableByProduct(productID string) (int64, error)
	// DecrementRemaining выполняет условный декремент: остаток уменьшается
	// и версия растёт на 1 только если версия записи равна ожидаемой.
	// Возвращает обновлённую запись, ErrStockVersionConflict при проигранной
	// гонке или ErrInventoryNotFound, если записи нет.
	DecrementRemaining(id string, qty, version int64) (InventoryRecord, error)
	// AdjustRemaining перезаписывает остаток без проверки версии и атомарно
	// добавляет запись аудита. Версию не меняет.
	AdjustRemaining(id string, newQty int64, actorID, reason string) (AdjustmentEntry, error)
	// AdjustmentHistory возвращает последние limit записей аудита, новые первыми.
	AdjustmentHistory(id string, limit int) ([]AdjustmentEntry, error)
}

// AllocationRepository описывает доступ к записям решений аллокации.
// Вставка выполняется только внутри AllocationUnitOfWork.
type AllocationRepository interface {
	// ListByOrder возвращает записи аллокации заказа в порядке строк заказа.
	ListByOrder(orderID string) ([]AllocationRecord, error)
}
