package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// partnerRepositoryInMemory — простая in-memory реализация PartnerRepository
// поверх общего Store.
type partnerRepositoryInMemory struct {
	store *Store
}

// NewPartnerRepository возвращает in-memory репозиторий партнёров.
func NewPartnerRepository(store *Store) domain.PartnerRepository {
	return &partnerRepositoryInMemory{store: store}
}

// Create сохраняет нового партнёра, если ID ещё не занят.
func (r *partnerRepositoryInMemory) Create(partner domain.Partner) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if partner.ID == "" {
		return domain.ErrPartnerIDRequired
	}
	if _, exists := r.store.partners[partner.ID]; exists {
		return fmt.Errorf("partner %s: %w", partner.ID, domain.ErrDuplicateRecord)
	}
	r.store.partners[partner.ID] = partner
	return nil
}

// Get возвращает партнёра или ErrPartnerNotFound, если его нет.
func (r *partnerRepositoryInMemory) Get(id string) (domain.Partner, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	partner, ok := r.store.partners[id]
	if !ok {
		return domain.Partner{}, domain.ErrPartnerNotFound
	}
	return partner, nil
}

// SetActive включает или выключает партнёра в аллокации.
// Записи запаса выключенного партнёра сохраняются.
func (r *partnerRepositoryInMemory) SetActive(id string, active bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	partner, ok := r.store.partners[id]
	if !ok {
		return domain.ErrPartnerNotFound
	}
	partner.Active = active
	partner.UpdatedAt = time.Now().UTC()
	r.store.partners[id] = partner
	return nil
}

// List возвращает всех партнёров, отсортированных по ID.
func (r *partnerRepositoryInMemory) List() ([]domain.Partner, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Partner, 0, len(r.store.partners))
	for _, partner := range r.store.partners {
		result = append(result, partner)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ domain.PartnerRepository = (*partnerRepositoryInMemory)(nil)
