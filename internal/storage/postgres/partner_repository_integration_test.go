package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func TestPartnerRepository_PostgresCreateGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPartnerRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	fresh := samplePartner("partner-a", now)
	veteran := samplePartner("partner-b", now)
	veteran.LastAllocatedAt = now.Add(-time.Hour)

	if err := repo.Create(fresh); err != nil {
		t.Fatalf("create fresh partner: %v", err)
	}
	if err := repo.Create(veteran); err != nil {
		t.Fatalf("create veteran partner: %v", err)
	}

	got, err := repo.Get(fresh.ID)
	if err != nil {
		t.Fatalf("get fresh partner: %v", err)
	}
	if got.Name != fresh.Name || got.Region != fresh.Region || !got.Active {
		t.Fatalf("unexpected partner payload: %+v", got)
	}
	// NULL в колонке курсора читается как нулевое время.
	if !got.NeverAllocated() {
		t.Fatalf("fresh partner must have zero cursor, got %v", got.LastAllocatedAt)
	}

	got, err = repo.Get(veteran.ID)
	if err != nil {
		t.Fatalf("get veteran partner: %v", err)
	}
	if got.NeverAllocated() {
		t.Fatal("veteran partner must keep non-zero cursor")
	}
	if !got.LastAllocatedAt.Equal(veteran.LastAllocatedAt) {
		t.Fatalf("unexpected cursor: got=%v want=%v", got.LastAllocatedAt, veteran.LastAllocatedAt)
	}

	listed, err := repo.List()
	if err != nil {
		t.Fatalf("list partners: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 partners, got %d", len(listed))
	}
	if listed[0].ID != "partner-a" || listed[1].ID != "partner-b" {
		t.Fatalf("expected deterministic order by id, got %s, %s", listed[0].ID, listed[1].ID)
	}
}

func TestPartnerRepository_PostgresSetActive(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPartnerRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	partner := samplePartner("partner-toggle", now)

	if err := repo.Create(partner); err != nil {
		t.Fatalf("create partner: %v", err)
	}

	if err := repo.SetActive(partner.ID, false); err != nil {
		t.Fatalf("deactivate partner: %v", err)
	}
	got, err := repo.Get(partner.ID)
	if err != nil {
		t.Fatalf("get partner: %v", err)
	}
	if got.Active {
		t.Fatal("partner must be inactive after SetActive(false)")
	}

	if err := repo.SetActive(partner.ID, true); err != nil {
		t.Fatalf("activate partner: %v", err)
	}
	got, err = repo.Get(partner.ID)
	if err != nil {
		t.Fatalf("get partner after activate: %v", err)
	}
	if !got.Active {
		t.Fatal("partner must be active after SetActive(true)")
	}
}

func TestPartnerRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPartnerRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	partner := samplePartner("partner-dup", now)

	if _, err := repo.Get("missing-partner"); !errors.Is(err, domain.ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound, got %v", err)
	}
	if err := repo.SetActive("missing-partner", true); !errors.Is(err, domain.ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound on set active, got %v", err)
	}

	if err := repo.Create(partner); err != nil {
		t.Fatalf("create partner: %v", err)
	}
	if err := repo.Create(partner); !errors.Is(err, domain.ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord on duplicate create, got %v", err)
	}
}

func samplePartner(id string, createdAt time.Time) domain.Partner {
	return domain.Partner{
		ID:        id,
		Name:      "Partner " + id,
		Email:     id + "@fms.example",
		Region:    "eu-central",
		Active:    true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
