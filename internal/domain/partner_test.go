package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func TestPartnerValidate(t *testing.T) {
	partner := domain.Partner{
		ID:     "partner-1",
		Name:   "Северный склад",
		Active: true,
	}
	if errs := partner.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	partner.ID = ""
	partner.Name = ""
	if errs := partner.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", errs)
	}
}

func TestPartnerNeverAllocated(t *testing.T) {
	partner := domain.Partner{ID: "partner-1", Name: "p"}
	if !partner.NeverAllocated() {
		t.Fatal("partner with zero cursor must report never allocated")
	}

	partner.LastAllocatedAt = time.Now().UTC()
	if partner.NeverAllocated() {
		t.Fatal("partner with cursor must not report never allocated")
	}
}
