package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func makeRecord() domain.InventoryRecord {
	now := time.Now().UTC()
	return domain.InventoryRecord{
		ID:                "inv-1",
		PartnerID:         "partner-1",
		ProductID:         "product-1",
		AllocatedQuantity: 100,
		RemainingQuantity: 40,
		Version:           3,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestInventoryRecordValidateInvariants_Ok(t *testing.T) {
	record := makeRecord()
	if errs := record.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	// Исчерпанный запас остаётся валидной записью.
	record.RemainingQuantity = 0
	if errs := record.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected depleted record to stay valid, got %v", errs)
	}
}

func TestInventoryRecordValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *domain.InventoryRecord)
	}{
		{
			name: "no partner",
			mut: func(r *domain.InventoryRecord) {
				r.PartnerID = ""
			},
		},
		{
			name: "no product",
			mut: func(r *domain.InventoryRecord) {
				r.ProductID = ""
			},
		},
		{
			name: "negative allocated",
			mut: func(r *domain.InventoryRecord) {
				r.AllocatedQuantity = -1
			},
		},
		{
			name: "negative remaining",
			mut: func(r *domain.InventoryRecord) {
				r.RemainingQuantity = -1
			},
		},
		{
			name: "remaining above allocated",
			mut: func(r *domain.InventoryRecord) {
				r.RemainingQuantity = r.AllocatedQuantity + 1
			},
		},
		{
			name: "negative version",
			mut: func(r *domain.InventoryRecord) {
				r.Version = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := makeRecord()
			tc.mut(&record)

			if len(record.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}
