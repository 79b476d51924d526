package allocation

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func candidate(partnerID string, active bool, lastAllocatedAt time.Time, remaining int64) domain.PartnerStock {
	return domain.PartnerStock{
		Partner: domain.Partner{
			ID:              partnerID,
			Name:            "Partner " + partnerID,
			Active:          active,
			LastAllocatedAt: lastAllocatedAt,
		},
		Record: domain.InventoryRecord{
			ID:                "inv-" + partnerID,
			PartnerID:         partnerID,
			ProductID:         "product-1",
			AllocatedQuantity: remaining,
			RemainingQuantity: remaining,
			Version:           1,
		},
	}
}

func rankedIDs(stocks []domain.PartnerStock) []string {
	ids := make([]string, 0, len(stocks))
	for _, s := range stocks {
		ids = append(ids, s.Partner.ID)
	}
	return ids
}

func TestRankPartners_Order(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input []domain.PartnerStock
		want  []string
	}{
		{
			name: "never allocated go first",
			input: []domain.PartnerStock{
				candidate("partner-1", true, base, 10),
				candidate("partner-2", true, time.Time{}, 10),
			},
			want: []string{"partner-2", "partner-1"},
		},
		{
			name: "oldest cursor wins",
			input: []domain.PartnerStock{
				candidate("partner-1", true, base.Add(time.Hour), 10),
				candidate("partner-2", true, base, 10),
				candidate("partner-3", true, base.Add(2*time.Hour), 10),
			},
			want: []string{"partner-2", "partner-1", "partner-3"},
		},
		{
			name: "equal cursor breaks by remaining desc",
			input: []domain.PartnerStock{
				candidate("partner-1", true, base, 5),
				candidate("partner-2", true, base, 20),
			},
			want: []string{"partner-2", "partner-1"},
		},
		{
			name: "full tie breaks by partner id",
			input: []domain.PartnerStock{
				candidate("partner-2", true, base, 10),
				candidate("partner-1", true, base, 10),
			},
			want: []string{"partner-1", "partner-2"},
		},
		{
			name: "inactive partners are dropped",
			input: []domain.PartnerStock{
				candidate("partner-1", false, time.Time{}, 100),
				candidate("partner-2", true, base, 10),
			},
			want: []string{"partner-2"},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rankedIDs(RankPartners(tc.input))
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestRankPartners_DoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []domain.PartnerStock{
		candidate("partner-3", true, base.Add(time.Hour), 10),
		candidate("partner-1", true, base, 10),
		candidate("partner-2", false, base, 10),
	}

	RankPartners(input)

	for i, want := range []string{"partner-3", "partner-1", "partner-2"} {
		if input[i].Partner.ID != want {
			t.Fatalf("input reordered: expected %s at %d, got %s", want, i, input[i].Partner.ID)
		}
	}
}

func TestRankPartners_MixedTiers(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []domain.PartnerStock{
		candidate("partner-1", true, base.Add(time.Hour), 10),
		candidate("partner-2", true, time.Time{}, 3),
		candidate("partner-3", true, time.Time{}, 30),
		candidate("partner-4", false, time.Time{}, 100),
		candidate("partner-5", true, base, 10),
	}

	got := rankedIDs(RankPartners(input))
	want := []string{"partner-3", "partner-2", "partner-5", "partner-1"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
