package allocation

import (
	"sort"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// RankPartners возвращает активных кандидатов в порядке справедливой ротации:
// сначала партнёры, ещё не получавшие аллокаций, затем по возрастанию времени
// последней аллокации. Равные по курсору ранжируются по убыванию остатка,
// дальше по идентификатору партнёра. Чистая функция: без ввода-вывода, вход
// не изменяется, пустой вход даёт пустой результат.
//
// Справедливость носит рекомендательный характер: снимок может устареть к
// моменту фиксации, от двойного списания защищает условная запись, не ранжирование.
func RankPartners(stocks []domain.PartnerStock) []domain.PartnerStock {
	ranked := make([]domain.PartnerStock, 0, len(stocks))
	for _, candidate := range stocks {
		if candidate.Partner.Active {
			ranked = append(ranked, candidate)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		return lessCandidate(ranked[i], ranked[j])
	})

	return ranked
}

// lessCandidate задаёт порядок кандидатов: курсор ротации, остаток, идентификатор.
func lessCandidate(a, b domain.PartnerStock) bool {
	aNever := a.Partner.NeverAllocated()
	bNever := b.Partner.NeverAllocated()

	switch {
	case aNever != bNever:
		return aNever
	case !aNever && !a.Partner.LastAllocatedAt.Equal(b.Partner.LastAllocatedAt):
		return a.Partner.LastAllocatedAt.Before(b.Partner.LastAllocatedAt)
	case a.Record.RemainingQuantity != b.Record.RemainingQuantity:
		return a.Record.RemainingQuantity > b.Record.RemainingQuantity
	default:
		return a.Partner.ID < b.Partner.ID
	}
}
