package adjustment

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

type ledgerFixture struct {
	inventory domain.InventoryRepository
	outbox    domain.OutboxRepository
	ledger    Ledger
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()

	store := memory.NewStore()
	partners := memory.NewPartnerRepository(store)
	inventory := memory.NewInventoryRepository(store)
	outbox := memory.NewOutboxRepository(store)

	now := time.Now().UTC()
	err := partners.Create(domain.Partner{
		ID:        "partner-1",
		Name:      "Partner partner-1",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	err = inventory.Create(domain.InventoryRecord{
		ID:                "inv-1",
		PartnerID:         "partner-1",
		ProductID:         "product-1",
		AllocatedQuantity: 20,
		RemainingQuantity: 12,
		Version:           3,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	return ledgerFixture{
		inventory: inventory,
		outbox:    outbox,
		ledger:    NewLedgerWithoutMetrics(inventory, outbox, log.New().WithField("test", "ledger")),
	}
}

func collectOutbox(t *testing.T, outbox domain.OutboxRepository) []domain.OutboxMessage {
	t.Helper()

	type allPending interface {
		AllPending() []domain.OutboxMessage
	}

	repo, ok := outbox.(allPending)
	if !ok {
		t.Fatalf("outbox repository does not support AllPending")
	}

	return repo.AllPending()
}

func TestLedger_AdjustOverwritesWithoutVersionBump(t *testing.T) {
	fx := newLedgerFixture(t)

	adjusted, err := fx.ledger.Adjust("inv-1", 5, "ops-1", "cycle count")
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if adjusted.OldQuantity() != 12 || adjusted.NewQuantity() != 5 {
		t.Fatalf("unexpected adjusted values: %+v", adjusted.Entry)
	}
	if adjusted.Entry.ID == "" {
		t.Fatal("expected audit entry id")
	}

	record, err := fx.inventory.Get("inv-1")
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if record.RemainingQuantity != 5 {
		t.Fatalf("expected remaining 5, got %d", record.RemainingQuantity)
	}
	// Перезапись идёт мимо optimistic locking.
	if record.Version != 3 {
		t.Fatalf("adjustment must not touch version, got %d", record.Version)
	}
}

func TestLedger_AdjustEmitsStockAdjusted(t *testing.T) {
	fx := newLedgerFixture(t)

	if _, err := fx.ledger.Adjust("inv-1", 0, "ops-1", "write-off"); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	events := collectOutbox(t, fx.outbox)
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != string(kafka.EventTypeStockAdjusted) {
		t.Fatalf("expected stock.adjusted, got %s", events[0].EventType)
	}
	if events[0].AggregateType != kafka.AggregateTypeInventory || events[0].AggregateID != "inv-1" {
		t.Fatalf("unexpected aggregate: %+v", events[0])
	}

	var payload kafka.StockEvent
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OldQuantity != 12 || payload.NewQuantity != 0 || payload.Remaining != 0 {
		t.Fatalf("unexpected payload quantities: %+v", payload)
	}
	if payload.ActorID != "ops-1" {
		t.Fatalf("expected actor ops-1, got %s", payload.ActorID)
	}
}

func TestLedger_AdjustValidation(t *testing.T) {
	fx := newLedgerFixture(t)

	if _, err := fx.ledger.Adjust("", 5, "ops-1", ""); !errors.Is(err, domain.ErrInventoryIDRequired) {
		t.Fatalf("expected inventory id required, got %v", err)
	}
	if _, err := fx.ledger.Adjust("inv-1", 5, "", ""); !errors.Is(err, domain.ErrActorRequired) {
		t.Fatalf("expected actor required, got %v", err)
	}
	if _, err := fx.ledger.Adjust("inv-1", -1, "ops-1", ""); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	// Пополнение выше исходного гранта требует новой записи, а не корректировки.
	if _, err := fx.ledger.Adjust("inv-1", 21, "ops-1", ""); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity above grant, got %v", err)
	}
	if _, err := fx.ledger.Adjust("missing", 5, "ops-1", ""); !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected inventory not found, got %v", err)
	}

	record, err := fx.inventory.Get("inv-1")
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if record.RemainingQuantity != 12 || record.Version != 3 {
		t.Fatalf("rejected adjustments must not change the record: %+v", record)
	}
	if events := collectOutbox(t, fx.outbox); len(events) != 0 {
		t.Fatalf("rejected adjustments must not emit events, got %d", len(events))
	}
}

type failingInventory struct {
	domain.InventoryRepository
	adjustErr error
}

func (f *failingInventory) AdjustRemaining(id string, newQty int64, actorID, reason string) (domain.AdjustmentEntry, error) {
	return domain.AdjustmentEntry{}, f.adjustErr
}

func TestLedger_StorageFailure(t *testing.T) {
	fx := newLedgerFixture(t)
	broken := &failingInventory{
		InventoryRepository: fx.inventory,
		adjustErr:           errors.New("connection reset"),
	}
	ledger := NewLedgerWithoutMetrics(broken, fx.outbox, log.New().WithField("test", "ledger_failure"))

	_, err := ledger.Adjust("inv-1", 5, "ops-1", "")
	if !errors.Is(err, domain.ErrInventoryUpdateFailed) {
		t.Fatalf("expected inventory update failed, got %v", err)
	}
	if domain.Code(err) != domain.CodeInventoryUpdateFailed {
		t.Fatalf("expected code %s, got %s", domain.CodeInventoryUpdateFailed, domain.Code(err))
	}

	if events := collectOutbox(t, fx.outbox); len(events) != 0 {
		t.Fatalf("failed adjustment must not emit events, got %d", len(events))
	}
}

func TestLedger_History(t *testing.T) {
	fx := newLedgerFixture(t)

	for _, qty := range []int64{10, 7, 3} {
		if _, err := fx.ledger.Adjust("inv-1", qty, "ops-1", "pass"); err != nil {
			t.Fatalf("adjust to %d failed: %v", qty, err)
		}
	}

	history, err := fx.ledger.History("inv-1", 2)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].NewQuantity != 3 || history[1].NewQuantity != 7 {
		t.Fatalf("expected newest first, got %+v", history)
	}

	history, err = fx.ledger.History("inv-1", 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected default limit to cover 3 entries, got %d", len(history))
	}

	if _, err := fx.ledger.History("", 5); !errors.Is(err, domain.ErrInventoryIDRequired) {
		t.Fatalf("expected inventory id required, got %v", err)
	}
	if _, err := fx.ledger.History("missing", 5); !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected inventory not found, got %v", err)
	}
}
