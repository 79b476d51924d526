package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/app"
	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/allocation"
	"github.com/vladislavdragonenkov/fms/internal/service/stock"
)

// Метка успешного исхода; отказы считаются по машинным кодам доменных ошибок.
const outcomeCommitted = "COMMITTED"

type config struct {
	partners   int
	stock      int64
	orders     int
	qty        int64
	workers    int
	retries    int
	productID  string
	outputPath string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// conservationReport — итог сверки запаса после прогона: каждая списанная
// единица должна быть закреплена ровно за одним заказом.
type conservationReport struct {
	InitialUnits     int64    `json:"initial_units"`
	RemainingUnits   int64    `json:"remaining_units"`
	DecrementedUnits int64    `json:"decremented_units"`
	CommittedUnits   int64    `json:"committed_units"`
	Violations       []string `json:"violations,omitempty"`
}

type report struct {
	StartedAt            time.Time          `json:"started_at"`
	DurationSeconds      float64            `json:"duration_seconds"`
	TotalOrders          int64              `json:"total_orders"`
	CommittedOrders      int64              `json:"committed_orders"`
	RejectedOrders       int64              `json:"rejected_orders"`
	RejectionRate        float64            `json:"rejection_rate"`
	AllocationsPerSecond float64            `json:"allocations_per_second"`
	LatencyMs            latencySummary     `json:"latency_ms"`
	Outcomes             map[string]int64   `json:"outcomes"`
	OrdersPerPartner     map[string]int64   `json:"orders_per_partner"`
	Conservation         conservationReport `json:"conservation"`
}

type collector struct {
	mu        sync.Mutex
	outcomes  map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{
		outcomes: make(map[string]int64),
	}
}

func (c *collector) record(code string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes[code]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make(map[string]int64, len(c.outcomes))
	var total, committed int64
	for code, count := range c.outcomes {
		outcomes[code] = count
		total += count
		if code == outcomeCommitted {
			committed += count
		}
	}

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		TotalOrders:     total,
		CommittedOrders: committed,
		RejectedOrders:  total - committed,
		RejectionRate:   ratio(total-committed, total),
		LatencyMs:       buildLatencySummary(c.latencies),
		Outcomes:        outcomes,
	}
	if duration > 0 {
		result.AllocationsPerSecond = float64(total) / duration.Seconds()
	}
	return result
}

func parseConfig() (config, error) {
	var cfg config

	flag.IntVar(&cfg.partners, "partners", 5, "number of fulfillment partners to seed")
	flag.Int64Var(&cfg.stock, "stock", 100, "initial stock units per partner")
	flag.IntVar(&cfg.orders, "orders", 400, "number of paid orders to allocate")
	flag.Int64Var(&cfg.qty, "qty", 1, "quantity per order")
	flag.IntVar(&cfg.workers, "workers", 40, "number of concurrent allocation workers")
	flag.IntVar(&cfg.retries, "retries", 3, "max optimistic decrement attempts per candidate")
	flag.StringVar(&cfg.productID, "product", "product-load", "product id shared by all seeded stock")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	if cfg.partners <= 0 {
		return cfg, errors.New("partners must be > 0")
	}
	if cfg.stock < 0 {
		return cfg, errors.New("stock must be >= 0")
	}
	if cfg.orders <= 0 {
		return cfg, errors.New("orders must be > 0")
	}
	if cfg.qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if cfg.workers <= 0 {
		return cfg, errors.New("workers must be > 0")
	}
	if cfg.retries <= 0 {
		return cfg, errors.New("retries must be > 0")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product is required")
	}

	return cfg, nil
}

// harness гоняет реальный оркестратор аллокации поверх памяти: тот же guard,
// unit of work и политика ротации, что и в сервисе, но без Kafka и Postgres.
type harness struct {
	cfg    config
	deps   *app.Dependencies
	engine allocation.Orchestrator
}

func newHarness(cfg config, logger *log.Entry) (*harness, error) {
	deps := app.NewDependencies(logger)

	now := time.Now().UTC()
	for i := 0; i < cfg.partners; i++ {
		partner := domain.Partner{
			ID:        partnerID(i),
			Name:      fmt.Sprintf("Load Partner %03d", i+1),
			Email:     fmt.Sprintf("load-%03d@example.com", i+1),
			Region:    "load",
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Partners.Create(partner); err != nil {
			return nil, fmt.Errorf("seed partner %s: %w", partner.ID, err)
		}

		record := domain.InventoryRecord{
			ID:                fmt.Sprintf("lt-stock-%03d", i+1),
			PartnerID:         partner.ID,
			ProductID:         cfg.productID,
			AllocatedQuantity: cfg.stock,
			RemainingQuantity: cfg.stock,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := deps.Inventory.Create(record); err != nil {
			return nil, fmt.Errorf("seed stock for partner %s: %w", partner.ID, err)
		}
	}

	for i := 0; i < cfg.orders; i++ {
		order := domain.Order{
			ID:         orderID(i),
			Number:     fmt.Sprintf("LT-%06d", i+1),
			CustomerID: fmt.Sprintf("lt-customer-%06d", i+1),
			Status:     domain.OrderStatusPaid,
			Lines: []domain.OrderLine{
				{
					ID:        fmt.Sprintf("lt-line-%06d", i+1),
					ProductID: cfg.productID,
					Quantity:  cfg.qty,
					CreatedAt: now,
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Orders.Create(order); err != nil {
			return nil, fmt.Errorf("seed order %s: %w", order.ID, err)
		}
	}

	engine := allocation.NewOrchestrator(
		deps.Orders,
		deps.Inventory,
		deps.UnitOfWork,
		deps.Guard,
		deps.OutboxRepo,
		stock.RetryConfig{MaxAttempts: cfg.retries},
		logger,
	)

	return &harness{cfg: cfg, deps: deps, engine: engine}, nil
}

func (h *harness) run() report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, h.cfg.workers*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < h.cfg.workers; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				start := time.Now()
				_, err := h.engine.Allocate(orderID(index))
				col.record(outcome(err), time.Since(start))
			}
		}()
	}

	for i := 0; i < h.cfg.orders; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	h.audit(&result)
	return result
}

// audit сверяет итоговое состояние хранилища с исходами прогона.
func (h *harness) audit(result *report) {
	var violations []string

	snapshot, err := h.deps.Inventory.SnapshotByProduct(h.cfg.productID)
	if err != nil {
		violations = append(violations, fmt.Sprintf("inventory snapshot failed: %v", err))
	}

	var remaining int64
	for _, ps := range snapshot {
		rec := ps.Record
		if rec.RemainingQuantity < 0 {
			violations = append(violations, fmt.Sprintf("record %s oversold: remaining=%d", rec.ID, rec.RemainingQuantity))
		}
		if rec.RemainingQuantity > rec.AllocatedQuantity {
			violations = append(violations, fmt.Sprintf("record %s remaining %d exceeds allocated %d",
				rec.ID, rec.RemainingQuantity, rec.AllocatedQuantity))
		}
		remaining += rec.RemainingQuantity
	}

	initial := int64(h.cfg.partners) * h.cfg.stock
	decremented := initial - remaining

	ordersPerPartner := make(map[string]int64)
	var committedOrders, committedUnits int64

	for i := 0; i < h.cfg.orders; i++ {
		id := orderID(i)

		order, err := h.deps.Orders.Get(id)
		if err != nil {
			violations = append(violations, fmt.Sprintf("order %s lookup failed: %v", id, err))
			continue
		}

		records, err := h.deps.Allocations.ListByOrder(id)
		if err != nil {
			violations = append(violations, fmt.Sprintf("order %s allocation records lookup failed: %v", id, err))
			continue
		}

		if !order.Allocated() {
			// Отказ обязан не оставлять следов: ни владельца, ни записей решения.
			if len(records) != 0 {
				violations = append(violations, fmt.Sprintf("order %s has %d allocation records but no owner", id, len(records)))
			}
			continue
		}

		committedOrders++
		ordersPerPartner[order.FulfillmentPartnerID]++

		var recorded int64
		for _, rec := range records {
			if rec.PartnerID != order.FulfillmentPartnerID {
				violations = append(violations, fmt.Sprintf("order %s record %s names partner %s, owner is %s",
					id, rec.ID, rec.PartnerID, order.FulfillmentPartnerID))
			}
			recorded += rec.Quantity
		}
		if recorded != h.cfg.qty {
			violations = append(violations, fmt.Sprintf("order %s records cover %d units, order needs %d", id, recorded, h.cfg.qty))
		}
		committedUnits += recorded
	}

	if committedUnits != decremented {
		violations = append(violations, fmt.Sprintf("committed units %d do not match decremented units %d", committedUnits, decremented))
	}
	if committedOrders != result.CommittedOrders {
		violations = append(violations, fmt.Sprintf("owned orders %d do not match committed outcomes %d", committedOrders, result.CommittedOrders))
	}
	if internal := result.Outcomes[domain.CodeInternal]; internal > 0 {
		violations = append(violations, fmt.Sprintf("observed %d internal errors", internal))
	}

	result.OrdersPerPartner = ordersPerPartner
	result.Conservation = conservationReport{
		InitialUnits:     initial,
		RemainingUnits:   remaining,
		DecrementedUnits: decremented,
		CommittedUnits:   committedUnits,
		Violations:       violations,
	}
}

func outcome(err error) string {
	if err == nil {
		return outcomeCommitted
	}
	return domain.Code(err)
}

func partnerID(index int) string {
	return fmt.Sprintf("lt-partner-%03d", index+1)
}

func orderID(index int) string {
	return fmt.Sprintf("lt-order-%06d", index+1)
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.WarnLevel)
	logger := log.WithField("component", "loadtest")

	h, err := newHarness(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "seed harness: %v\n", err)
		os.Exit(1)
	}

	result := h.run()

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if len(result.Conservation.Violations) > 0 {
		os.Exit(1)
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Allocation load test summary")
	fmt.Printf("orders=%d committed=%d rejected=%d rejection_rate=%.4f\n",
		result.TotalOrders,
		result.CommittedOrders,
		result.RejectedOrders,
		result.RejectionRate,
	)
	fmt.Printf("partners=%d stock=%d qty=%d workers=%d retries=%d\n",
		cfg.partners, cfg.stock, cfg.qty, cfg.workers, cfg.retries)
	fmt.Printf("duration=%.2fs allocations_per_second=%.2f\n", result.DurationSeconds, result.AllocationsPerSecond)
	fmt.Printf("latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	codes := make([]string, 0, len(result.Outcomes))
	for code := range result.Outcomes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("outcome %s: %d\n", code, result.Outcomes[code])
	}

	partners := make([]string, 0, len(result.OrdersPerPartner))
	for id := range result.OrdersPerPartner {
		partners = append(partners, id)
	}
	sort.Strings(partners)
	for _, id := range partners {
		fmt.Printf("partner %s: orders=%d\n", id, result.OrdersPerPartner[id])
	}

	conservation := result.Conservation
	fmt.Printf("conservation: initial=%d remaining=%d decremented=%d committed_units=%d violations=%d\n",
		conservation.InitialUnits,
		conservation.RemainingUnits,
		conservation.DecrementedUnits,
		conservation.CommittedUnits,
		len(conservation.Violations),
	)
	for _, violation := range conservation.Violations {
		fmt.Printf("violation: %s\n", violation)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
