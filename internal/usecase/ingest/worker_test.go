package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/infrastructure/persistence/sqlite/repository"
	"xihong/internal/infrastructure/persistence/sqlite/uow"
	"xihong/internal/infrastructure/tables"
	"xihong/internal/ports"
)

const testShop = "shop-sg-01"

type testReader struct {
	mu     sync.Mutex
	sheets map[string][]ports.Sheet
	panics map[string]bool
}

func (r *testReader) ReadSheets(_ context.Context, path string) ([]ports.Sheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := filepath.Base(path)
	if r.panics[name] {
		panic("corrupt workbook " + name)
	}
	sheets, ok := r.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainingest.ErrUnreadableFile, name)
	}
	return sheets, nil
}

type testCurrency struct {
	rates map[string]float64
	calls int
}

func (c *testCurrency) ToBase(_ context.Context, amount float64, currency string, _ time.Time) (float64, error) {
	c.calls++
	rate, ok := c.rates[currency]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ports.ErrRateNotFound, currency)
	}
	return amount * rate, nil
}

// flakyUnitOfWork fails the first n transactions as lock contention.
type flakyUnitOfWork struct {
	inner ports.UnitOfWork
	n     int
}

func (u *flakyUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.n > 0 {
		u.n--
		return fmt.Errorf("%w: database is locked", ports.ErrTransient)
	}
	return u.inner.WithTx(ctx, fn)
}

// failingCallsUnitOfWork fails the listed transaction calls (1-based) as
// lock contention.
type failingCallsUnitOfWork struct {
	inner ports.UnitOfWork
	fail  map[int]bool
	calls int
}

func (u *failingCallsUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	if u.fail[u.calls] {
		return fmt.Errorf("%w: database is locked", ports.ErrTransient)
	}
	return u.inner.WithTx(ctx, fn)
}

type ingestFixture struct {
	db         *gorm.DB
	uow        ports.UnitOfWork
	catalog    *repository.CatalogRepository
	facts      *repository.FactRepository
	quarantine *QuarantineWriter
	records    *repository.QuarantineRepository
	reader     *testReader
	currency   *testCurrency
	now        time.Time
	sleeps     int
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ingest.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	u := uow.NewUnitOfWork(db)
	catalog := repository.NewCatalogRepository(db)
	records := repository.NewQuarantineRepository(db)
	return &ingestFixture{
		db:         db,
		uow:        u,
		catalog:    catalog,
		facts:      repository.NewFactRepository(db),
		quarantine: NewQuarantineWriter(records, nil, catalog, u),
		records:    records,
		reader:     &testReader{sheets: map[string][]ports.Sheet{}, panics: map[string]bool{}},
		currency:   &testCurrency{rates: map[string]float64{"CNY": 0.5, "USD": 2}},
		now:        time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC),
	}
}

func (f *ingestFixture) service(t *testing.T, u ports.UnitOfWork) *Service {
	t.Helper()
	svc := NewService(Deps{
		Catalog:     f.catalog,
		Facts:       f.facts,
		UnitOfWork:  u,
		Reader:      f.reader,
		Provisioner: tables.NewProvisioner(f.db),
		Currency:    f.currency,
		Quarantine:  f.quarantine,
	}, Options{BaseDir: "/srv/xihong", CommitBackoff: time.Millisecond})
	svc.now = func() time.Time { return f.now }
	svc.sleep = func(context.Context, time.Duration) error {
		f.sleeps++
		return nil
	}
	return svc
}

type seedFile struct {
	name        string
	domain      string
	subDomain   string
	granularity string
	rows        [][]string
}

func (f *ingestFixture) seed(t *testing.T, in seedFile) uint64 {
	t.Helper()
	if in.granularity == "" {
		in.granularity = domainingest.GranularityDaily
	}
	file, err := f.catalog.Create(context.Background(), ports.CatalogFile{
		FilePath:     "data/raw/2025/" + in.name,
		FileName:     in.name,
		FileHash:     "hash-" + in.name,
		Source:       "data/raw",
		PlatformCode: "shopee",
		DataDomain:   in.domain,
		SubDomain:    in.subDomain,
		Granularity:  in.granularity,
		ShopID:       testShop,
		Status:       ports.CatalogStatusPending,
		StorageLayer: "raw",
		FirstSeenAt:  f.now,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if in.rows != nil {
		f.reader.sheets[in.name] = []ports.Sheet{{Name: "Sheet1", Rows: in.rows}}
	}
	return file.ID
}

func (f *ingestFixture) status(t *testing.T, id uint64) ports.CatalogFile {
	t.Helper()
	file, err := f.catalog.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return file
}

func (f *ingestFixture) metric(t *testing.T, sku string, date time.Time, granularity string) ports.ProductMetric {
	t.Helper()
	m, found, err := f.facts.GetProductMetric(context.Background(), "shopee", testShop, sku, date, granularity)
	if err != nil {
		t.Fatalf("GetProductMetric() error = %v", err)
	}
	if !found {
		t.Fatalf("GetProductMetric(%s, %s) not found", sku, date.Format(time.DateOnly))
	}
	return m
}

func (f *ingestFixture) rawCount(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func orderRows(orderID string) [][]string {
	return [][]string{
		{"订单编号", "下单时间", "实付金额"},
		{orderID, "2025-09-01", "100"},
	}
}

func TestRunOnceIsolatesFailingFile(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)

	ids := make([]uint64, 0, 10)
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("shopee_orders_daily_20250901_%06d.xlsx", i)
		ids = append(ids, f.seed(t, seedFile{name: name, domain: "orders", rows: orderRows(fmt.Sprintf("O-%d", i))}))
		if i == 5 {
			f.reader.panics[name] = true
		}
	}

	stats, err := svc.RunOnce(context.Background(), RunInput{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Picked != 10 || stats.Succeeded != 9 || stats.Failed != 1 || stats.Quarantined != 0 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if stats.RunID == "" {
		t.Fatalf("RunOnce() expected run id")
	}

	failed := f.status(t, ids[4])
	if failed.Status != ports.CatalogStatusFailed || !strings.Contains(failed.ErrorMessage, "panic") {
		t.Fatalf("file 5 = %q %q", failed.Status, failed.ErrorMessage)
	}
	if failed.LastProcessedAt == nil {
		t.Fatalf("file 5 expected last_processed_at")
	}
	if got := f.status(t, ids[5]); got.Status != ports.CatalogStatusIngested {
		t.Fatalf("file 6 status = %q", got.Status)
	}

	order, found, err := f.facts.GetOrder(context.Background(), "shopee", testShop, "O-6")
	if err != nil || !found {
		t.Fatalf("GetOrder() = %v, %v", found, err)
	}
	if order.Total != 100 || order.Currency != "CNY" || order.TotalBase == nil || *order.TotalBase != 50 {
		t.Fatalf("GetOrder() = %#v", order)
	}
	if order.OrderDate == nil || !order.OrderDate.Equal(day(2025, 9, 1)) {
		t.Fatalf("GetOrder() date = %v", order.OrderDate)
	}
	if _, found, _ := f.facts.GetOrder(context.Background(), "shopee", testShop, "O-5"); found {
		t.Fatalf("panicking file should write nothing")
	}
	if n := f.rawCount(t, "fact_shopee_orders_daily"); n != 9 {
		t.Fatalf("raw rows = %d, want 9", n)
	}
}

func TestRunOnceReconcilesProductHierarchy(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	id := f.seed(t, seedFile{
		name:   "shopee_products_daily_20250901_000000.xlsx",
		domain: "products",
		rows: [][]string{
			{"商品ID", "商品名称", "颜色", "销售额", "销量"},
			{"P1", "Shirt", "", "1000", "50"},
			{"P1", "Shirt", "Red", "500", "25"},
			{"P1", "Shirt", "Blue", "480", "24"},
			{"P2", "Cap", "", "1000", "10"},
			{"P2", "Cap", "Red", "600", "8"},
			{"P2", "Cap", "Blue", "600", "8"},
			{"", "Orphan", "", "1", "1"},
		},
	})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if got := f.status(t, id); got.Status != ports.CatalogStatusIngested || got.ErrorMessage != "skus=2" {
		t.Fatalf("catalog row = %q %q", got.Status, got.ErrorMessage)
	}

	date := day(2025, 9, 1)
	p1 := f.metric(t, "P1", date, "daily")
	if p1.Scope != domainingest.ScopeProduct || p1.Metrics[domainingest.MetricSalesAmount] != 1000 {
		t.Fatalf("P1 = %#v", p1)
	}
	if p1.Currency != "USD" || p1.Metrics[domainingest.MetricSalesAmountBase] != 2000 {
		t.Fatalf("P1 currency = %q base = %v", p1.Currency, p1.Metrics[domainingest.MetricSalesAmountBase])
	}

	p2 := f.metric(t, "P2", date, "daily")
	if p2.Metrics[domainingest.MetricSalesAmount] != 1200 || p2.Metrics[domainingest.MetricSalesVolume] != 16 {
		t.Fatalf("P2 = %#v", p2.Metrics)
	}

	red := f.metric(t, "P1::Red", date, "daily")
	if red.Scope != domainingest.ScopeVariant || red.ParentSKU != "P1" || red.Metrics[domainingest.MetricSalesAmount] != 500 {
		t.Fatalf("P1::Red = %#v", red)
	}

	records, err := f.quarantine.List(context.Background(), ports.QuarantineFilter{CatalogID: id})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].RowNumber != 7 || records[0].ErrorType != ports.QuarantineMissingRequiredField {
		t.Fatalf("quarantine = %#v", records)
	}
	if n := f.rawCount(t, "fact_shopee_products_daily"); n != 7 {
		t.Fatalf("raw rows = %d, want 7", n)
	}
}

func TestRunOnceQuarantinesFileWithoutSKUColumn(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	id := f.seed(t, seedFile{
		name:   "shopee_products_daily_20250901_000000.xlsx",
		domain: "products",
		rows: [][]string{
			{"标题", "价格", "库存"},
			{"Shirt", "10", "5"},
		},
	})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Failed != 1 || stats.Quarantined != 1 || stats.Succeeded != 0 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	file := f.status(t, id)
	if file.Status != ports.CatalogStatusQuarantined || !strings.Contains(file.ErrorMessage, "sku") {
		t.Fatalf("catalog row = %q %q", file.Status, file.ErrorMessage)
	}

	records, err := f.quarantine.List(context.Background(), ports.QuarantineFilter{CatalogID: id})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].RowNumber != FileRowNumber || records[0].ErrorType != ports.QuarantineMissingRequiredField {
		t.Fatalf("quarantine = %#v", records)
	}
	if records[0].RowData["sheet"] != "Sheet1" || records[0].RunID != stats.RunID {
		t.Fatalf("quarantine payload = %#v run = %q", records[0].RowData, records[0].RunID)
	}

	if err := f.quarantine.Resolve(context.Background(), records[0].ID); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := f.status(t, id); got.Status != ports.CatalogStatusPending {
		t.Fatalf("resolved file status = %q", got.Status)
	}
	stats, err = svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() replay error = %v", err)
	}
	if stats.Picked != 1 {
		t.Fatalf("RunOnce() replay stats = %#v", stats)
	}
}

func TestRunOnceReclassifiesSKULessProducts(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	id := f.seed(t, seedFile{
		name:   "shopee_products_daily_20250901_000000.xlsx",
		domain: "products",
		rows: [][]string{
			{"日期", "访客数", "页面浏览次数"},
			{"2025-09-01", "10", "100"},
		},
	})

	if _, err := svc.RunOnce(context.Background(), RunInput{}); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	file := f.status(t, id)
	if file.Status != ports.CatalogStatusIngested || file.DataDomain != domainingest.DomainAnalytics {
		t.Fatalf("catalog row = %q %q", file.Status, file.DataDomain)
	}
	if !strings.HasPrefix(file.ErrorMessage, "reclassified as analytics") {
		t.Fatalf("catalog message = %q", file.ErrorMessage)
	}
	store := f.metric(t, storeSKU, day(2025, 9, 1), "daily")
	if store.Metrics[domainingest.MetricPageViews] != 100 || store.Metrics[domainingest.MetricUniqueVisitors] != 10 {
		t.Fatalf("store metrics = %#v", store.Metrics)
	}
	if n := f.rawCount(t, "fact_shopee_analytics_daily"); n != 1 {
		t.Fatalf("raw rows = %d", n)
	}
}

func TestRunOnceTrafficKeepsFirstValuePerDate(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	f.seed(t, seedFile{
		name:   "shopee_analytics_daily_20250901_000000.xlsx",
		domain: "analytics",
		rows: [][]string{
			{"日期", "页面浏览次数", "访客数", "商品交易总额"},
			{"2025-09-01", "100", "10", "50"},
			{"2025-09-01", "999", "99", "999"},
			{"2025-09-02", "200", "20", ""},
		},
	})

	if _, err := svc.RunOnce(context.Background(), RunInput{}); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	first := f.metric(t, storeSKU, day(2025, 9, 1), "daily")
	if first.Metrics[domainingest.MetricPageViews] != 100 || first.Metrics[domainingest.MetricUniqueVisitors] != 10 {
		t.Fatalf("2025-09-01 = %#v", first.Metrics)
	}
	if first.Metrics[domainingest.MetricSalesAmount] != 50 || first.Metrics[domainingest.MetricSalesAmountBase] != 100 {
		t.Fatalf("2025-09-01 sales = %#v", first.Metrics)
	}

	second := f.metric(t, storeSKU, day(2025, 9, 2), "daily")
	if second.Metrics[domainingest.MetricPageViews] != 200 {
		t.Fatalf("2025-09-02 = %#v", second.Metrics)
	}
	if _, ok := second.Metrics[domainingest.MetricSalesAmount]; ok {
		t.Fatalf("2025-09-02 should not carry sales")
	}
}

func TestRunOnceAgentRangeSetsGranularity(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	id := f.seed(t, seedFile{
		name:        "shopee_services_agent_monthly_20250930_000000.xlsx",
		domain:      "services",
		subDomain:   "agent",
		granularity: "monthly",
		rows: [][]string{
			{"日期期间", "访客数", "聊天询问", "销售额"},
			{"01/08/2025 - 31/08/2025", "120", "45", "RM300"},
		},
	})

	if _, err := svc.RunOnce(context.Background(), RunInput{}); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if got := f.status(t, id); got.Status != ports.CatalogStatusIngested {
		t.Fatalf("catalog row = %q %q", got.Status, got.ErrorMessage)
	}

	m := f.metric(t, agentSKU, day(2025, 8, 31), domainingest.GranularityMonthly)
	if m.Metrics[domainingest.MetricUniqueVisitors] != 120 || m.Metrics[domainingest.MetricOrderCount] != 45 || m.Metrics[domainingest.MetricSalesAmount] != 300 {
		t.Fatalf("agent metrics = %#v", m.Metrics)
	}
	if m.Currency != "MYR" {
		t.Fatalf("agent currency = %q", m.Currency)
	}
	if _, ok := m.Metrics[domainingest.MetricSalesAmountBase]; ok {
		t.Fatalf("agent base amount should be absent without a MYR rate")
	}
	if m.PeriodStart == nil || !m.PeriodStart.Equal(day(2025, 8, 1)) {
		t.Fatalf("agent period start = %v", m.PeriodStart)
	}
}

func TestRunOnceSkipsEmptyAndManifestFiles(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	empty := f.seed(t, seedFile{
		name:   "shopee_orders_daily_20250901_000001.xlsx",
		domain: "orders",
		rows:   [][]string{{"订单编号", "下单时间", "实付金额"}},
	})
	manifest := f.seed(t, seedFile{
		name:   "shopee_orders_daily_20250901_000002.xlsx",
		domain: "orders",
		rows: [][]string{
			{"data_type", "file_path", "rows"},
			{"orders", "x.xlsx", "3"},
		},
	})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Succeeded != 2 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if got := f.status(t, empty); got.Status != ports.CatalogStatusIngested || got.ErrorMessage != "empty file skipped" {
		t.Fatalf("empty file = %q %q", got.Status, got.ErrorMessage)
	}
	if got := f.status(t, manifest); got.Status != ports.CatalogStatusIngested || got.ErrorMessage != "manifest skipped" {
		t.Fatalf("manifest = %q %q", got.Status, got.ErrorMessage)
	}
}

func TestRunOnceInventoryLandsRawRowsOnly(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	id := f.seed(t, seedFile{
		name:        "shopee_inventory_snapshot_20250901_000000.xlsx",
		domain:      "inventory",
		granularity: "snapshot",
		rows: [][]string{
			{"商品编号", "库存", "仓库"},
			{"P1", "5", "SG"},
			{"P2", "7", "SG"},
		},
	})
	unsupported := f.seed(t, seedFile{
		name:      "chat_export.xlsx",
		domain:    "services",
		subDomain: "chatbot",
		rows: [][]string{
			{"会话", "客服", "时长"},
			{"1", "a", "3"},
		},
	})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Succeeded != 1 || stats.Quarantined != 1 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if got := f.status(t, id); got.ErrorMessage != "raw rows only" {
		t.Fatalf("inventory message = %q", got.ErrorMessage)
	}
	if n := f.rawCount(t, "fact_shopee_inventory_snapshot"); n != 2 {
		t.Fatalf("raw rows = %d", n)
	}

	records, err := f.quarantine.List(context.Background(), ports.QuarantineFilter{CatalogID: unsupported})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].ErrorType != ports.QuarantineUnsupportedDomain {
		t.Fatalf("quarantine = %#v", records)
	}
}

func TestRunOnceRetriesTransientCommit(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, &flakyUnitOfWork{inner: f.uow, n: 2})
	id := f.seed(t, seedFile{name: "shopee_orders_daily_20250901_000001.xlsx", domain: "orders", rows: orderRows("O-1")})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Succeeded != 1 || f.sleeps != 2 {
		t.Fatalf("RunOnce() stats = %#v sleeps = %d", stats, f.sleeps)
	}
	if got := f.status(t, id); got.Status != ports.CatalogStatusIngested {
		t.Fatalf("catalog row = %q", got.Status)
	}
}

func TestRunOnceGivesUpAfterCommitAttempts(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, &flakyUnitOfWork{inner: f.uow, n: defaultCommitAttempts})
	id := f.seed(t, seedFile{name: "shopee_orders_daily_20250901_000001.xlsx", domain: "orders", rows: orderRows("O-1")})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Failed != 1 || f.sleeps != defaultCommitAttempts-1 {
		t.Fatalf("RunOnce() stats = %#v sleeps = %d", stats, f.sleeps)
	}
	got := f.status(t, id)
	if got.Status != ports.CatalogStatusFailed || !strings.Contains(got.ErrorMessage, "transient") {
		t.Fatalf("catalog row = %q %q", got.Status, got.ErrorMessage)
	}
}

func TestRunOnceRetriesTransientStatusCommit(t *testing.T) {
	f := newIngestFixture(t)
	u := &failingCallsUnitOfWork{inner: f.uow, fail: map[int]bool{2: true}}
	svc := f.service(t, u)
	id := f.seed(t, seedFile{name: "shopee_orders_daily_20250901_000001.xlsx", domain: "orders", rows: orderRows("O-1")})

	stats, err := svc.RunOnce(context.Background(), RunInput{})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Succeeded != 1 || stats.Failed != 0 || f.sleeps != 1 || u.calls != 3 {
		t.Fatalf("RunOnce() stats = %#v sleeps = %d calls = %d", stats, f.sleeps, u.calls)
	}
	if got := f.status(t, id); got.Status != ports.CatalogStatusIngested {
		t.Fatalf("catalog row = %q %q", got.Status, got.ErrorMessage)
	}

	var orders int64
	if err := f.db.Model(&model.FactOrder{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 1 {
		t.Fatalf("orders = %d", orders)
	}
}

func TestRunOnceStopsBetweenFilesWhenCancelled(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	for i := 1; i <= 3; i++ {
		f.seed(t, seedFile{
			name:   fmt.Sprintf("shopee_orders_daily_20250901_%06d.xlsx", i),
			domain: "orders",
			rows:   orderRows(fmt.Sprintf("O-%d", i)),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var phases []string
	stats, err := svc.RunOnce(ctx, RunInput{Progress: func(ev ProgressEvent) {
		phases = append(phases, ev.Phase)
		if ev.Phase == PhaseDone {
			cancel()
		}
	}})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Picked != 1 || stats.Succeeded != 1 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if phases[0] != PhaseStart || phases[len(phases)-1] != PhaseDone {
		t.Fatalf("phases = %v", phases)
	}
	if !strings.Contains(strings.Join(phases, ","), PhaseCommit) {
		t.Fatalf("phases = %v, want commit", phases)
	}

	pending, err := f.catalog.ListPending(context.Background(), ports.CatalogPendingFilter{})
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
}

func TestRunOnceFiltersDomains(t *testing.T) {
	f := newIngestFixture(t)
	svc := f.service(t, f.uow)
	f.seed(t, seedFile{name: "shopee_orders_daily_20250901_000001.xlsx", domain: "orders", rows: orderRows("O-1")})
	f.seed(t, seedFile{
		name:   "shopee_analytics_daily_20250901_000000.xlsx",
		domain: "analytics",
		rows:   [][]string{{"日期", "页面浏览次数", "访客数"}, {"2025-09-01", "1", "1"}},
	})

	stats, err := svc.RunOnce(context.Background(), RunInput{Domains: []string{"analytics"}})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if stats.Picked != 1 || stats.Succeeded != 1 {
		t.Fatalf("RunOnce() stats = %#v", stats)
	}
	if _, found, _ := f.facts.GetOrder(context.Background(), "shopee", testShop, "O-1"); found {
		t.Fatalf("orders file should not be ingested")
	}
}

func TestRunOnceRequiresDependencies(t *testing.T) {
	svc := NewService(Deps{}, Options{})
	if _, err := svc.RunOnce(context.Background(), RunInput{}); err == nil {
		t.Fatalf("RunOnce() expected error without repositories")
	}
}
