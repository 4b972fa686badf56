package catalogconsole

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"xihong/internal/ports"
	"xihong/internal/usecase/catalog"
)

type fakeCatalog struct {
	files     []ports.CatalogFile
	counts    []ports.CatalogCount
	lastList  catalog.ListFilter
	resetIDs  []uint64
	resetRows int64
}

func (f *fakeCatalog) List(_ context.Context, filter catalog.ListFilter) ([]ports.CatalogFile, error) {
	f.lastList = filter
	return f.files, nil
}

func (f *fakeCatalog) Stats(context.Context) ([]ports.CatalogCount, error) {
	return f.counts, nil
}

func (f *fakeCatalog) ResetFailed(_ context.Context, input catalog.RetryInput) (int64, error) {
	f.resetIDs = append(f.resetIDs, input.IDs...)
	return f.resetRows, nil
}

type fakeQuarantine struct {
	records  map[uint64][]ports.QuarantineRecord
	resolved []uint64
}

func (f *fakeQuarantine) List(_ context.Context, filter ports.QuarantineFilter) ([]ports.QuarantineRecord, error) {
	return f.records[filter.CatalogID], nil
}

func (f *fakeQuarantine) Resolve(_ context.Context, id uint64) error {
	f.resolved = append(f.resolved, id)
	return nil
}

func newTestModel(src *fakeCatalog, q *fakeQuarantine) *catalogModel {
	return NewCatalogModel(context.Background(), src, q, Options{}).(*catalogModel)
}

// run executes a command and feeds its message back into the model.
func run(t *testing.T, m *catalogModel, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected command")
	}
	_, next := m.Update(cmd())
	return next
}

func TestCatalogModelLoadsFilesAndRecords(t *testing.T) {
	src := &fakeCatalog{
		files: []ports.CatalogFile{
			{ID: 1, FileName: "a.xlsx", Status: ports.CatalogStatusIngested, PlatformCode: "shopee", DataDomain: "orders"},
			{ID: 2, FileName: "b.xlsx", Status: ports.CatalogStatusQuarantined, PlatformCode: "shopee", DataDomain: "products"},
		},
		counts: []ports.CatalogCount{
			{Status: "ingested", Domain: "orders", Count: 3},
			{Status: "ingested", Domain: "analytics", Count: 2},
		},
	}
	q := &fakeQuarantine{records: map[uint64][]ports.QuarantineRecord{
		2: {{ID: 9, CatalogID: 2, RowNumber: 0, ErrorType: ports.QuarantineMissingRequiredField, ErrorMsg: "missing required column: sku"}},
	}}
	m := newTestModel(src, q)

	next := run(t, m, m.loadFilesCmd())
	if len(m.files) != 2 || m.status != "已刷新，共 2 个文件" {
		t.Fatalf("files = %d status = %q", len(m.files), m.status)
	}
	run(t, m, next)
	if m.recordsFor != 1 || len(m.records) != 0 {
		t.Fatalf("records for #1 = %d", len(m.records))
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	run(t, m, cmd)
	if m.selectedIndex != 1 || m.recordsFor != 2 || len(m.records) != 1 {
		t.Fatalf("selected = %d records = %#v", m.selectedIndex, m.records)
	}

	view := m.View()
	for _, want := range []string{"ingested 5 (analytics=2 orders=3)", "q9 row=0 missing_required_field", "b.xlsx"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestCatalogModelIgnoresStaleRecords(t *testing.T) {
	src := &fakeCatalog{files: []ports.CatalogFile{{ID: 1}, {ID: 2}}}
	m := newTestModel(src, &fakeQuarantine{})
	m.files = src.files
	m.selectedIndex = 1

	m.Update(recordsLoadedMsg{catalogID: 1, records: []ports.QuarantineRecord{{ID: 5}}})
	if len(m.records) != 0 {
		t.Fatalf("stale records applied: %#v", m.records)
	}
}

func TestCatalogModelRetryOnlyFailed(t *testing.T) {
	src := &fakeCatalog{
		files:     []ports.CatalogFile{{ID: 7, Status: ports.CatalogStatusIngested}},
		resetRows: 1,
	}
	m := newTestModel(src, &fakeQuarantine{})
	m.files = src.files

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil {
		t.Fatalf("retry of ingested file should not run")
	}
	if !strings.Contains(m.status, "只能重试 failed") {
		t.Fatalf("status = %q", m.status)
	}

	m.files[0].Status = ports.CatalogStatusFailed
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	run(t, m, cmd)
	if len(src.resetIDs) != 1 || src.resetIDs[0] != 7 {
		t.Fatalf("ResetFailed() ids = %v", src.resetIDs)
	}
	if len(m.auditLogs) != 1 || !strings.Contains(m.auditLogs[0], "retry #7 -> pending") {
		t.Fatalf("audit = %v", m.auditLogs)
	}
}

func TestCatalogModelResolveFirstRecord(t *testing.T) {
	src := &fakeCatalog{files: []ports.CatalogFile{{ID: 3, Status: ports.CatalogStatusQuarantined}}}
	q := &fakeQuarantine{}
	m := newTestModel(src, q)
	m.files = src.files

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}); cmd != nil {
		t.Fatalf("resolve without records should not run")
	}

	m.records = []ports.QuarantineRecord{{ID: 11}, {ID: 12}}
	m.recordsFor = 3
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	run(t, m, cmd)
	if len(q.resolved) != 1 || q.resolved[0] != 11 {
		t.Fatalf("Resolve() ids = %v", q.resolved)
	}
}

func TestCatalogModelCyclesStatusFilter(t *testing.T) {
	src := &fakeCatalog{}
	m := newTestModel(src, &fakeQuarantine{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	run(t, m, cmd)
	if m.statusFilter != ports.CatalogStatusPending || src.lastList.Status != ports.CatalogStatusPending {
		t.Fatalf("filter = %q list = %#v", m.statusFilter, src.lastList)
	}
	if m.status != "目录为空" {
		t.Fatalf("status = %q", m.status)
	}

	for range statusCycle {
		m.statusFilter = nextStatus(m.statusFilter)
	}
	if m.statusFilter != ports.CatalogStatusPending {
		t.Fatalf("cycle did not wrap: %q", m.statusFilter)
	}
	if got := normalizeStatusFilter(" FAILED "); got != ports.CatalogStatusFailed {
		t.Fatalf("normalizeStatusFilter() = %q", got)
	}
	if got := normalizeStatusFilter("archived"); got != "" {
		t.Fatalf("normalizeStatusFilter(unknown) = %q", got)
	}
}
