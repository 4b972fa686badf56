package catalogconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/ports"
	"xihong/internal/usecase/catalog"
)

const maxShownRecords = 5
const maxAuditLines = 8

// statusCycle is the order the f key walks through.
var statusCycle = []string{
	"",
	ports.CatalogStatusPending,
	ports.CatalogStatusFailed,
	ports.CatalogStatusQuarantined,
	ports.CatalogStatusIngested,
}

type CatalogSource interface {
	List(ctx context.Context, filter catalog.ListFilter) ([]ports.CatalogFile, error)
	Stats(ctx context.Context) ([]ports.CatalogCount, error)
	ResetFailed(ctx context.Context, input catalog.RetryInput) (int64, error)
}

type QuarantineSource interface {
	List(ctx context.Context, filter ports.QuarantineFilter) ([]ports.QuarantineRecord, error)
	Resolve(ctx context.Context, id uint64) error
}

type Options struct {
	Status          string
	Domain          string
	Limit           int
	RefreshInterval time.Duration
}

type catalogModel struct {
	ctx             context.Context
	catalog         CatalogSource
	quarantine      QuarantineSource
	statusFilter    string
	domainFilter    string
	limit           int
	refreshInterval time.Duration

	files         []ports.CatalogFile
	counts        []ports.CatalogCount
	selectedIndex int
	records       []ports.QuarantineRecord
	recordsFor    uint64
	status        string
	auditLogs     []string
}

type filesLoadedMsg struct {
	items  []ports.CatalogFile
	counts []ports.CatalogCount
	err    error
}

type recordsLoadedMsg struct {
	catalogID uint64
	records   []ports.QuarantineRecord
	err       error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action    string
	catalogID uint64
	result    string
	err       error
}

func NewCatalogModel(ctx context.Context, source CatalogSource, quarantine QuarantineSource, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 50
	}
	return &catalogModel{
		ctx:             logging.WithAttrs(ctx, slog.String("component", "catalogconsole")),
		catalog:         source,
		quarantine:      quarantine,
		statusFilter:    normalizeStatusFilter(options.Status),
		domainFilter:    strings.ToLower(strings.TrimSpace(options.Domain)),
		limit:           limit,
		refreshInterval: interval,
		status:          "初始化中",
	}
}

func (m *catalogModel) Init() tea.Cmd {
	return tea.Batch(m.loadFilesCmd(), m.tickCmd())
}

func (m *catalogModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadFilesCmd(), m.tickCmd())
	case filesLoadedMsg:
		if msg.err != nil {
			m.status = "刷新失败: " + msg.err.Error()
			return m, nil
		}
		m.files = msg.items
		m.counts = msg.counts
		if len(m.files) == 0 {
			m.selectedIndex = 0
			m.records = nil
			m.recordsFor = 0
			m.status = "目录为空"
			return m, nil
		}
		if m.selectedIndex >= len(m.files) {
			m.selectedIndex = len(m.files) - 1
		}
		m.status = fmt.Sprintf("已刷新，共 %d 个文件", len(m.files))
		return m, m.loadRecordsCmd()
	case recordsLoadedMsg:
		selected, ok := m.selectedFile()
		if !ok || selected.ID != msg.catalogID {
			return m, nil
		}
		if msg.err != nil {
			m.records = nil
			m.status = "隔离记录加载失败: " + msg.err.Error()
			return m, nil
		}
		m.records = msg.records
		m.recordsFor = msg.catalogID
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s 失败: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.catalogID, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s 完成: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.catalogID, msg.result, nil)
		}
		return m, m.loadFilesCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "手动刷新中"
			return m, m.loadFilesCmd()
		case "f":
			m.statusFilter = nextStatus(m.statusFilter)
			m.selectedIndex = 0
			m.status = "过滤: " + firstNonEmpty(m.statusFilter, "all")
			return m, m.loadFilesCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadRecordsCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.files)-1 {
				m.selectedIndex++
				return m, m.loadRecordsCmd()
			}
			return m, nil
		case "r":
			return m, m.retryCmd()
		case "x":
			return m, m.resolveCmd()
		}
	}
	return m, nil
}

func (m *catalogModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Catalog Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s domain=%s limit=%d refresh=%s",
		firstNonEmpty(m.statusFilter, "all"),
		firstNonEmpty(m.domainFilter, "all"),
		m.limit,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Summary"))
	builder.WriteString("\n")
	if len(m.counts) == 0 {
		builder.WriteString(dimStyle.Render("- no counts"))
		builder.WriteString("\n")
	} else {
		for _, line := range summarizeCounts(m.counts) {
			builder.WriteString("- " + line + "\n")
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Files"))
	builder.WriteString("\n")
	if len(m.files) == 0 {
		builder.WriteString(dimStyle.Render("- no files"))
		builder.WriteString("\n\n")
	} else {
		for index, file := range m.files {
			line := fmt.Sprintf(
				"#%d [%s] %s/%s shop=%s %s",
				file.ID,
				file.Status,
				file.PlatformCode,
				domainLabel(file),
				file.ShopID,
				file.FileName,
			)
			switch {
			case index == m.selectedIndex:
				builder.WriteString(selectedStyle.Render("> " + line))
			case file.Status == ports.CatalogStatusFailed || file.Status == ports.CatalogStatusQuarantined:
				builder.WriteString(failedStyle.Render("  " + line))
			default:
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if selected, ok := m.selectedFile(); !ok {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("Path: %s\n", selected.FilePath))
		builder.WriteString(fmt.Sprintf("Routing: %s %s %s\n", selected.PlatformCode, domainLabel(selected), selected.Granularity))
		builder.WriteString(fmt.Sprintf("Shop: %s (%s %.2f)\n",
			selected.ShopID,
			firstNonEmpty(selected.ShopResolution.Source, "-"),
			selected.ShopResolution.Confidence,
		))
		builder.WriteString(fmt.Sprintf("Message: %s\n", firstNonEmpty(selected.ErrorMessage, "-")))
		builder.WriteString("\nQuarantine:\n")
		if len(m.records) == 0 {
			builder.WriteString("- none\n")
		} else {
			shown := m.records
			if len(shown) > maxShownRecords {
				shown = shown[:maxShownRecords]
			}
			for _, record := range shown {
				builder.WriteString(fmt.Sprintf("- q%d row=%d %s %s\n", record.ID, record.RowNumber, record.ErrorType, record.ErrorMsg))
			}
			if hidden := len(m.records) - len(shown); hidden > 0 {
				builder.WriteString(fmt.Sprintf("- ... %d more\n", hidden))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j 移动  g 刷新  f 状态过滤  r 重试失败  x 解除隔离  q 退出"))
	return builder.String()
}

func (m *catalogModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *catalogModel) loadFilesCmd() tea.Cmd {
	filter := catalog.ListFilter{Status: m.statusFilter, Domain: m.domainFilter, Limit: m.limit}
	return func() tea.Msg {
		items, err := m.catalog.List(m.ctx, filter)
		if err != nil {
			return filesLoadedMsg{err: err}
		}
		counts, err := m.catalog.Stats(m.ctx)
		if err != nil {
			return filesLoadedMsg{err: err}
		}
		return filesLoadedMsg{items: items, counts: counts}
	}
}

func (m *catalogModel) loadRecordsCmd() tea.Cmd {
	selected, ok := m.selectedFile()
	if !ok || m.quarantine == nil {
		return nil
	}
	return func() tea.Msg {
		records, err := m.quarantine.List(m.ctx, ports.QuarantineFilter{CatalogID: selected.ID})
		return recordsLoadedMsg{catalogID: selected.ID, records: records, err: err}
	}
}

func (m *catalogModel) retryCmd() tea.Cmd {
	selected, ok := m.selectedFile()
	if !ok {
		m.status = "没有可操作文件"
		return nil
	}
	if selected.Status != ports.CatalogStatusFailed {
		m.status = fmt.Sprintf("#%d 状态为 %s，只能重试 failed", selected.ID, selected.Status)
		return nil
	}
	m.status = "执行 retry 中..."
	return func() tea.Msg {
		reset, err := m.catalog.ResetFailed(m.ctx, catalog.RetryInput{IDs: []uint64{selected.ID}})
		if err != nil {
			return actionDoneMsg{action: "retry", catalogID: selected.ID, err: err}
		}
		if reset == 0 {
			return actionDoneMsg{action: "retry", catalogID: selected.ID, err: errors.New("file is no longer failed")}
		}
		return actionDoneMsg{action: "retry", catalogID: selected.ID, result: ports.CatalogStatusPending}
	}
}

// resolveCmd resolves the first open quarantine record of the selected file.
func (m *catalogModel) resolveCmd() tea.Cmd {
	selected, ok := m.selectedFile()
	if !ok {
		m.status = "没有可操作文件"
		return nil
	}
	if m.quarantine == nil || m.recordsFor != selected.ID || len(m.records) == 0 {
		m.status = fmt.Sprintf("#%d 没有隔离记录", selected.ID)
		return nil
	}
	record := m.records[0]
	m.status = "执行 resolve 中..."
	return func() tea.Msg {
		if err := m.quarantine.Resolve(m.ctx, record.ID); err != nil {
			return actionDoneMsg{action: "resolve", catalogID: selected.ID, err: err}
		}
		return actionDoneMsg{action: "resolve", catalogID: selected.ID, result: fmt.Sprintf("q%d", record.ID)}
	}
}

func (m *catalogModel) selectedFile() (ports.CatalogFile, bool) {
	if len(m.files) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.files) {
		return ports.CatalogFile{}, false
	}
	return m.files[m.selectedIndex], true
}

func (m *catalogModel) appendAuditLog(action string, catalogID uint64, result string, opErr error) {
	line := fmt.Sprintf("%s %s #%d -> %s", time.Now().Format("15:04:05"), action, catalogID, result)
	if opErr != nil {
		line += " (" + opErr.Error() + ")"
		logging.Warn(m.ctx, "console action failed",
			slog.String("action", action),
			slog.Uint64("catalog_id", catalogID),
			slog.String("err", opErr.Error()),
		)
	} else {
		logging.Info(m.ctx, "console action done",
			slog.String("action", action),
			slog.Uint64("catalog_id", catalogID),
			slog.String("result", result),
		)
	}
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

// summarizeCounts renders one line per status, domains sorted by name.
func summarizeCounts(counts []ports.CatalogCount) []string {
	byStatus := map[string][]ports.CatalogCount{}
	totals := map[string]int64{}
	for _, c := range counts {
		byStatus[c.Status] = append(byStatus[c.Status], c)
		totals[c.Status] += c.Count
	}
	statuses := make([]string, 0, len(byStatus))
	for status := range byStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		group := byStatus[status]
		sort.Slice(group, func(i, j int) bool { return group[i].Domain < group[j].Domain })
		parts := make([]string, 0, len(group))
		for _, c := range group {
			parts = append(parts, fmt.Sprintf("%s=%d", c.Domain, c.Count))
		}
		lines = append(lines, fmt.Sprintf("%s %d (%s)", status, totals[status], strings.Join(parts, " ")))
	}
	return lines
}

func domainLabel(file ports.CatalogFile) string {
	if file.SubDomain == "" {
		return file.DataDomain
	}
	return file.DataDomain + "/" + file.SubDomain
}

func normalizeStatusFilter(input string) string {
	value := strings.ToLower(strings.TrimSpace(input))
	for _, status := range statusCycle {
		if value == status {
			return value
		}
	}
	return ""
}

func nextStatus(current string) string {
	for i, status := range statusCycle {
		if status == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
