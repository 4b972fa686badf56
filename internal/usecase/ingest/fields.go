package ingest

import (
	"strconv"
	"strings"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

const (
	headerScanRows     = 20
	minHeaderCells     = 3
	firstSheetMinRows  = 5
	sheetRowScoreLimit = 50
)

var defaultHeaderTokens = []string{
	"sku", "seller", "product", "item", "title", "name",
	"商品", "标题", "名称", "销量", "浏览", "订单", "订单编号", "商品id", "商品编号",
}

// Table is a sheet after header inference. Every row has len(Columns)
// cells.
type Table struct {
	Sheet     string
	HeaderRow int
	Columns   []string
	Rows      [][]string
}

func (t Table) Len() int { return len(t.Rows) }

func (t Table) Empty() bool { return len(t.Rows) == 0 || len(t.Columns) == 0 }

// Find returns the first column, in column order, whose lowercased name
// contains any keyword.
func (t Table) Find(keywords ...string) (int, bool) {
	return t.find(nil, keywords)
}

// FindExact returns the first candidate that equals a column name, ignoring
// case and surrounding space.
func (t Table) FindExact(candidates ...string) (int, bool) {
	return t.findExact(nil, candidates)
}

func (t Table) find(taken map[int]bool, keywords []string) (int, bool) {
	for i, col := range t.Columns {
		if taken[i] {
			continue
		}
		lower := strings.ToLower(col)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return i, true
			}
		}
	}
	return -1, false
}

func (t Table) findExact(taken map[int]bool, candidates []string) (int, bool) {
	for _, cand := range candidates {
		want := strings.ToLower(strings.TrimSpace(cand))
		if want == "" {
			continue
		}
		for i, col := range t.Columns {
			if !taken[i] && strings.ToLower(col) == want {
				return i, true
			}
		}
	}
	return -1, false
}

// Record maps column names to the cell text of one row.
func (t Table) Record(row []string) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(row) {
			out[col] = row[i]
		}
	}
	return out
}

// HeaderRecord is the payload of a file-level quarantine record.
func (t Table) HeaderRecord() map[string]any {
	cols := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c
	}
	return map[string]any{"sheet": t.Sheet, "columns": cols, "rows": len(t.Rows)}
}

// BuildTable picks the sheet to ingest and infers its header. The first
// sheet is taken when it has enough data rows; otherwise the sheet with the
// best columns-plus-rows score wins.
func BuildTable(sheets []ports.Sheet, extraTokens []string) Table {
	tokens := append(append([]string{}, defaultHeaderTokens...), extraTokens...)

	var tables []Table
	for _, sheet := range sheets {
		tables = append(tables, tableFromGrid(sheet.Name, sheet.Rows, tokens))
	}
	if len(tables) == 0 {
		return Table{}
	}
	if tables[0].Len() > firstSheetMinRows {
		return tables[0]
	}

	best, bestScore := tables[0], -1
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		score := len(t.Columns) + min(sheetRowScoreLimit, t.Len())
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func tableFromGrid(name string, grid [][]string, tokens []string) Table {
	out := Table{Sheet: name}
	if len(grid) == 0 {
		return out
	}
	header := inferHeader(grid, tokens)
	out.HeaderRow = header

	var keep []int
	seen := map[string]int{}
	for i, cell := range grid[header] {
		col := strings.TrimSpace(cell)
		if col == "" || strings.HasPrefix(strings.ToLower(col), "unnamed") {
			continue
		}
		if n := seen[col]; n > 0 {
			seen[col] = n + 1
			col = col + "." + strconv.Itoa(n)
		} else {
			seen[col] = 1
		}
		keep = append(keep, i)
		out.Columns = append(out.Columns, col)
	}

	for _, raw := range grid[header+1:] {
		row := make([]string, len(keep))
		empty := true
		for j, idx := range keep {
			if idx < len(raw) {
				row[j] = strings.TrimSpace(raw[idx])
			}
			if row[j] != "" {
				empty = false
			}
		}
		if !empty {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// inferHeader scores the first rows by header token hits. Rows with fewer
// than three non-empty cells are never a header.
func inferHeader(grid [][]string, tokens []string) int {
	best, bestScore := 0, -1
	for i := 0; i < len(grid) && i < headerScanRows; i++ {
		var cells []string
		for _, c := range grid[i] {
			c = strings.TrimSpace(c)
			if c != "" && !strings.EqualFold(c, "nan") {
				cells = append(cells, strings.ToLower(c))
			}
		}
		if len(cells) < minHeaderCells {
			continue
		}
		joined := strings.Join(cells, " ")
		score := 0
		for _, tok := range tokens {
			if tok != "" && strings.Contains(joined, tok) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// IsManifest reports export metadata tables that carry no fact rows.
func IsManifest(t Table) bool {
	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		cols[strings.ToLower(c)] = true
	}
	if !cols["data_type"] || !cols["file_path"] {
		return false
	}
	for _, key := range []string{"sku", "id", "item_id", "product_id", "order_id"} {
		if cols[key] {
			return false
		}
	}
	return true
}

// Canonical field names.
const (
	FieldSKU         = "sku"
	FieldVariantID   = "variant_id"
	FieldProductName = "product_name"
	FieldImage       = "image"
	FieldShopID      = "shop_id"
	FieldSales       = "sales"
	FieldRevenue     = "revenue"
	FieldViews       = "views"
	FieldVisitors    = "unique_visitors"
	FieldAddToCart   = "add_to_cart"
	FieldConversion  = "conversion_rate"
	FieldDate        = "date"
	FieldOrders      = "orders"
	FieldGMV         = "gmv"
	FieldRefund      = "refund"
	FieldOrderID     = "order_id"
	FieldOrderDate   = "order_date"
	FieldSubtotal    = "subtotal"
	FieldShipping    = "shipping_fee"
	FieldTax         = "tax"
	FieldDiscount    = "discount"
	FieldTotal       = "total"
	FieldRange       = "date_range"
	FieldChats       = "chats"
	FieldQuestions   = "questions"
	FieldSatisfied   = "satisfaction"
)

// fieldSpec is one canonical field: keyword containment is tried first,
// then the exact fallback names.
type fieldSpec struct {
	name     string
	exact    []string
	keywords []string
}

// Specs are ordered: a column claimed by an earlier field is not offered
// to later ones.
var productFields = []fieldSpec{
	{name: FieldVariantID, keywords: []string{"规格编号", "规格id", "model id", "model_id", "variation id", "variation_id", "变体", "型号"}},
	{name: FieldSKU, exact: []string{"id", "item_id", "product_id"}, keywords: []string{
		"sku", "seller_sku", "product_sku", "item_sku", "款号", "货号", "编码", "编号",
		"item id", "product id", "listing id", "商品id", "商品编号", "item_code", "product_code",
	}},
	{name: FieldShopID, exact: []string{"shop_id", "shopid", "店铺id", "store_id", "storeid"}},
	{name: FieldImage, keywords: []string{"image", "img", "picture", "thumbnail", "主图", "缩略图", "图片"}},
	{name: FieldProductName, keywords: []string{"name", "title", "product", "商品", "标题", "品名"}},
	{name: FieldRevenue, keywords: []string{"销售额", "gmv", "revenue", "amount", "销售金额", "总额", "总计", "商品交易总额"}},
	{name: FieldSales, keywords: []string{"销量", "sold", "sales", "orders", "units", "销售数量", "已售", "成交件数", "订单数"}},
	{name: FieldViews, keywords: []string{"页面浏览次数", "浏览量", "浏览", "pv", "page views", "曝光"}},
	{name: FieldVisitors, keywords: []string{"独立访客", "访客", "uv", "unique visitors"}},
	{name: FieldAddToCart, keywords: []string{"加购", "加入购物车", "add to cart"}},
	{name: FieldConversion, keywords: []string{"转化率", "conversion rate", "cvr", "成交率"}},
}

var variantAttributeKeywords = []string{"颜色", "尺码", "款式", "属性", "内存", "容量", "尺寸", "color", "size", "style"}

var trafficFields = []fieldSpec{
	{name: FieldDate, keywords: []string{"日期", "date"}},
	{name: FieldConversion, keywords: []string{"转化率", "conversion"}},
	{name: FieldViews, keywords: []string{"页面浏览次数", "浏览", "page view", "pv"}},
	{name: FieldVisitors, keywords: []string{"店铺页面访问量", "访客", "客户数", "visitor"}},
	{name: FieldOrders, keywords: []string{"订单数", "orders", "下单数"}},
	{name: FieldGMV, keywords: []string{"商品交易总额", "销售额", "gmv"}},
	{name: FieldRefund, keywords: []string{"退款金额", "退款", "refund"}},
}

var orderFields = []fieldSpec{
	{name: FieldOrderID, exact: []string{"order_id"}, keywords: []string{"订单编号", "订单号", "单号", "order id", "order sn", "order no"}},
	{name: FieldOrderDate, keywords: []string{"下单时间", "下单日期", "支付时间", "订单日期", "date"}},
	{name: FieldSubtotal, keywords: []string{"小计", "商品金额", "subtotal"}},
	{name: FieldShipping, keywords: []string{"运费", "shipping"}},
	{name: FieldTax, keywords: []string{"税", "tax"}},
	{name: FieldDiscount, keywords: []string{"折扣", "优惠", "discount"}},
	{name: FieldTotal, keywords: []string{"实付金额", "订单金额", "总金额", "合计", "total", "总计"}},
}

var aiAssistantFields = []fieldSpec{
	{name: FieldDate, keywords: []string{"日期", "date"}},
	{name: FieldVisitors, keywords: []string{"服务的访客", "访客", "visitor"}},
	{name: FieldQuestions, keywords: []string{"已回答的问题", "问题数", "questions"}},
	{name: FieldSatisfied, keywords: []string{"好评", "满意度", "satisfaction"}},
}

var agentFields = []fieldSpec{
	{name: FieldRange, keywords: []string{"日期期间", "日期范围", "date range", "period"}},
	{name: FieldVisitors, keywords: []string{"访客数", "访客", "visitor"}},
	{name: FieldChats, keywords: []string{"聊天询问", "询问", "chats"}},
	{name: FieldOrders, keywords: []string{"订单", "orders", "买家数"}},
	{name: FieldGMV, keywords: []string{"销售额", "gmv", "sales"}},
	{name: FieldSatisfied, keywords: []string{"满意度", "好评", "satisfaction"}},
}

func fieldSpecsFor(kind domainingest.IngesterKind) []fieldSpec {
	switch kind {
	case domainingest.IngesterProducts:
		return productFields
	case domainingest.IngesterOrders:
		return orderFields
	case domainingest.IngesterTraffic:
		return trafficFields
	case domainingest.IngesterServicesAgent:
		return agentFields
	case domainingest.IngesterServicesAIAssistant:
		return aiAssistantFields
	default:
		return nil
	}
}

// profileSection is the profile table a kind reads its overrides from.
func profileSection(kind domainingest.IngesterKind) string {
	switch kind {
	case domainingest.IngesterServicesAgent:
		return domainingest.SubDomainAgent
	case domainingest.IngesterServicesAIAssistant:
		return domainingest.SubDomainAIAssistant
	default:
		return kind.String()
	}
}

// FieldMap maps canonical field names to column indexes.
type FieldMap map[string]int

func (m FieldMap) Col(field string) (int, bool) {
	i, ok := m[field]
	return i, ok
}

// Value returns the trimmed cell of field in row, "" when unmapped.
func (m FieldMap) Value(row []string, field string) string {
	i, ok := m[field]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// DetectFields maps the kind's canonical fields onto table columns. Profile
// keywords for the platform are tried as exact names and then as keywords
// before the built-in lists.
func DetectFields(t Table, kind domainingest.IngesterKind, platform string, profile KeywordProfile) FieldMap {
	out := FieldMap{}
	taken := map[int]bool{}
	section := profileSection(kind)

	for _, spec := range fieldSpecsFor(kind) {
		var overrides []string
		if profile != nil {
			overrides = profile.Keywords(platform, section, spec.name)
		}

		col, ok := t.findExact(taken, overrides)
		if !ok {
			col, ok = t.find(taken, overrides)
		}
		if !ok {
			col, ok = t.find(taken, spec.keywords)
		}
		if !ok {
			col, ok = t.findExact(taken, spec.exact)
		}
		if ok {
			out[spec.name] = col
			taken[col] = true
		}
	}
	return out
}

// AttributeColumns lists the columns a synthetic variant id is built from.
func AttributeColumns(t Table, fields FieldMap) []int {
	used := map[int]bool{}
	for _, col := range fields {
		used[col] = true
	}
	var out []int
	for _, kw := range variantAttributeKeywords {
		if col, ok := t.find(used, []string{kw}); ok {
			out = append(out, col)
			used[col] = true
		}
	}
	return out
}

// Temporal classes of a date-like column.
const (
	TemporalDate     = "date"
	TemporalDateTime = "datetime"
)

// ClassifyTemporal returns datetime when at least half of the non-null
// samples carry a time of day.
func ClassifyTemporal(samples []string) string {
	total, withTime := 0, 0
	for _, s := range samples {
		if domainingest.IsSemanticNull(s) {
			continue
		}
		total++
		if hasTimeOfDay(strings.TrimSpace(s)) {
			withTime++
		}
	}
	if total > 0 && withTime*2 >= total {
		return TemporalDateTime
	}
	return TemporalDate
}

func hasTimeOfDay(s string) bool {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i+2 >= len(s) {
		return false
	}
	return isDigit(s[i-1]) && isDigit(s[i+1]) && isDigit(s[i+2])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// columnSamples returns up to n non-empty cells of a column.
func columnSamples(t Table, col int, n int) []string {
	var out []string
	for _, row := range t.Rows {
		if col < len(row) && row[col] != "" {
			out = append(out, row[col])
			if len(out) == n {
				break
			}
		}
	}
	return out
}
