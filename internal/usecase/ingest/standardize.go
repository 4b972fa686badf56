package ingest

import (
	"context"
	"log/slog"
	"time"

	"xihong/internal/bootstrap/logging"
	domainingest "xihong/internal/domain/ingest"
)

const dayFirstSampleSize = 10

type fieldClass int

const (
	classText fieldClass = iota
	classDate
	classDateTime
	classNumber
	classPercent
)

// fieldClasses lists the typed fields of each ingester. Unlisted mapped
// fields are text. Date fields may be promoted to datetime by the column's
// samples.
var fieldClasses = map[domainingest.IngesterKind]map[string]fieldClass{
	domainingest.IngesterProducts: {
		FieldSales:      classNumber,
		FieldRevenue:    classNumber,
		FieldViews:      classNumber,
		FieldVisitors:   classNumber,
		FieldAddToCart:  classNumber,
		FieldConversion: classPercent,
	},
	domainingest.IngesterTraffic: {
		FieldDate:       classDate,
		FieldViews:      classNumber,
		FieldVisitors:   classNumber,
		FieldOrders:     classNumber,
		FieldGMV:        classNumber,
		FieldRefund:     classNumber,
		FieldConversion: classPercent,
	},
	domainingest.IngesterOrders: {
		FieldOrderDate: classDate,
		FieldSubtotal:  classNumber,
		FieldShipping:  classNumber,
		FieldTax:       classNumber,
		FieldDiscount:  classNumber,
		FieldTotal:     classNumber,
	},
	domainingest.IngesterServicesAIAssistant: {
		FieldDate:      classDate,
		FieldVisitors:  classNumber,
		FieldQuestions: classNumber,
		FieldSatisfied: classPercent,
	},
	domainingest.IngesterServicesAgent: {
		FieldVisitors:  classNumber,
		FieldChats:     classNumber,
		FieldOrders:    classNumber,
		FieldGMV:       classNumber,
		FieldSatisfied: classPercent,
	},
}

// StandardRow is one typed row. It is built once and only read afterwards.
type StandardRow struct {
	number  int
	dates   map[string]time.Time
	numbers map[string]float64
	texts   map[string]string
	missing map[string]bool
}

// Number is the 1-based data row number within the table.
func (r StandardRow) Number() int { return r.number }

func (r StandardRow) Date(field string) (time.Time, bool) {
	d, ok := r.dates[field]
	return d, ok
}

// Float returns the numeric value of field; empty and unparseable cells
// read as 0.
func (r StandardRow) Float(field string) float64 { return r.numbers[field] }

// Has reports whether a numeric field carried a parseable value.
func (r StandardRow) Has(field string) bool {
	_, mapped := r.numbers[field]
	return mapped && !r.missing[field]
}

// Text is the trimmed cell text of any mapped field.
func (r StandardRow) Text(field string) string { return r.texts[field] }

func (r StandardRow) Missing(field string) bool { return r.missing[field] }

// Standardizer types the rows of one table. The day-first hint is fixed
// when it is built.
type Standardizer struct {
	fields   FieldMap
	classes  map[string]fieldClass
	dayFirst domainingest.DayFirst
	warned   map[string]bool
}

func NewStandardizer(t Table, fields FieldMap, kind domainingest.IngesterKind) *Standardizer {
	s := &Standardizer{
		fields:  fields,
		classes: make(map[string]fieldClass),
		warned:  make(map[string]bool),
	}

	var dateSamples []string
	for field, class := range fieldClasses[kind] {
		col, ok := fields.Col(field)
		if !ok {
			continue
		}
		if class == classDate {
			samples := columnSamples(t, col, dayFirstSampleSize)
			if ClassifyTemporal(samples) == TemporalDateTime {
				class = classDateTime
			}
			dateSamples = append(dateSamples, samples...)
		}
		s.classes[field] = class
	}
	if col, ok := fields.Col(FieldRange); ok {
		for _, sample := range columnSamples(t, col, dayFirstSampleSize) {
			if start, end, ok := domainingest.SplitDateRange(sample); ok {
				dateSamples = append(dateSamples, start, end)
			}
		}
	}
	if len(dateSamples) > dayFirstSampleSize {
		dateSamples = dateSamples[:dayFirstSampleSize]
	}
	s.dayFirst = domainingest.DetectDayFirst(dateSamples)
	return s
}

func (s *Standardizer) DayFirst() domainingest.DayFirst { return s.dayFirst }

// Standardize types one raw row. number is the 1-based data row number.
func (s *Standardizer) Standardize(ctx context.Context, row []string, number int) StandardRow {
	out := StandardRow{
		number:  number,
		dates:   make(map[string]time.Time),
		numbers: make(map[string]float64),
		texts:   make(map[string]string, len(s.fields)),
		missing: make(map[string]bool),
	}

	for field, col := range s.fields {
		cell := ""
		if col < len(row) {
			cell = row[col]
		}
		out.texts[field] = cell

		switch class := s.classes[field]; class {
		case classDate, classDateTime:
			if d, ok := domainingest.ParseDate(cell, s.dayFirst, class == classDateTime); ok {
				out.dates[field] = d
			} else if !domainingest.IsSemanticNull(cell) {
				s.warnOnce(ctx, field, cell, "unparseable date cell ignored")
			}
		case classNumber, classPercent:
			parse := domainingest.ParseNumber
			if class == classPercent {
				parse = domainingest.ParsePercent
			}
			v, ok := parse(cell)
			if !ok {
				if !domainingest.IsSemanticNull(cell) {
					s.warnOnce(ctx, field, cell, "unparseable number cell read as 0")
				}
				v = 0
				out.missing[field] = true
			}
			out.numbers[field] = v
		}
	}
	return out
}

// ParseRange splits a "start - end" cell into its two dates.
func (s *Standardizer) ParseRange(text string) (time.Time, time.Time, bool) {
	left, right, ok := domainingest.SplitDateRange(text)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start, okStart := domainingest.ParseDate(left, s.dayFirst, false)
	end, okEnd := domainingest.ParseDate(right, s.dayFirst, false)
	if !okStart || !okEnd {
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		start, end = end, start
	}
	return start, end, true
}

func (s *Standardizer) warnOnce(ctx context.Context, field string, sample string, msg string) {
	if s.warned[field] {
		return
	}
	s.warned[field] = true
	logging.Warn(ctx, msg, slog.String("field", field), slog.String("sample", sample))
}
