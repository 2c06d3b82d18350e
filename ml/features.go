package ml

import (
	"sort"

	"go.uber.org/zap"

	"martsales/monitoring"
	"martsales/sales"
)

// DefaultReferenceYear is the year outlet age is measured from. It is fixed so that
// predictions are reproducible and has to match the year used when the model was
// trained.
const DefaultReferenceYear = 2026

// Derived and encoded column names.
const (
	ColumnOutletAge = "Outlet_Age"
)

var fatContentCodes = map[string]float64{
	"Low Fat": 0,
	"Regular": 1,
}

var outletSizeCodes = map[string]float64{
	"Small":  0,
	"Medium": 1,
	"High":   2,
}

// categorical is a one-hot expanded field. The alphabetically first entry of its
// vocabulary is the dropped baseline.
type categorical struct {
	field      string
	vocabulary []string
	value      func(req sales.Request) (string, bool)
}

func (c categorical) baseline() string {
	vocab := append([]string(nil), c.vocabulary...)
	sort.Strings(vocab)
	return vocab[0]
}

// Expansion order matches the column order the model was trained with.
var categoricals = []categorical{
	{
		field: sales.FieldItemType,
		vocabulary: []string{
			"Baking Goods", "Breads", "Breakfast", "Canned", "Dairy",
			"Frozen Foods", "Fruits and Vegetables", "Hard Drinks",
			"Health and Hygiene", "Household", "Meat", "Others",
			"Seafood", "Snack Foods", "Soft Drinks", "Starchy Foods",
		},
		value: func(req sales.Request) (string, bool) { return deref(req.ItemType) },
	},
	{
		field: sales.FieldOutletIdentifier,
		vocabulary: []string{
			"OUT010", "OUT013", "OUT017", "OUT018", "OUT019",
			"OUT027", "OUT035", "OUT045", "OUT046", "OUT049",
		},
		value: func(req sales.Request) (string, bool) { return deref(req.OutletIdentifier) },
	},
	{
		field:      sales.FieldOutletLocation,
		vocabulary: []string{"Tier 1", "Tier 2", "Tier 3"},
		value:      func(req sales.Request) (string, bool) { return req.OutletLocationType, true },
	},
	{
		field:      sales.FieldOutletType,
		vocabulary: []string{"Grocery Store", "Supermarket Type1", "Supermarket Type2", "Supermarket Type3"},
		value:      func(req sales.Request) (string, bool) { return req.OutletType, true },
	},
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// IndicatorColumn names the one-hot column for value of field.
func IndicatorColumn(field, value string) string {
	return field + "_" + value
}

// AllColumns lists every column the transformer can produce for in-vocabulary input,
// in the order it produces them. Useful for building or checking model artifacts.
func AllColumns() []string {
	cols := []string{
		sales.FieldItemWeight, sales.FieldItemFatContent, sales.FieldItemVisibility,
		sales.FieldItemMRP, sales.FieldOutletSize, ColumnOutletAge,
	}
	for _, c := range categoricals {
		base := c.baseline()
		vocab := append([]string(nil), c.vocabulary...)
		sort.Strings(vocab)
		for _, v := range vocab {
			if v != base {
				cols = append(cols, IndicatorColumn(c.field, v))
			}
		}
	}
	return cols
}

// FeatureVector is one ordered, named numeric row.
type FeatureVector struct {
	Columns []string
	Values  []float64
}

func (v FeatureVector) Len() int {
	return len(v.Columns)
}

// Get returns the value of a named column.
func (v FeatureVector) Get(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Reindex aligns the row to columns: missing columns become 0 and columns not listed
// are dropped.
func (v FeatureVector) Reindex(columns []string) FeatureVector {
	present := make(map[string]float64, len(v.Columns))
	for i, c := range v.Columns {
		present[c] = v.Values[i]
	}
	out := FeatureVector{
		Columns: append([]string(nil), columns...),
		Values:  make([]float64, len(columns)),
	}
	for i, c := range columns {
		out.Values[i] = present[c]
	}
	return out
}

func (v *FeatureVector) add(column string, value float64) {
	v.Columns = append(v.Columns, column)
	v.Values = append(v.Values, value)
}

// Transformer turns a validated request into the row a model consumes. It holds no
// per-request state and is safe for concurrent use.
type Transformer struct {
	referenceYear int
	logger        *zap.Logger
	metrics       *monitoring.Metrics
}

func NewTransformer(referenceYear int, logger *zap.Logger, metrics *monitoring.Metrics) *Transformer {
	if referenceYear == 0 {
		referenceYear = DefaultReferenceYear
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{referenceYear: referenceYear, logger: logger, metrics: metrics}
}

func (t *Transformer) ReferenceYear() int {
	return t.referenceYear
}

// Encode derives, encodes and one-hot expands req without aligning it to any model.
func (t *Transformer) Encode(req sales.Request) FeatureVector {
	var v FeatureVector
	v.add(sales.FieldItemWeight, req.ItemWeight)
	v.add(sales.FieldItemFatContent, fatContentCodes[req.ItemFatContent])
	v.add(sales.FieldItemVisibility, req.ItemVisibility)
	v.add(sales.FieldItemMRP, req.ItemMRP)
	v.add(sales.FieldOutletSize, outletSizeCodes[req.OutletSize])
	// the establishment year itself is not a model input
	v.add(ColumnOutletAge, float64(t.referenceYear-req.OutletEstablishmentYear))

	for _, c := range categoricals {
		value, ok := c.value(req)
		if !ok || value == c.baseline() {
			continue
		}
		v.add(IndicatorColumn(c.field, value), 1)
	}
	return v
}

// Transform encodes req and aligns it to expected. With no expected columns the
// encoded row is returned as is and the skip is logged.
func (t *Transformer) Transform(req sales.Request, expected []string) FeatureVector {
	v := t.Encode(req)
	if len(expected) == 0 {
		t.logger.Warn("no model feature names available, feature alignment skipped",
			zap.Int("columns", v.Len()))
		t.metrics.AlignmentSkipped()
		return v
	}
	aligned := t.Reindex(v, expected)
	t.logger.Debug("processed input columns", zap.Strings("columns", aligned.Columns))
	return aligned
}

// Reindex is FeatureVector.Reindex with a debug log of the discarded columns.
func (t *Transformer) Reindex(v FeatureVector, expected []string) FeatureVector {
	if ce := t.logger.Check(zap.DebugLevel, "discarded unknown columns"); ce != nil {
		known := make(map[string]struct{}, len(expected))
		for _, c := range expected {
			known[c] = struct{}{}
		}
		var dropped []string
		for _, c := range v.Columns {
			if _, ok := known[c]; !ok {
				dropped = append(dropped, c)
			}
		}
		if len(dropped) > 0 {
			ce.Write(zap.Strings("columns", dropped))
		}
	}
	return v.Reindex(expected)
}
