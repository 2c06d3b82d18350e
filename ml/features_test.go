package ml

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"martsales/monitoring"
	"martsales/sales"
)

func strPtr(s string) *string { return &s }

func exampleRequest() sales.Request {
	return sales.Request{
		ItemWeight:              9.3,
		ItemFatContent:          "Low Fat",
		ItemVisibility:          0.016,
		ItemMRP:                 249.8,
		OutletSize:              "Medium",
		OutletLocationType:      "Tier 1",
		OutletType:              "Supermarket Type1",
		OutletEstablishmentYear: 1999,
	}
}

func TestEncodeExample(t *testing.T) {
	tr := NewTransformer(0, nil, nil)
	assert.Equal(t, DefaultReferenceYear, tr.ReferenceYear())

	v := tr.Encode(exampleRequest())
	assert.Equal(t, []string{
		"Item_Weight", "Item_Fat_Content", "Item_Visibility", "Item_MRP",
		"Outlet_Size", "Outlet_Age", "Outlet_Type_Supermarket Type1",
	}, v.Columns)
	assert.Equal(t, []float64{9.3, 0, 0.016, 249.8, 1, 27, 1}, v.Values)

	_, ok := v.Get("Outlet_Establishment_Year")
	assert.False(t, ok, "raw year must not reach the model")
}

func TestEncodeOrdinals(t *testing.T) {
	tr := NewTransformer(2026, nil, nil)
	tests := []struct {
		fat, size     string
		wantFat, want float64
	}{
		{"Low Fat", "Small", 0, 0},
		{"Regular", "Medium", 1, 1},
		{"Regular", "High", 1, 2},
	}
	for _, tt := range tests {
		req := exampleRequest()
		req.ItemFatContent = tt.fat
		req.OutletSize = tt.size
		v := tr.Encode(req)
		fat, _ := v.Get(sales.FieldItemFatContent)
		size, _ := v.Get(sales.FieldOutletSize)
		assert.Equal(t, tt.wantFat, fat)
		assert.Equal(t, tt.want, size)
	}
}

func TestEncodeDropsBaselines(t *testing.T) {
	tr := NewTransformer(2026, nil, nil)
	req := exampleRequest()
	req.OutletType = "Grocery Store"
	req.OutletLocationType = "Tier 3"
	req.ItemType = strPtr("Baking Goods")
	req.OutletIdentifier = strPtr("OUT049")

	v := tr.Encode(req)
	assert.Equal(t, []string{
		"Item_Weight", "Item_Fat_Content", "Item_Visibility", "Item_MRP",
		"Outlet_Size", "Outlet_Age",
		"Outlet_Identifier_OUT049", "Outlet_Location_Type_Tier 3",
	}, v.Columns)
}

func TestReferenceYearIsConfigurable(t *testing.T) {
	v := NewTransformer(2030, nil, nil).Encode(exampleRequest())
	age, ok := v.Get(ColumnOutletAge)
	require.True(t, ok)
	assert.Equal(t, 31.0, age)
}

func TestAllColumns(t *testing.T) {
	cols := AllColumns()
	assert.Len(t, cols, 35)
	assert.NotContains(t, cols, "Item_Type_Baking Goods")
	assert.NotContains(t, cols, "Outlet_Identifier_OUT010")
	assert.NotContains(t, cols, "Outlet_Location_Type_Tier 1")
	assert.NotContains(t, cols, "Outlet_Type_Grocery Store")
	assert.Contains(t, cols, "Item_Type_Starchy Foods")
}

func TestTransformAlignsToModelColumns(t *testing.T) {
	expected := AllColumns()
	tr := NewTransformer(2026, nil, nil)

	requests := map[string]sales.Request{"example": exampleRequest()}
	withOptional := exampleRequest()
	withOptional.ItemType = strPtr("Dairy")
	withOptional.OutletIdentifier = strPtr("OUT027")
	requests["optional fields"] = withOptional
	unknown := exampleRequest()
	unknown.ItemType = strPtr("Pet Food")
	unknown.OutletIdentifier = strPtr("OUT999")
	requests["unknown categories"] = unknown

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			v := tr.Transform(req, expected)
			assert.Equal(t, expected, v.Columns)
			require.Len(t, v.Values, len(expected))
			for i, col := range v.Columns {
				want := 0.0
				if enc, ok := tr.Encode(req).Get(col); ok {
					want = enc
				}
				assert.Equal(t, want, v.Values[i], col)
			}
		})
	}

	v := tr.Transform(withOptional, expected)
	dairy, _ := v.Get("Item_Type_Dairy")
	outlet, _ := v.Get("Outlet_Identifier_OUT027")
	breads, _ := v.Get("Item_Type_Breads")
	assert.Equal(t, 1.0, dairy)
	assert.Equal(t, 1.0, outlet)
	assert.Equal(t, 0.0, breads)
}

func TestTransformWithoutColumnListPassesThrough(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	tr := NewTransformer(2026, zap.New(core), metrics)

	v := tr.Transform(exampleRequest(), nil)
	assert.Equal(t, tr.Encode(exampleRequest()), v)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "alignment skipped")
}

func TestReindex(t *testing.T) {
	v := FeatureVector{Columns: []string{"a", "b", "extra"}, Values: []float64{1, 2, 3}}
	out := v.Reindex([]string{"b", "c", "a"})
	assert.Equal(t, []string{"b", "c", "a"}, out.Columns)
	assert.Equal(t, []float64{2, 0, 1}, out.Values)
	assert.Equal(t, 3, out.Len())
}
