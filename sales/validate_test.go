package sales

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }
func year(v Year) *Year        { return &v }

func validRaw() RawRequest {
	return RawRequest{
		ItemWeight:              float(9.3),
		ItemFatContent:          str("Low Fat"),
		ItemVisibility:          float(0.016),
		ItemMRP:                 float(249.8),
		OutletSize:              str("Medium"),
		OutletLocationType:      str("Tier 1"),
		OutletType:              str("Supermarket Type1"),
		OutletEstablishmentYear: year(1999),
	}
}

func TestValidateAcceptsExample(t *testing.T) {
	req, err := Validate(validRaw())
	require.NoError(t, err)
	assert.Equal(t, 9.3, req.ItemWeight)
	assert.Equal(t, "Low Fat", req.ItemFatContent)
	assert.Equal(t, 1999, req.OutletEstablishmentYear)
	assert.Nil(t, req.ItemType)
	assert.Nil(t, req.OutletIdentifier)
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *RawRequest)
		wantErr string
	}{
		{name: "min weight", mutate: func(r *RawRequest) { r.ItemWeight = float(0.1) }},
		{name: "max weight", mutate: func(r *RawRequest) { r.ItemWeight = float(50.0) }},
		{name: "zero visibility", mutate: func(r *RawRequest) { r.ItemVisibility = float(0) }},
		{name: "max visibility", mutate: func(r *RawRequest) { r.ItemVisibility = float(0.35) }},
		{name: "first year", mutate: func(r *RawRequest) { r.OutletEstablishmentYear = year(1980) }},
		{name: "last year", mutate: func(r *RawRequest) { r.OutletEstablishmentYear = year(2030) }},
		{name: "year too early", mutate: func(r *RawRequest) { r.OutletEstablishmentYear = year(1979) }, wantErr: "Outlet_Establishment_Year: must be >= 1980"},
		{name: "year too late", mutate: func(r *RawRequest) { r.OutletEstablishmentYear = year(2031) }, wantErr: "Outlet_Establishment_Year: must be <= 2030"},
		{name: "zero weight", mutate: func(r *RawRequest) { r.ItemWeight = float(0) }, wantErr: "Item_Weight: must be greater than 0"},
		{name: "negative price", mutate: func(r *RawRequest) { r.ItemMRP = float(-1) }, wantErr: "Item_MRP: must be greater than 0"},
		{name: "visibility too high", mutate: func(r *RawRequest) { r.ItemVisibility = float(0.36) }, wantErr: "Item_Visibility: must be <= 0.35"},
		{name: "negative visibility", mutate: func(r *RawRequest) { r.ItemVisibility = float(-0.01) }, wantErr: "Item_Visibility: must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := Validate(raw)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEnumsAreCaseSensitive(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RawRequest)
		field  string
	}{
		{"fat content", func(r *RawRequest) { r.ItemFatContent = str("low fat") }, FieldItemFatContent},
		{"fat content alias", func(r *RawRequest) { r.ItemFatContent = str("LF") }, FieldItemFatContent},
		{"outlet size", func(r *RawRequest) { r.OutletSize = str("medium") }, FieldOutletSize},
		{"location tier", func(r *RawRequest) { r.OutletLocationType = str("Tier 4") }, FieldOutletLocation},
		{"outlet type", func(r *RawRequest) { r.OutletType = str("Supermarket Type4") }, FieldOutletType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := Validate(raw)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.True(t, strings.HasPrefix(verr.Fields[0].Constraint, "must be one of '"))
		})
	}
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	_, err := Validate(RawRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, len(RequiredFeatures()))
	for i, name := range RequiredFeatures() {
		assert.Equal(t, name, verr.Fields[i].Field)
		assert.Equal(t, "field required", verr.Fields[i].Constraint)
	}
}

func TestValidateOptionalFields(t *testing.T) {
	raw := validRaw()
	raw.ItemType = str("   ")
	raw.OutletIdentifier = str("OUT049")
	req, err := Validate(raw)
	require.NoError(t, err)
	assert.Nil(t, req.ItemType)
	require.NotNil(t, req.OutletIdentifier)
	assert.Equal(t, "OUT049", *req.OutletIdentifier)

	// "Cafe" written with a combining accent normalises to the precomposed form.
	raw.ItemType = str("Cafe\u0301")
	req, err = Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", *req.ItemType)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"Item_Weight":9.3,"Item_Fat_Content":"Low Fat","Item_Visibility":0.016,"Item_MRP":249.8,"Outlet_Size":"Medium","Outlet_Location_Type":"Tier 1","Outlet_Type":"Supermarket Type1","Outlet_Establishment_Year":1999,"extra":true}`},
		{name: "empty", body: ``, wantErr: "body: request body is empty"},
		{name: "syntax", body: `{"Item_Weight":`, wantErr: "body:"},
		{name: "wrong type", body: `{"Item_Weight":"heavy"}`, wantErr: "Item_Weight: must be a number"},
		{name: "whole float year", body: `{"Outlet_Establishment_Year":1999.0}`},
		{name: "fractional year", body: `{"Outlet_Establishment_Year":1999.5}`, wantErr: "Outlet_Establishment_Year: must be an integer"},
		{name: "string year", body: `{"Outlet_Establishment_Year":"1999"}`, wantErr: "Outlet_Establishment_Year: must be an integer"},
		{name: "two objects", body: `{} {}`, wantErr: "body: must contain a single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeAndValidateWholeFloatYear(t *testing.T) {
	body := `{"Item_Weight":9.3,"Item_Fat_Content":"Low Fat","Item_Visibility":0.016,"Item_MRP":249.8,"Outlet_Size":"Medium","Outlet_Location_Type":"Tier 1","Outlet_Type":"Supermarket Type1","Outlet_Establishment_Year":1999.0}`
	req, err := DecodeAndValidate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 1999, req.OutletEstablishmentYear)

	_, err = DecodeAndValidate(strings.NewReader(strings.Replace(body, "1999.0", "1979.0", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Outlet_Establishment_Year: must be >= 1980")
}

func TestFeatureLists(t *testing.T) {
	assert.Len(t, RequiredFeatures(), 8)
	assert.Equal(t, []string{"Item_Type", "Outlet_Identifier"}, OptionalFeatures())
}
