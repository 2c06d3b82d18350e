// Package sales describes a single item/outlet prediction request and its response.
package sales

// JSON field names, kept in the casing of the training dataset.
const (
	FieldItemWeight        = "Item_Weight"
	FieldItemFatContent    = "Item_Fat_Content"
	FieldItemVisibility    = "Item_Visibility"
	FieldItemMRP           = "Item_MRP"
	FieldOutletSize        = "Outlet_Size"
	FieldOutletLocation    = "Outlet_Location_Type"
	FieldOutletType        = "Outlet_Type"
	FieldOutletEstablished = "Outlet_Establishment_Year"
	FieldItemType          = "Item_Type"
	FieldOutletIdentifier  = "Outlet_Identifier"
)

const (
	// Currency every predicted amount is expressed in.
	Currency = "USD"
	// PredictionNote is attached to every prediction.
	PredictionNote = "XGBoost prediction - original scale"
)

// RawRequest is the wire form of a prediction request. Required fields are pointers
// so that an absent field can be told apart from a zero value.
type RawRequest struct {
	ItemWeight              *float64 `json:"Item_Weight" validate:"required,gt=0"`
	ItemFatContent          *string  `json:"Item_Fat_Content" validate:"required,oneof='Low Fat' 'Regular'"`
	ItemVisibility          *float64 `json:"Item_Visibility" validate:"required,gte=0,lte=0.35"`
	ItemMRP                 *float64 `json:"Item_MRP" validate:"required,gt=0"`
	OutletSize              *string  `json:"Outlet_Size" validate:"required,oneof='Small' 'Medium' 'High'"`
	OutletLocationType      *string  `json:"Outlet_Location_Type" validate:"required,oneof='Tier 1' 'Tier 2' 'Tier 3'"`
	OutletType              *string  `json:"Outlet_Type" validate:"required,oneof='Supermarket Type1' 'Supermarket Type2' 'Supermarket Type3' 'Grocery Store'"`
	OutletEstablishmentYear *Year    `json:"Outlet_Establishment_Year" validate:"required,gte=1980,lte=2030"`
	ItemType                *string  `json:"Item_Type,omitempty"`
	OutletIdentifier        *string  `json:"Outlet_Identifier,omitempty"`
}

// Request is a validated prediction request. It is only produced by Validate and
// is treated as read-only afterwards.
type Request struct {
	ItemWeight              float64 `json:"Item_Weight"`
	ItemFatContent          string  `json:"Item_Fat_Content"`
	ItemVisibility          float64 `json:"Item_Visibility"`
	ItemMRP                 float64 `json:"Item_MRP"`
	OutletSize              string  `json:"Outlet_Size"`
	OutletLocationType      string  `json:"Outlet_Location_Type"`
	OutletType              string  `json:"Outlet_Type"`
	OutletEstablishmentYear int     `json:"Outlet_Establishment_Year"`
	ItemType                *string `json:"Item_Type"`
	OutletIdentifier        *string `json:"Outlet_Identifier"`
}

// SalesPrediction is the scalar result plus its fixed metadata.
type SalesPrediction struct {
	PredictedSales float64 `json:"predicted_sales"`
	Currency       string  `json:"currency"`
	Note           string  `json:"note"`
}

// PredictionResponse is returned by POST /predict.
type PredictionResponse struct {
	InputData  Request         `json:"input_data"`
	Prediction SalesPrediction `json:"prediction"`
}

// RequiredFeatures lists the fields a request must carry.
func RequiredFeatures() []string {
	return []string{
		FieldItemWeight, FieldItemFatContent, FieldItemVisibility,
		FieldItemMRP, FieldOutletSize, FieldOutletLocation,
		FieldOutletType, FieldOutletEstablished,
	}
}

// OptionalFeatures lists the fields a request may omit.
func OptionalFeatures() []string {
	return []string{FieldItemType, FieldOutletIdentifier}
}
