package ml

import "errors"

var (
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrInference        = errors.New("inference failed")
)

// Regressor is a loaded, read-only model. Implementations must be safe for
// concurrent Predict calls.
type Regressor interface {
	// Predict scores one feature row. Feature names are never checked here; a
	// value the row does not carry is treated as missing.
	Predict(values []float64) (float64, error)
	// FeatureNames returns the ordered column list the model was trained on, or nil
	// when the artifact does not record it.
	FeatureNames() []string
	NumFeatures() int
	Name() string
}
