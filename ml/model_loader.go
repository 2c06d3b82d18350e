package ml

import "fmt"

const (
	ModelTypeXGBoost = "xgboost"
	ModelTypeTree    = "tree"
)

// LoadModel reads a model artifact from disk. An empty modelType means xgboost.
func LoadModel(modelType, path string) (Regressor, error) {
	switch modelType {
	case "", ModelTypeXGBoost:
		model, err := LoadXGBoost(path)
		if err != nil {
			return nil, err
		}
		return model, nil
	case ModelTypeTree:
		tree := &RegressionTree{}
		if err := tree.Load(path); err != nil {
			return nil, err
		}
		return tree, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedModel, modelType)
	}
}
