package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// XGBoostModel evaluates a gradient boosted tree ensemble saved with
// Booster.save_model in XGBoost's JSON format.
type XGBoostModel struct {
	trees        []*RegressionTree
	weights      []float32
	baseMargin   float32
	link         func(float64) float64
	objective    string
	featureNames []string
	numFeature   int
}

type xgbFile struct {
	Learner struct {
		FeatureNames      []string `json:"feature_names"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster xgbBooster `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbBooster struct {
	Name  string `json:"name"`
	Model struct {
		Trees []xgbTree `json:"trees"`
	} `json:"model"`
	// dart wraps a gbtree and scales each tree by its drop weight
	GBTree     *xgbBooster `json:"gbtree"`
	WeightDrop []float64   `json:"weight_drop"`
}

type xgbTree struct {
	LeftChildren    []int      `json:"left_children"`
	RightChildren   []int      `json:"right_children"`
	SplitIndices    []int      `json:"split_indices"`
	SplitConditions []float64  `json:"split_conditions"`
	DefaultLeft     []flexBool `json:"default_left"`
	SplitType       []int      `json:"split_type"`
}

// flexBool accepts both 0/1 and true/false; XGBoost releases disagree on which one
// default_left uses.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// LoadXGBoost reads an XGBoost JSON model file.
func LoadXGBoost(path string) (*XGBoostModel, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model, err := ParseXGBoost(payload)
	if err != nil {
		return nil, fmt.Errorf("xgboost model %s: %w", path, err)
	}
	return model, nil
}

// ParseXGBoost decodes an XGBoost JSON model document.
func ParseXGBoost(payload []byte) (*XGBoostModel, error) {
	var file xgbFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	learner := file.Learner

	baseScore, err := parseBaseScore(learner.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}
	model := &XGBoostModel{
		objective:    learner.Objective.Name,
		featureNames: learner.FeatureNames,
	}
	if n := learner.LearnerModelParam.NumFeature; n != "" {
		if model.numFeature, err = strconv.Atoi(n); err != nil {
			return nil, fmt.Errorf("num_feature %q: %w", n, err)
		}
	}

	switch model.objective {
	case "", "reg:squarederror", "reg:linear", "reg:absoluteerror", "reg:pseudohubererror":
		model.baseMargin = float32(baseScore)
		model.link = func(x float64) float64 { return x }
	case "reg:tweedie", "reg:gamma", "count:poisson":
		if baseScore <= 0 {
			return nil, fmt.Errorf("base_score %v must be positive for %s", baseScore, model.objective)
		}
		model.baseMargin = float32(math.Log(baseScore))
		model.link = math.Exp
	default:
		return nil, fmt.Errorf("%w: objective %q", ErrUnsupportedModel, model.objective)
	}

	booster := learner.GradientBooster
	var drop []float64
	if booster.Name == "dart" {
		if booster.GBTree == nil {
			return nil, errors.New("dart booster without gbtree")
		}
		drop = booster.WeightDrop
		booster = *booster.GBTree
	} else if booster.Name != "" && booster.Name != "gbtree" {
		return nil, fmt.Errorf("%w: booster %q", ErrUnsupportedModel, booster.Name)
	}

	trees := booster.Model.Trees
	if len(trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	if drop != nil && len(drop) != len(trees) {
		return nil, fmt.Errorf("weight_drop has %d entries for %d trees", len(drop), len(trees))
	}
	for i, raw := range trees {
		tree, err := raw.convert(model.featureNames)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		weight := 1.0
		if drop != nil {
			weight = drop[i]
		}
		model.trees = append(model.trees, tree)
		model.weights = append(model.weights, float32(weight))
	}
	return model, nil
}

// parseBaseScore handles both "5E-1" and the bracketed "[5E-1]" written by XGBoost 2.1+.
func parseBaseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0.5, nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, ','); i >= 0 {
		return 0, fmt.Errorf("%w: multi-target base_score %q", ErrUnsupportedModel, s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("base_score %q: %w", s, err)
	}
	return v, nil
}

func (t xgbTree) convert(featureNames []string) (*RegressionTree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return nil, errors.New("tree has no nodes")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return nil, errors.New("node arrays differ in length")
	}
	if len(t.DefaultLeft) != 0 && len(t.DefaultLeft) != n {
		return nil, errors.New("default_left length mismatch")
	}
	for _, st := range t.SplitType {
		if st != 0 {
			return nil, fmt.Errorf("%w: categorical splits", ErrUnsupportedModel)
		}
	}

	nodes := make([]TreeNode, n)
	for i := 0; i < n; i++ {
		if t.LeftChildren[i] == -1 {
			nodes[i] = TreeNode{
				FeatureIdx: -1,
				LeftChild:  -1,
				RightChild: -1,
				Value:      t.SplitConditions[i],
				IsLeaf:     true,
			}
			continue
		}
		defaultLeft := false
		if len(t.DefaultLeft) == n {
			defaultLeft = bool(t.DefaultLeft[i])
		}
		nodes[i] = TreeNode{
			FeatureIdx:  t.SplitIndices[i],
			Threshold:   t.SplitConditions[i],
			LeftChild:   t.LeftChildren[i],
			RightChild:  t.RightChildren[i],
			DefaultLeft: defaultLeft,
		}
	}
	return NewRegressionTree(nodes, featureNames)
}

// Predict accumulates the margin in float32 like XGBoost, so the rounded result
// matches what the same artifact yields there.
func (m *XGBoostModel) Predict(values []float64) (float64, error) {
	if len(m.trees) == 0 {
		return 0, ErrModelNotLoaded
	}
	margin := m.baseMargin
	for i, tree := range m.trees {
		leaf, err := tree.evaluate32(values)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		margin += float32(m.weights[i] * leaf)
	}
	return float64(float32(m.link(float64(margin)))), nil
}

func (m *XGBoostModel) FeatureNames() []string {
	return m.featureNames
}

func (m *XGBoostModel) NumFeatures() int {
	if len(m.featureNames) > 0 {
		return len(m.featureNames)
	}
	return m.numFeature
}

func (m *XGBoostModel) Name() string {
	return "XGBoost"
}

// Objective reports the learning objective recorded in the artifact.
func (m *XGBoostModel) Objective() string {
	return m.objective
}

func (m *XGBoostModel) NumTrees() int {
	return len(m.trees)
}
