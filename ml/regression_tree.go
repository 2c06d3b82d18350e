package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// RegressionTree is a single binary tree stored as a flat node array. Rows go left
// when the split feature is strictly less than the threshold; missing values follow
// DefaultLeft.
type RegressionTree struct {
	nodes        []TreeNode
	featureNames []string
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	DefaultLeft bool    `json:"default_left"`
	Value       float64 `json:"value"`
	IsLeaf      bool    `json:"is_leaf"`
}

type treeFile struct {
	FeatureNames []string   `json:"feature_names"`
	Nodes        []TreeNode `json:"nodes"`
}

func NewRegressionTree(nodes []TreeNode, featureNames []string) (*RegressionTree, error) {
	if err := checkNodes(nodes); err != nil {
		return nil, err
	}
	return &RegressionTree{nodes: nodes, featureNames: featureNames}, nil
}

func (t *RegressionTree) Predict(values []float64) (float64, error) {
	return t.evaluate(values)
}

func (t *RegressionTree) FeatureNames() []string {
	return t.featureNames
}

func (t *RegressionTree) NumFeatures() int {
	if len(t.featureNames) > 0 {
		return len(t.featureNames)
	}
	maxIdx := -1
	for _, node := range t.nodes {
		if !node.IsLeaf && node.FeatureIdx > maxIdx {
			maxIdx = node.FeatureIdx
		}
	}
	return maxIdx + 1
}

func (t *RegressionTree) Name() string {
	return "Regression tree"
}

func (t *RegressionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file treeFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return fmt.Errorf("decode tree model %s: %w", path, err)
	}
	if err := checkNodes(file.Nodes); err != nil {
		return fmt.Errorf("tree model %s: %w", path, err)
	}
	t.nodes = file.Nodes
	t.featureNames = file.FeatureNames
	return nil
}

func (t *RegressionTree) evaluate(values []float64) (float64, error) {
	leaf, err := t.walk(values, func(value, threshold float64) bool {
		return value < threshold
	})
	if err != nil {
		return 0, err
	}
	return leaf.Value, nil
}

// evaluate32 compares in single precision the way XGBoost's predictor does, so a
// value within one float32 step of a threshold takes the same branch there and here.
func (t *RegressionTree) evaluate32(values []float64) (float32, error) {
	leaf, err := t.walk(values, func(value, threshold float64) bool {
		return float32(value) < float32(threshold)
	})
	if err != nil {
		return 0, err
	}
	return float32(leaf.Value), nil
}

func (t *RegressionTree) walk(values []float64, less func(value, threshold float64) bool) (TreeNode, error) {
	if len(t.nodes) == 0 {
		return TreeNode{}, ErrModelNotLoaded
	}
	idx := 0
	// a well-formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(t.nodes); steps++ {
		node := t.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		value := math.NaN()
		if node.FeatureIdx < len(values) {
			value = values[node.FeatureIdx]
		}
		switch {
		case math.IsNaN(value):
			if node.DefaultLeft {
				idx = node.LeftChild
			} else {
				idx = node.RightChild
			}
		case less(value, node.Threshold):
			idx = node.LeftChild
		default:
			idx = node.RightChild
		}
	}
	return TreeNode{}, errors.New("invalid tree state: cycle detected")
}

func checkNodes(nodes []TreeNode) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		if node.LeftChild <= 0 || node.LeftChild >= len(nodes) ||
			node.RightChild <= 0 || node.RightChild >= len(nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
