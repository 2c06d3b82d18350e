package ml

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stumpNodes() []TreeNode {
	return []TreeNode{
		{FeatureIdx: 1, Threshold: 0.5, LeftChild: 1, RightChild: 2, DefaultLeft: true},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: -3, IsLeaf: true},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: 7, IsLeaf: true},
	}
}

func TestRegressionTreePredict(t *testing.T) {
	tree, err := NewRegressionTree(stumpNodes(), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"below threshold", []float64{0, 0.1}, -3},
		{"threshold goes right", []float64{0, 0.5}, 7},
		{"above threshold", []float64{0, 2}, 7},
		{"nan follows default", []float64{0, math.NaN()}, -3},
		{"short row follows default", []float64{0}, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.Predict(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 2, tree.NumFeatures())
}

func TestRegressionTreeRejectsBrokenNodes(t *testing.T) {
	_, err := NewRegressionTree(nil, nil)
	assert.Error(t, err)

	nodes := stumpNodes()
	nodes[0].RightChild = 9
	_, err = NewRegressionTree(nodes, nil)
	assert.Error(t, err)

	nodes = stumpNodes()
	nodes[0].LeftChild = 0
	_, err = NewRegressionTree(nodes, nil)
	assert.Error(t, err)
}

func TestRegressionTreeCycleDetected(t *testing.T) {
	nodes := []TreeNode{
		{FeatureIdx: 0, Threshold: 1, LeftChild: 1, RightChild: 2},
		{FeatureIdx: 0, Threshold: 1, LeftChild: 1, RightChild: 1},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, IsLeaf: true},
	}
	tree, err := NewRegressionTree(nodes, nil)
	require.NoError(t, err)
	_, err = tree.Predict([]float64{0})
	assert.Error(t, err)
}

func TestRegressionTreeLoad(t *testing.T) {
	tree := &RegressionTree{}
	require.NoError(t, tree.Load(filepath.Join("testdata", "tree_model.json")))
	assert.Len(t, tree.FeatureNames(), 35)

	got, err := tree.Predict([]float64{9.3, 0, 0.016, 249.8})
	require.NoError(t, err)
	assert.Equal(t, 2400.0, got)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes":[]}`), 0o600))
	assert.Error(t, (&RegressionTree{}).Load(bad))
}
