package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
)

// DecisionTree is a CART classifier stored as a flat node array. Child links
// are indices into the array.
type DecisionTree struct {
	nodes      []TreeNode
	classCount int
	maxDepth   int
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	Distribution []float64 `json:"distribution,omitempty"`
	IsLeaf       bool      `json:"is_leaf"`
}

// NewDecisionTree returns an untrained tree. maxDepth <= 0 falls back to a
// shallow default.
func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &DecisionTree{maxDepth: maxDepth}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if dt.maxDepth <= 0 {
		dt.maxDepth = 3
	}

	dt.classCount = 0
	for _, label := range labels {
		if label < 0 {
			return errors.New("negative class label")
		}
		if label+1 > dt.classCount {
			dt.classCount = label + 1
		}
	}

	dt.nodes = dt.buildNode(features, labels, 0)
	return nil
}

// Predict returns the majority class at the reached leaf together with the
// leaf's class probability distribution.
func (dt *DecisionTree) Predict(features []float64) (int, []float64, error) {
	dist, err := dt.PredictProba(features)
	if err != nil {
		return 0, nil, err
	}
	return ArgMax(dist), dist, nil
}

// PredictProba walks the tree and returns the class distribution of the leaf
// the sample lands in.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			dist := make([]float64, len(node.Distribution))
			copy(dist, node.Distribution)
			return dist, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt.nodes)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return err
	}
	dt.nodes = nodes
	for _, node := range nodes {
		if node.IsLeaf && len(node.Distribution) > dt.classCount {
			dt.classCount = len(node.Distribution)
		}
	}
	return nil
}

// Nodes exposes the trained node array for the forest artifact.
func (dt *DecisionTree) Nodes() []TreeNode {
	return dt.nodes
}

// SetNodes installs a node array loaded from an artifact.
func (dt *DecisionTree) SetNodes(nodes []TreeNode) {
	dt.nodes = nodes
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	leaf := TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		Distribution: classDistribution(labels, dt.classCount),
		IsLeaf:       true,
	}

	if depth >= dt.maxDepth || isPure(labels) {
		return []TreeNode{leaf}
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return []TreeNode{leaf}
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return []TreeNode{leaf}
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	// Subtrees come back with self-relative child links; rebase them onto
	// this node's array.
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	})
	for _, node := range leftNodes {
		if !node.IsLeaf {
			node.LeftChild++
			node.RightChild++
		}
		nodes = append(nodes, node)
	}
	offset := 1 + len(leftNodes)
	for _, node := range rightNodes {
		if !node.IsLeaf {
			node.LeftChild += offset
			node.RightChild += offset
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// findBestSplit scans midpoints between consecutive distinct values of every
// feature and keeps the split with the lowest weighted gini impurity.
func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			threshold := (values[i-1] + values[i]) / 2
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) == 0 || len(rightLabels) == 0 {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func classDistribution(labels []int, classCount int) []float64 {
	if classCount <= 0 {
		classCount = 1
	}
	dist := make([]float64, classCount)
	if len(labels) == 0 {
		return dist
	}
	for _, label := range labels {
		if label >= 0 && label < classCount {
			dist[label]++
		}
	}
	for i := range dist {
		dist[i] /= float64(len(labels))
	}
	return dist
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}

// ArgMax returns the index of the largest value; ties resolve to the lowest
// index.
func ArgMax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
