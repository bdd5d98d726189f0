package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
)

// RandomForest bags decision trees trained on bootstrap samples. The class
// probability for a sample is the mean of the per-tree leaf distributions,
// so confidence reflects how much of the ensemble agrees.
type RandomForest struct {
	trees      []*DecisionTree
	treeCount  int
	maxDepth   int
	seed       int64
	classCount int
}

// forestArtifact is the on-disk JSON layout of a trained forest.
type forestArtifact struct {
	ModelType  string       `json:"model_type"`
	ClassCount int          `json:"class_count"`
	TreeCount  int          `json:"tree_count"`
	MaxDepth   int          `json:"max_depth"`
	Seed       int64        `json:"seed"`
	Trees      [][]TreeNode `json:"trees"`
}

const forestModelType = "random_forest"

// NewRandomForest returns an untrained forest. Non-positive treeCount or
// maxDepth fall back to defaults; the seed makes training reproducible.
func NewRandomForest(treeCount, maxDepth int, seed int64) *RandomForest {
	if treeCount <= 0 {
		treeCount = 10
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &RandomForest{treeCount: treeCount, maxDepth: maxDepth, seed: seed}
}

func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}

	rf.classCount = 0
	for _, label := range labels {
		if label < 0 {
			return errors.New("negative class label")
		}
		if label+1 > rf.classCount {
			rf.classCount = label + 1
		}
	}

	rnd := rand.New(rand.NewSource(rf.seed))
	rf.trees = make([]*DecisionTree, 0, rf.treeCount)
	for t := 0; t < rf.treeCount; t++ {
		sampleX, sampleY := bootstrapSample(features, labels, rnd)
		tree := NewDecisionTree(rf.maxDepth)
		if err := tree.Train(sampleX, sampleY); err != nil {
			return fmt.Errorf("train tree %d: %w", t, err)
		}
		rf.trees = append(rf.trees, tree)
	}
	return nil
}

// Predict returns the class with the highest averaged probability and the
// full averaged distribution.
func (rf *RandomForest) Predict(features []float64) (int, []float64, error) {
	dist, err := rf.PredictProba(features)
	if err != nil {
		return 0, nil, err
	}
	return ArgMax(dist), dist, nil
}

// PredictProba averages the leaf distributions of all trees.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not trained")
	}
	sum := make([]float64, rf.classCount)
	for _, tree := range rf.trees {
		dist, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i := 0; i < len(sum) && i < len(dist); i++ {
			sum[i] += dist[i]
		}
	}
	for i := range sum {
		sum[i] /= float64(len(rf.trees))
	}
	return sum, nil
}

func (rf *RandomForest) Save(path string) error {
	if len(rf.trees) == 0 {
		return errors.New("model not trained")
	}
	artifact := forestArtifact{
		ModelType:  forestModelType,
		ClassCount: rf.classCount,
		TreeCount:  rf.treeCount,
		MaxDepth:   rf.maxDepth,
		Seed:       rf.seed,
		Trees:      make([][]TreeNode, len(rf.trees)),
	}
	for i, tree := range rf.trees {
		artifact.Trees[i] = tree.Nodes()
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact forestArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return err
	}
	if artifact.ModelType != forestModelType {
		return fmt.Errorf("unexpected model type %q", artifact.ModelType)
	}
	if len(artifact.Trees) == 0 {
		return errors.New("artifact contains no trees")
	}
	if artifact.ClassCount <= 0 {
		return errors.New("artifact class count must be positive")
	}

	rf.classCount = artifact.ClassCount
	rf.treeCount = len(artifact.Trees)
	rf.maxDepth = artifact.MaxDepth
	rf.seed = artifact.Seed
	rf.trees = make([]*DecisionTree, len(artifact.Trees))
	for i, nodes := range artifact.Trees {
		tree := NewDecisionTree(artifact.MaxDepth)
		tree.SetNodes(nodes)
		rf.trees[i] = tree
	}
	return nil
}

func bootstrapSample(features [][]float64, labels []int, rnd *rand.Rand) ([][]float64, []int) {
	n := len(features)
	sampleX := make([][]float64, n)
	sampleY := make([]int, n)
	for i := 0; i < n; i++ {
		idx := rnd.Intn(n)
		sampleX[i] = features[idx]
		sampleY[i] = labels[idx]
	}
	return sampleX, sampleY
}
