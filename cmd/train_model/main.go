package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"irisml/ml"
)

func main() {
	modelPath := flag.String("model_path", "./models/iris.model", "model output path")
	trees := flag.Int("trees", 10, "number of trees in the forest")
	maxDepth := flag.Int("max_depth", 10, "max tree depth")
	testRatio := flag.Float64("test_ratio", 0, "holdout ratio; 0 trains on the full dataset")
	seed := flag.Int64("seed", 42, "random seed for bootstrap sampling")
	flag.Parse()

	features, labels := ml.LoadIris()
	trainX, trainY, testX, testY := splitDataset(features, labels, *testRatio, *seed)

	model := ml.NewRandomForest(*trees, *maxDepth, *seed)
	if err := model.Train(trainX, trainY); err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	if len(testX) > 0 {
		accuracy, precision, recall := evaluateModel(model, testX, testY)
		log.Printf("accuracy=%.2f precision=%v recall=%v", accuracy, precision, recall)
	}

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := model.Save(*modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	fmt.Printf("model saved to %s\n", *modelPath)
}

// splitDataset shuffles and splits off a holdout set. testRatio outside
// (0,1) keeps everything in the training set, matching how the service's
// model is normally produced.
func splitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		return features, labels, nil, nil
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(float64(len(features)) * (1 - testRatio))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}

// evaluateModel reports holdout accuracy plus per-class precision and recall.
func evaluateModel(model *ml.RandomForest, testX [][]float64, testY []int) (accuracy float64, precision, recall []float64) {
	if len(testX) == 0 {
		return 0, nil, nil
	}

	correct := 0
	truePositive := make([]int, ml.ClassCount)
	predicted := make([]int, ml.ClassCount)
	actual := make([]int, ml.ClassCount)

	for i, feature := range testX {
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		if label == testY[i] {
			correct++
		}
		if label >= 0 && label < ml.ClassCount {
			predicted[label]++
			if label == testY[i] {
				truePositive[label]++
			}
		}
		if testY[i] >= 0 && testY[i] < ml.ClassCount {
			actual[testY[i]]++
		}
	}

	accuracy = float64(correct) / float64(len(testX))
	precision = make([]float64, ml.ClassCount)
	recall = make([]float64, ml.ClassCount)
	for class := 0; class < ml.ClassCount; class++ {
		if predicted[class] > 0 {
			precision[class] = float64(truePositive[class]) / float64(predicted[class])
		}
		if actual[class] > 0 {
			recall[class] = float64(truePositive[class]) / float64(actual[class])
		}
	}
	return accuracy, precision, recall
}
