package ml

import (
	"math"
	"os"
	"testing"
)

func trainIrisForest(t *testing.T) *RandomForest {
	t.Helper()
	features, labels := LoadIris()
	model := NewRandomForest(10, 10, 42)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return model
}

func TestRandomForestSetosaSample(t *testing.T) {
	model := trainIrisForest(t)

	label, dist, err := model.Predict([]float64{5.1, 3.5, 1.4, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected setosa (0), got %d", label)
	}
	if ClassNames[label] != "setosa" {
		t.Fatalf("unexpected class name: %s", ClassNames[label])
	}
	confidence := dist[ArgMax(dist)]
	if confidence < 0 || confidence > 1 {
		t.Fatalf("confidence out of range: %f", confidence)
	}
}

func TestRandomForestDistributionSumsToOne(t *testing.T) {
	model := trainIrisForest(t)
	features, _ := LoadIris()

	for _, feature := range features {
		dist, err := model.PredictProba(feature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dist) != ClassCount {
			t.Fatalf("expected %d classes, got %d", ClassCount, len(dist))
		}
		sum := 0.0
		for _, p := range dist {
			if p < 0 || p > 1 {
				t.Fatalf("probability out of range: %v", dist)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("distribution sums to %f", sum)
		}
	}
}

func TestRandomForestPredictionRange(t *testing.T) {
	model := trainIrisForest(t)
	features, _ := LoadIris()

	for _, feature := range features {
		label, _, err := model.Predict(feature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label < 0 || label >= ClassCount {
			t.Fatalf("prediction out of range: %d", label)
		}
	}
}

func TestRandomForestSaveLoadDeterministic(t *testing.T) {
	model := trainIrisForest(t)

	path := t.TempDir() + "/forest.model"
	if err := model.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadModel("random_forest", path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	sample := []float64{6.3, 3.3, 6.0, 2.5}
	wantLabel, wantDist, err := model.Predict(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Repeated calls on the loaded model must agree with each other and with
	// the model that produced the artifact.
	for i := 0; i < 5; i++ {
		label, dist, err := loaded.Predict(sample)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != wantLabel {
			t.Fatalf("call %d: got label %d want %d", i, label, wantLabel)
		}
		for j := range dist {
			if math.Abs(dist[j]-wantDist[j]) > 1e-12 {
				t.Fatalf("call %d: distribution drifted: %v vs %v", i, dist, wantDist)
			}
		}
	}
}

func TestRandomForestUntrained(t *testing.T) {
	model := NewRandomForest(10, 10, 1)
	if _, _, err := model.Predict([]float64{1, 2, 3, 4}); err == nil {
		t.Fatal("expected error for untrained model")
	}
	if err := model.Save(t.TempDir() + "/never.model"); err == nil {
		t.Fatal("expected error saving untrained model")
	}
}

func TestRandomForestLoadRejectsBadClassCount(t *testing.T) {
	// An artifact with trees but a zero class count would make every
	// prediction return an empty distribution.
	path := t.TempDir() + "/corrupt.model"
	payload := `{"model_type":"random_forest","class_count":0,"tree_count":1,"max_depth":3,"seed":1,` +
		`"trees":[[{"feature_idx":-1,"threshold":0,"left_child":-1,"right_child":-1,"distribution":[1],"is_leaf":true}]]}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	model := NewRandomForest(0, 0, 0)
	if err := model.Load(path); err == nil {
		t.Fatal("expected error for non-positive class count")
	}
}

func TestLoadModelUnsupportedType(t *testing.T) {
	if _, err := LoadModel("linear_regression", "nope.model"); err == nil {
		t.Fatal("expected error for unsupported model type")
	}
}
