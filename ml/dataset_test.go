package ml

import "testing"

func TestLoadIrisShape(t *testing.T) {
	features, labels := LoadIris()
	if len(features) != 150 || len(labels) != 150 {
		t.Fatalf("expected 150 samples, got %d/%d", len(features), len(labels))
	}
	for i, feature := range features {
		if len(feature) != len(FeatureNames()) {
			t.Fatalf("sample %d has %d features", i, len(feature))
		}
	}

	counts := make(map[int]int)
	for _, label := range labels {
		if label < 0 || label >= ClassCount {
			t.Fatalf("label out of range: %d", label)
		}
		counts[label]++
	}
	for class := 0; class < ClassCount; class++ {
		if counts[class] != 50 {
			t.Fatalf("class %d has %d samples", class, counts[class])
		}
	}
}

func TestLoadIrisReturnsCopies(t *testing.T) {
	features, labels := LoadIris()
	features[0][0] = -1
	labels[0] = 99

	fresh, freshLabels := LoadIris()
	if fresh[0][0] == -1 {
		t.Fatal("feature mutation leaked into the dataset")
	}
	if freshLabels[0] == 99 {
		t.Fatal("label mutation leaked into the dataset")
	}
}
