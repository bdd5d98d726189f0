package ml

// Classifier is the narrow prediction surface the inference service depends
// on: one call yields the class index and the probability distribution over
// all classes. Concrete models stay swappable behind it.
type Classifier interface {
	Predict(features []float64) (int, []float64, error)
}

// MLModel is the full train/persist lifecycle implemented by the concrete
// models in this package.
type MLModel interface {
	Classifier
	Train(features [][]float64, labels []int) error
	Save(path string) error
	Load(path string) error
}
