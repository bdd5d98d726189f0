package ml

import (
	"errors"
)

// LoadModel deserializes a trained model artifact of the given type.
func LoadModel(modelType, path string) (Classifier, error) {
	switch modelType {
	case "random_forest":
		model := NewRandomForest(0, 0, 0)
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case "decision_tree":
		model := NewDecisionTree(0)
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, errors.New("unsupported model type")
	}
}
