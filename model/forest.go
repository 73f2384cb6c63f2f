package model

import (
	"fmt"
)

// leaf marks a node without children in the tree arrays
const leaf = -1

// TreeSpec is one fitted decision tree in parallel-array form.
// Node i is a leaf when ChildrenLeft[i] == -1; Value[i] holds the class
// weights observed at that node.
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// ForestSpec is the persisted form of a random forest classifier
type ForestSpec struct {
	NFeatures     int        `json:"n_features"`
	Classes       []int      `json:"classes"`
	PositiveClass *int       `json:"positive_class,omitempty"`
	Trees         []TreeSpec `json:"trees"`
}

// Forest averages the class distributions of its trees
type Forest struct {
	nFeatures int
	classes   []int
	positive  int // index into classes
	trees     []TreeSpec
}

// NewForest checks the structure of spec and returns a classifier
func NewForest(spec ForestSpec) (*Forest, error) {
	if spec.NFeatures <= 0 {
		return nil, fmt.Errorf("n_features must be positive, got %d", spec.NFeatures)
	}
	if len(spec.Classes) < 2 {
		return nil, fmt.Errorf("forest needs at least two classes, got %d", len(spec.Classes))
	}
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}

	positiveClass := 1
	if spec.PositiveClass != nil {
		positiveClass = *spec.PositiveClass
	}
	positive := -1
	for i, c := range spec.Classes {
		if c == positiveClass {
			positive = i
		}
	}
	if positive < 0 {
		return nil, fmt.Errorf("positive class %d not in classes %v", positiveClass, spec.Classes)
	}

	for i, tree := range spec.Trees {
		if err := checkTree(tree, spec.NFeatures, len(spec.Classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &Forest{
		nFeatures: spec.NFeatures,
		classes:   spec.Classes,
		positive:  positive,
		trees:     spec.Trees,
	}, nil
}

// checkTree rejects trees that would index out of range or loop.
// Children must come after their parent, as in depth-first fitted trees.
func checkTree(t TreeSpec, nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have different lengths")
	}

	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == leaf || right == leaf {
			if left != right {
				return fmt.Errorf("node %d has only one child", i)
			}
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(t.Value[i]), nClasses)
			}
			var total float64
			for _, w := range t.Value[i] {
				if w < 0 {
					return fmt.Errorf("leaf %d has negative weight", i)
				}
				total += w
			}
			if total == 0 {
				return fmt.Errorf("leaf %d has no weight", i)
			}
			continue
		}
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has invalid children %d, %d", i, left, right)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, have %d features", i, t.Feature[i], nFeatures)
		}
	}
	return nil
}

// NFeatures returns the feature vector length the forest was fitted on
func (f *Forest) NFeatures() int {
	return f.nFeatures
}

// Proba returns the mean class distribution over all trees
func (f *Forest) Proba(x []float64) ([]float64, error) {
	if len(x) != f.nFeatures {
		return nil, fmt.Errorf("X has %d features, but forest is expecting %d features as input", len(x), f.nFeatures)
	}

	proba := make([]float64, len(f.classes))
	for _, t := range f.trees {
		node := 0
		for t.ChildrenLeft[node] != leaf {
			if x[t.Feature[node]] <= t.Threshold[node] {
				node = t.ChildrenLeft[node]
			} else {
				node = t.ChildrenRight[node]
			}
		}

		var total float64
		for _, w := range t.Value[node] {
			total += w
		}
		for c, w := range t.Value[node] {
			proba[c] += w / total
		}
	}

	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba, nil
}

// Predict implements inference.Classifier. The label is the most probable
// class (first on ties); the probability is that of the positive class.
func (f *Forest) Predict(x []float64) (int, float64, error) {
	proba, err := f.Proba(x)
	if err != nil {
		return 0, 0, err
	}

	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.classes[best], proba[f.positive], nil
}
