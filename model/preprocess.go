// Package model contains loadable implementations of the preprocessor and
// classifier artifacts used by the inference adapter.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/liamcoop/churn/inference"
)

// Step types understood by ColumnTransformer
const (
	StepScale       = "scale"
	StepOneHot      = "onehot"
	StepPassthrough = "passthrough"
)

// ColumnTransformerSpec is the persisted form of a fitted column transformer
type ColumnTransformerSpec struct {
	FeatureNamesIn []string   `json:"feature_names_in,omitempty"`
	Steps          []StepSpec `json:"steps"`
}

// StepSpec is one transformer applied to a group of columns.
// Mean and Scale are used by scale steps, Categories, HandleUnknown and
// Drop by onehot steps.
type StepSpec struct {
	Type          string     `json:"type"`
	Columns       []string   `json:"columns"`
	Mean          []float64  `json:"mean,omitempty"`
	Scale         []float64  `json:"scale,omitempty"`
	Categories    [][]string `json:"categories,omitempty"`
	HandleUnknown string     `json:"handle_unknown,omitempty"`
	Drop          string     `json:"drop,omitempty"`
}

// ColumnTransformer encodes a frame step by step; the output concatenates
// each step's columns in declaration order.
type ColumnTransformer struct {
	featureNamesIn []string
	steps          []StepSpec
	width          int
}

// NewColumnTransformer checks spec and returns a ready transformer
func NewColumnTransformer(spec ColumnTransformerSpec) (*ColumnTransformer, error) {
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("column transformer must have at least one step")
	}

	width := 0
	seen := make(map[string]bool)
	for i, step := range spec.Steps {
		if len(step.Columns) == 0 {
			return nil, fmt.Errorf("step %d (%s) has no columns", i, step.Type)
		}
		for _, col := range step.Columns {
			if seen[col] {
				return nil, fmt.Errorf("column %q used by more than one step", col)
			}
			seen[col] = true
		}

		switch step.Type {
		case StepScale:
			if len(step.Mean) != len(step.Columns) || len(step.Scale) != len(step.Columns) {
				return nil, fmt.Errorf("step %d: scale needs one mean and scale per column", i)
			}
			width += len(step.Columns)
		case StepOneHot:
			if len(step.Categories) != len(step.Columns) {
				return nil, fmt.Errorf("step %d: onehot needs one category list per column", i)
			}
			switch step.HandleUnknown {
			case "", "error", "ignore":
			default:
				return nil, fmt.Errorf("step %d: unknown handle_unknown %q", i, step.HandleUnknown)
			}
			switch step.Drop {
			case "", "none", "first":
			default:
				return nil, fmt.Errorf("step %d: unknown drop %q", i, step.Drop)
			}
			for j, cats := range step.Categories {
				if len(cats) == 0 {
					return nil, fmt.Errorf("step %d: column %q has no categories", i, step.Columns[j])
				}
				width += len(cats)
				if step.Drop == "first" {
					width--
				}
			}
		case StepPassthrough:
			width += len(step.Columns)
		default:
			return nil, fmt.Errorf("step %d: unknown step type %q", i, step.Type)
		}
	}

	if len(spec.FeatureNamesIn) > 0 {
		for col := range seen {
			if !contains(spec.FeatureNamesIn, col) {
				return nil, fmt.Errorf("column %q is not in feature_names_in", col)
			}
		}
	}

	return &ColumnTransformer{
		featureNamesIn: spec.FeatureNamesIn,
		steps:          spec.Steps,
		width:          width,
	}, nil
}

// Width returns the length of the feature vectors produced by Transform
func (ct *ColumnTransformer) Width() int {
	return ct.width
}

// FeatureNamesIn returns the input columns the transformer was fitted on
func (ct *ColumnTransformer) FeatureNamesIn() []string {
	return ct.featureNamesIn
}

// Transform implements inference.Preprocessor
func (ct *ColumnTransformer) Transform(frame inference.Frame) ([]float64, error) {
	if len(ct.featureNamesIn) > 0 && strings.Join(frame.Columns, ",") != strings.Join(ct.featureNamesIn, ",") {
		return nil, fmt.Errorf("frame columns %v do not match fitted columns %v", frame.Columns, ct.featureNamesIn)
	}

	out := make([]float64, 0, ct.width)
	for _, step := range ct.steps {
		var err error
		switch step.Type {
		case StepScale:
			out, err = scale(out, frame, step)
		case StepOneHot:
			out, err = oneHot(out, frame, step)
		case StepPassthrough:
			out, err = passthrough(out, frame, step)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scale(out []float64, frame inference.Frame, step StepSpec) ([]float64, error) {
	for i, col := range step.Columns {
		v, err := frame.Number(col)
		if err != nil {
			return nil, err
		}
		s := step.Scale[i]
		if s == 0 {
			s = 1
		}
		out = append(out, (v-step.Mean[i])/s)
	}
	return out, nil
}

func oneHot(out []float64, frame inference.Frame, step StepSpec) ([]float64, error) {
	for i, col := range step.Columns {
		v, err := frame.Lookup(col)
		if err != nil {
			return nil, err
		}
		category, err := categoryString(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}

		cats := step.Categories[i]
		idx := -1
		for j, c := range cats {
			if c == category {
				idx = j
				break
			}
		}
		if idx < 0 && step.HandleUnknown != "ignore" {
			return nil, fmt.Errorf("column %q: found unknown category %q during transform", col, category)
		}

		start := 0
		if step.Drop == "first" {
			start = 1
		}
		for j := start; j < len(cats); j++ {
			if j == idx {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

func passthrough(out []float64, frame inference.Frame, step StepSpec) ([]float64, error) {
	for _, col := range step.Columns {
		v, err := frame.Number(col)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func categoryString(v any) (string, error) {
	switch c := v.(type) {
	case string:
		return c, nil
	case int:
		return strconv.Itoa(c), nil
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported category value %T", v)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
