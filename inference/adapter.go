// Package inference turns a validated customer record into a churn prediction
// by way of an externally trained preprocessor and classifier.
package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/liamcoop/churn/customer"
)

// Preprocessor encodes a frame into the numeric feature vector the classifier expects
type Preprocessor interface {
	Transform(frame Frame) ([]float64, error)
}

// Classifier predicts a class label and the probability of churn for a feature vector
type Classifier interface {
	Predict(features []float64) (label int, probability float64, err error)
}

// Stage names the step of the pipeline that failed
type Stage string

const (
	StagePreprocess Stage = "preprocess"
	StagePredict    Stage = "predict"
	StageResult     Stage = "result"
)

// Error wraps any failure raised by the preprocessor or classifier
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the structured prediction returned for one record
type Result struct {
	Label       int     `json:"label"`
	Churn       bool    `json:"churn"`
	Probability float64 `json:"probability"`
}

// Map returns the result as named outputs
func (r Result) Map() map[string]any {
	return map[string]any{
		"label":       r.Label,
		"churn":       r.Churn,
		"probability": r.Probability,
	}
}

// Adapter runs a record through a preprocessor and classifier pair.
// It holds no mutable state; concurrent calls only read the artifacts.
type Adapter struct {
	pre Preprocessor
	clf Classifier
}

// NewAdapter creates an adapter over the given artifacts
func NewAdapter(pre Preprocessor, clf Classifier) (*Adapter, error) {
	if pre == nil {
		return nil, errors.New("inference: preprocessor is required")
	}
	if clf == nil {
		return nil, errors.New("inference: classifier is required")
	}
	return &Adapter{pre: pre, clf: clf}, nil
}

// Predict encodes rec, classifies it and shapes the output.
// Failures of either artifact, including panics, are returned as *Error.
func (a *Adapter) Predict(rec customer.Record) (result Result, err error) {
	stage := StagePreprocess
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = &Error{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	features, err := a.pre.Transform(Arrange(rec))
	if err != nil {
		return Result{}, &Error{Stage: StagePreprocess, Err: err}
	}

	stage = StagePredict
	label, probability, err := a.clf.Predict(features)
	if err != nil {
		return Result{}, &Error{Stage: StagePredict, Err: err}
	}

	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return Result{}, &Error{Stage: StageResult, Err: fmt.Errorf("probability %v outside [0, 1]", probability)}
	}

	return Result{
		Label:       label,
		Churn:       label == 1,
		Probability: probability,
	}, nil
}
