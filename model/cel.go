package model

import (
	"fmt"
	"math"

	"github.com/google/cel-go/cel"
)

// Output modes of a CEL scorer expression
const (
	OutputLogit       = "logit"
	OutputProbability = "probability"
)

// celCostLimit stops runaway expressions during evaluation
const celCostLimit = 1000000

// CELScorerSpec is the persisted form of an expression-based classifier.
// Expression is evaluated with x bound to the feature vector as list(double).
type CELScorerSpec struct {
	NFeatures  int      `json:"n_features"`
	Expression string   `json:"expression"`
	Output     string   `json:"output,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// CELScorer scores a feature vector with a compiled CEL program
type CELScorer struct {
	nFeatures int
	output    string
	threshold float64
	prg       cel.Program
}

// NewCELScorer compiles spec.Expression; it must evaluate to a double
func NewCELScorer(spec CELScorerSpec) (*CELScorer, error) {
	if spec.NFeatures <= 0 {
		return nil, fmt.Errorf("n_features must be positive, got %d", spec.NFeatures)
	}

	output := spec.Output
	if output == "" {
		output = OutputLogit
	}
	if output != OutputLogit && output != OutputProbability {
		return nil, fmt.Errorf("unknown output %q (must be %s or %s)", output, OutputLogit, OutputProbability)
	}

	threshold := 0.5
	if spec.Threshold != nil {
		threshold = *spec.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", threshold)
	}

	env, err := cel.NewEnv(
		cel.Variable("x", cel.ListType(cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(spec.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("expression must evaluate to double, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return &CELScorer{
		nFeatures: spec.NFeatures,
		output:    output,
		threshold: threshold,
		prg:       prg,
	}, nil
}

// NFeatures returns the feature vector length the expression was written for
func (s *CELScorer) NFeatures() int {
	return s.nFeatures
}

// Predict implements inference.Classifier
func (s *CELScorer) Predict(x []float64) (int, float64, error) {
	if len(x) != s.nFeatures {
		return 0, 0, fmt.Errorf("X has %d features, but scorer is expecting %d features as input", len(x), s.nFeatures)
	}

	out, _, err := s.prg.Eval(map[string]any{"x": x})
	if err != nil {
		return 0, 0, fmt.Errorf("evaluation error: %w", err)
	}

	score, ok := out.Value().(float64)
	if !ok {
		return 0, 0, fmt.Errorf("expression returned %T, want double", out.Value())
	}
	if math.IsNaN(score) {
		return 0, 0, fmt.Errorf("expression returned NaN")
	}

	p := score
	if s.output == OutputLogit {
		p = 1 / (1 + math.Exp(-score))
	}
	if p < 0 || p > 1 {
		return 0, 0, fmt.Errorf("probability %v outside [0, 1]", p)
	}

	label := 0
	if p >= s.threshold {
		label = 1
	}
	return label, p, nil
}
