package inference

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/liamcoop/churn/customer"
)

// stubPreprocessor encodes numeric columns as-is and categoricals by position
type stubPreprocessor struct {
	err error
}

func (p stubPreprocessor) Transform(frame Frame) ([]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]float64, 0, len(frame.Values))
	for _, v := range frame.Values {
		switch n := v.(type) {
		case int:
			out = append(out, float64(n))
		case float64:
			out = append(out, n)
		case string:
			out = append(out, float64(len(n)))
		}
	}
	return out, nil
}

// stubClassifier churns customers older than 40
type stubClassifier struct {
	failOn func([]float64) error
	calls  int
	mu     sync.Mutex
}

func (c *stubClassifier) Predict(x []float64) (int, float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.failOn != nil {
		if err := c.failOn(x); err != nil {
			return 0, 0, err
		}
	}
	age := x[3]
	if age > 40 {
		return 1, 0.8, nil
	}
	return 0, 0.2, nil
}

type fixedClassifier struct {
	label int
	prob  float64
}

func (c fixedClassifier) Predict([]float64) (int, float64, error) { return c.label, c.prob, nil }

type panickingClassifier struct{}

func (panickingClassifier) Predict(x []float64) (int, float64, error) {
	_ = x[100]
	return 0, 0, nil
}

func record(t *testing.T, age int) customer.Record {
	t.Helper()
	rec, err := customer.New(customer.Fields{
		CreditScore:     600,
		Geography:       customer.France,
		Gender:          customer.Male,
		Age:             age,
		Tenure:          5,
		Balance:         0,
		NumOfProducts:   1,
		HasCreditCard:   1,
		IsActiveMember:  1,
		EstimatedSalary: 50000,
	})
	if err != nil {
		t.Fatalf("customer.New() failed: %v", err)
	}
	return rec
}

func TestNewAdapter_RequiresArtifacts(t *testing.T) {
	if _, err := NewAdapter(nil, &stubClassifier{}); err == nil {
		t.Error("Expected error for nil preprocessor")
	}
	if _, err := NewAdapter(stubPreprocessor{}, nil); err == nil {
		t.Error("Expected error for nil classifier")
	}
}

func TestArrange_FollowsFeatureContract(t *testing.T) {
	frame := Arrange(record(t, 35))

	want := []string{"CreditScore", "Geography", "Gender", "Age", "Tenure", "Balance",
		"NumOfProducts", "HasCrCard", "IsActiveMember", "EstimatedSalary"}
	if strings.Join(frame.Columns, ",") != strings.Join(want, ",") {
		t.Fatalf("Columns = %v, want %v", frame.Columns, want)
	}
	if len(frame.Values) != len(frame.Columns) {
		t.Fatalf("Got %d values for %d columns", len(frame.Values), len(frame.Columns))
	}

	if v, _ := frame.Lookup(ColGeography); v != "France" {
		t.Errorf("Geography = %v, want France", v)
	}
	if n, _ := frame.Number(ColAge); n != 35 {
		t.Errorf("Age = %v, want 35", n)
	}
	if n, _ := frame.Number(ColEstimatedSalary); n != 50000 {
		t.Errorf("EstimatedSalary = %v, want 50000", n)
	}
	if _, err := frame.Number(ColGender); err == nil {
		t.Error("Expected error reading a categorical column as a number")
	}
	if _, err := frame.Lookup("Surname"); err == nil {
		t.Error("Expected error for unknown column")
	}
}

func TestFeatureColumns_ReturnsCopy(t *testing.T) {
	cols := FeatureColumns()
	cols[0] = "Mutated"
	if FeatureColumns()[0] != ColCreditScore {
		t.Error("FeatureColumns() exposed its backing slice")
	}
}

func TestPredict(t *testing.T) {
	adapter, err := NewAdapter(stubPreprocessor{}, &stubClassifier{})
	if err != nil {
		t.Fatalf("NewAdapter() failed: %v", err)
	}

	testCases := []struct {
		age  int
		want Result
	}{
		{35, Result{Label: 0, Churn: false, Probability: 0.2}},
		{55, Result{Label: 1, Churn: true, Probability: 0.8}},
	}

	for _, tc := range testCases {
		got, err := adapter.Predict(record(t, tc.age))
		if err != nil {
			t.Fatalf("Predict() failed: %v", err)
		}
		if got != tc.want {
			t.Errorf("Predict(age=%d) = %+v, want %+v", tc.age, got, tc.want)
		}
	}
}

// TestPredict_Deterministic verifies identical input yields identical results
func TestPredict_Deterministic(t *testing.T) {
	adapter, _ := NewAdapter(stubPreprocessor{}, &stubClassifier{})
	rec := record(t, 60)

	first, err := adapter.Predict(rec)
	if err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := adapter.Predict(rec)
		if err != nil {
			t.Fatalf("Predict() failed on iteration %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("Iteration %d returned %+v, want %+v", i, got, first)
		}
	}
}

// TestPredict_ClassifierErrorIsWrapped verifies faults surface as *Error and the adapter stays usable
func TestPredict_ClassifierErrorIsWrapped(t *testing.T) {
	boom := errors.New("feature vector has wrong shape")
	clf := &stubClassifier{failOn: func(x []float64) error {
		if x[3] > 90 {
			return boom
		}
		return nil
	}}
	adapter, _ := NewAdapter(stubPreprocessor{}, clf)

	_, err := adapter.Predict(record(t, 95))
	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if ierr.Stage != StagePredict {
		t.Errorf("Stage = %q, want %q", ierr.Stage, StagePredict)
	}
	if !errors.Is(err, boom) {
		t.Error("Expected wrapped error to be the classifier error")
	}
	if !strings.Contains(err.Error(), "wrong shape") {
		t.Errorf("Expected original message, got %q", err.Error())
	}

	got, err := adapter.Predict(record(t, 30))
	if err != nil {
		t.Fatalf("Adapter unusable after failure: %v", err)
	}
	if got.Churn {
		t.Errorf("Unexpected result after recovery: %+v", got)
	}
}

func TestPredict_PreprocessorErrorIsWrapped(t *testing.T) {
	clf := &stubClassifier{}
	adapter, _ := NewAdapter(stubPreprocessor{err: errors.New(`unknown category "Italy"`)}, clf)

	_, err := adapter.Predict(record(t, 30))
	var ierr *Error
	if !errors.As(err, &ierr) || ierr.Stage != StagePreprocess {
		t.Fatalf("Expected preprocess *Error, got %v", err)
	}
	if clf.calls != 0 {
		t.Errorf("Classifier should not run after a preprocessing failure, ran %d times", clf.calls)
	}
}

// TestPredict_RecoversPanics verifies a panicking artifact never escapes the adapter
func TestPredict_RecoversPanics(t *testing.T) {
	adapter, _ := NewAdapter(stubPreprocessor{}, panickingClassifier{})

	result, err := adapter.Predict(record(t, 30))
	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if ierr.Stage != StagePredict || !strings.Contains(ierr.Error(), "panic") {
		t.Errorf("Unexpected error %v", ierr)
	}
	if result != (Result{}) {
		t.Errorf("Expected zero result, got %+v", result)
	}
}

func TestPredict_RejectsInvalidProbability(t *testing.T) {
	for _, p := range []float64{-0.1, 1.5} {
		adapter, _ := NewAdapter(stubPreprocessor{}, fixedClassifier{label: 1, prob: p})
		_, err := adapter.Predict(record(t, 30))
		var ierr *Error
		if !errors.As(err, &ierr) || ierr.Stage != StageResult {
			t.Errorf("Probability %v: expected result-stage *Error, got %v", p, err)
		}
	}
}

func TestPredict_ConcurrentCalls(t *testing.T) {
	clf := &stubClassifier{}
	adapter, _ := NewAdapter(stubPreprocessor{}, clf)
	rec := record(t, 50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := adapter.Predict(rec); err != nil || !got.Churn {
				t.Errorf("Predict() = %+v, %v", got, err)
			}
		}()
	}
	wg.Wait()

	if clf.calls != 20 {
		t.Errorf("Classifier calls = %d, want 20", clf.calls)
	}
}

func TestResult_Map(t *testing.T) {
	m := Result{Label: 1, Churn: true, Probability: 0.7}.Map()
	if m["label"] != 1 || m["churn"] != true || m["probability"] != 0.7 {
		t.Errorf("Map() = %v", m)
	}
}
