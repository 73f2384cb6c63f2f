package artifacts

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/churn/customer"
)

const sampleModels = "../models"

func defaultCustomer(t *testing.T) customer.Record {
	t.Helper()
	rec, err := customer.New(customer.Fields{
		CreditScore:     600,
		Geography:       customer.France,
		Gender:          customer.Male,
		Age:             35,
		Tenure:          5,
		Balance:         0,
		NumOfProducts:   1,
		HasCreditCard:   1,
		IsActiveMember:  0,
		EstimatedSalary: 50000,
	})
	require.NoError(t, err)
	return rec
}

func riskyCustomer(t *testing.T) customer.Record {
	t.Helper()
	rec, err := customer.New(customer.Fields{
		CreditScore:     600,
		Geography:       customer.Germany,
		Gender:          customer.Female,
		Age:             55,
		Tenure:          2,
		Balance:         120000,
		NumOfProducts:   3,
		HasCreditCard:   1,
		IsActiveMember:  0,
		EstimatedSalary: 90000,
	})
	require.NoError(t, err)
	return rec
}

// TestLoadSampleForest verifies the bundled forest model loads and scores
func TestLoadSampleForest(t *testing.T) {
	bundle, err := Load(NewFileStore(sampleModels), "churn-forest")
	require.NoError(t, err)

	assert.Equal(t, "churn-forest", bundle.Model)
	assert.Equal(t, KindColumnTransformer, bundle.PreprocessorInfo.Kind)
	assert.Equal(t, KindRandomForest, bundle.ClassifierInfo.Kind)
	assert.Equal(t, "v1", bundle.PreprocessorInfo.FeatureContract)

	adapter, err := bundle.Adapter()
	require.NoError(t, err)

	low, err := adapter.Predict(defaultCustomer(t))
	require.NoError(t, err)
	assert.Equal(t, 0, low.Label)
	assert.False(t, low.Churn)
	assert.InDelta(t, 0.125, low.Probability, 1e-3)

	high, err := adapter.Predict(riskyCustomer(t))
	require.NoError(t, err)
	assert.Equal(t, 1, high.Label)
	assert.True(t, high.Churn)
	assert.InDelta(t, 0.64, high.Probability, 1e-2)
}

// TestLoadSampleCEL verifies the bundled expression model loads and scores
func TestLoadSampleCEL(t *testing.T) {
	bundle, err := Load(NewFileStore(sampleModels), "churn-cel")
	require.NoError(t, err)
	assert.Equal(t, KindCELScorer, bundle.ClassifierInfo.Kind)

	adapter, err := bundle.Adapter()
	require.NoError(t, err)

	low, err := adapter.Predict(defaultCustomer(t))
	require.NoError(t, err)
	assert.False(t, low.Churn)
	assert.Less(t, low.Probability, 0.2)

	high, err := adapter.Predict(riskyCustomer(t))
	require.NoError(t, err)
	assert.True(t, high.Churn)
	assert.Greater(t, high.Probability, 0.8)
}

// TestLoadMissingArtifact verifies a model without a classifier cannot load
func TestLoadMissingArtifact(t *testing.T) {
	store := NewMemoryStore()
	pre, err := NewFileStore(sampleModels).Get("churn-forest", RolePreprocessor)
	require.NoError(t, err)
	pre.ID = ""
	require.NoError(t, store.Add(pre))

	_, err = Load(store, "churn-forest")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestLoadWidthMismatch verifies preprocessor and classifier must agree on width
func TestLoadWidthMismatch(t *testing.T) {
	files := NewFileStore(sampleModels)
	store := NewMemoryStore()

	pre, err := files.Get("churn-forest", RolePreprocessor)
	require.NoError(t, err)
	require.NoError(t, store.Add(pre))

	clf := &Artifact{
		Model:   "churn-forest",
		Role:    RoleClassifier,
		Kind:    KindCELScorer,
		Version: "narrow",
		Payload: json.RawMessage(`{"n_features": 5, "expression": "x[0]"}`),
	}
	require.NoError(t, store.Add(clf))

	_, err = Load(store, "churn-forest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produces 13 features but classifier narrow expects 5")
}

// TestBuildRejectsInvalidPayloads verifies schema and semantic checks on payloads
func TestBuildRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		kind    string
		payload string
		want    string
	}{
		{"unknown kind", RoleClassifier, "xgboost", `{}`, "unknown artifact kind"},
		{"kind in wrong role", RolePreprocessor, KindRandomForest, `{}`, "cannot be used as preprocessor"},
		{"missing steps", RolePreprocessor, KindColumnTransformer, `{}`, "payload validation failed"},
		{"bad step type", RolePreprocessor, KindColumnTransformer,
			`{"steps":[{"type":"log","columns":["Age"]}]}`, "payload validation failed"},
		{"forest without trees", RoleClassifier, KindRandomForest,
			`{"n_features":13,"classes":[0,1],"trees":[]}`, "payload validation failed"},
		{"negative leaf weight", RoleClassifier, KindRandomForest,
			`{"n_features":1,"classes":[0,1],"trees":[{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[-1,2]]}]}`,
			"payload validation failed"},
		{"broken tree", RoleClassifier, KindRandomForest,
			`{"n_features":1,"classes":[0,1],"trees":[{"children_left":[0],"children_right":[0],"feature":[0],"threshold":[0],"value":[[1,1]]}]}`,
			"invalid classifier"},
		{"empty expression", RoleClassifier, KindCELScorer, `{"n_features":1,"expression":""}`, "payload validation failed"},
		{"non numeric expression", RoleClassifier, KindCELScorer,
			`{"n_features":1,"expression":"x[0] > 1.0"}`, "invalid classifier"},
		{"foreign columns", RolePreprocessor, KindColumnTransformer,
			`{"feature_names_in":["Age"],"steps":[{"type":"passthrough","columns":["Age"]}]}`, "was fitted on columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{
				Model:   "m",
				Role:    tt.role,
				Kind:    tt.kind,
				Version: "1",
				Payload: json.RawMessage(tt.payload),
			}

			var err error
			if tt.role == RolePreprocessor {
				_, err = BuildPreprocessor(a)
			} else {
				_, err = BuildClassifier(a)
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestBuildPreprocessorContractVersion verifies artifacts for another contract are refused
func TestBuildPreprocessorContractVersion(t *testing.T) {
	a, err := NewFileStore(sampleModels).Get("churn-forest", RolePreprocessor)
	require.NoError(t, err)

	a.FeatureContract = "v0"
	_, err = BuildPreprocessor(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature contract v0")
}
