package artifacts

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/liamcoop/churn/inference"
	"github.com/liamcoop/churn/model"
)

// Info describes a loaded artifact without its payload
type Info struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Version         string    `json:"version"`
	FeatureContract string    `json:"featureContract,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func infoOf(a *Artifact) Info {
	return Info{
		ID:              a.ID,
		Kind:            a.Kind,
		Version:         a.Version,
		FeatureContract: a.FeatureContract,
		CreatedAt:       a.CreatedAt,
	}
}

// Bundle is a preprocessor and classifier pair that agree on their contract
type Bundle struct {
	Model            string
	Preprocessor     inference.Preprocessor
	Classifier       inference.Classifier
	PreprocessorInfo Info
	ClassifierInfo   Info
}

// Adapter wraps the bundle in an inference adapter
func (b *Bundle) Adapter() (*inference.Adapter, error) {
	return inference.NewAdapter(b.Preprocessor, b.Classifier)
}

type widther interface {
	Width() int
}

type featureCounter interface {
	NFeatures() int
}

// Load fetches the active artifacts of name from store and builds them.
// It fails when the two artifacts disagree on the feature layout.
func Load(store Store, name string) (*Bundle, error) {
	preArt, err := store.Get(name, RolePreprocessor)
	if err != nil {
		return nil, fmt.Errorf("failed to load preprocessor: %w", err)
	}
	clfArt, err := store.Get(name, RoleClassifier)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}

	pre, err := BuildPreprocessor(preArt)
	if err != nil {
		return nil, err
	}
	clf, err := BuildClassifier(clfArt)
	if err != nil {
		return nil, err
	}

	if w, ok := pre.(widther); ok {
		if n, ok := clf.(featureCounter); ok && w.Width() != n.NFeatures() {
			return nil, fmt.Errorf("preprocessor %s produces %d features but classifier %s expects %d",
				preArt.Version, w.Width(), clfArt.Version, n.NFeatures())
		}
	}

	return &Bundle{
		Model:            name,
		Preprocessor:     pre,
		Classifier:       clf,
		PreprocessorInfo: infoOf(preArt),
		ClassifierInfo:   infoOf(clfArt),
	}, nil
}

// BuildPreprocessor validates a and constructs the preprocessor it describes
func BuildPreprocessor(a *Artifact) (inference.Preprocessor, error) {
	if err := ValidatePayload(a); err != nil {
		return nil, err
	}
	if a.FeatureContract != "" && a.FeatureContract != inference.FeatureContractVersion {
		return nil, fmt.Errorf("preprocessor %s targets feature contract %s, service provides %s",
			a.Version, a.FeatureContract, inference.FeatureContractVersion)
	}

	var spec model.ColumnTransformerSpec
	if err := json.Unmarshal(a.Payload, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", a.Kind, err)
	}
	if spec.FeatureNamesIn == nil {
		spec.FeatureNamesIn = inference.FeatureColumns()
	}
	if !slices.Equal(spec.FeatureNamesIn, inference.FeatureColumns()) {
		return nil, fmt.Errorf("preprocessor %s was fitted on columns %v, service provides %v",
			a.Version, spec.FeatureNamesIn, inference.FeatureColumns())
	}

	ct, err := model.NewColumnTransformer(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid preprocessor %s: %w", a.Version, err)
	}
	return ct, nil
}

// BuildClassifier validates a and constructs the classifier it describes
func BuildClassifier(a *Artifact) (inference.Classifier, error) {
	if err := ValidatePayload(a); err != nil {
		return nil, err
	}

	switch a.Kind {
	case KindRandomForest:
		var spec model.ForestSpec
		if err := json.Unmarshal(a.Payload, &spec); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", a.Kind, err)
		}
		f, err := model.NewForest(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier %s: %w", a.Version, err)
		}
		return f, nil

	case KindCELScorer:
		var spec model.CELScorerSpec
		if err := json.Unmarshal(a.Payload, &spec); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", a.Kind, err)
		}
		s, err := model.NewCELScorer(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier %s: %w", a.Version, err)
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown classifier kind %q", a.Kind)
}
