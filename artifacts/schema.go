package artifacts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Artifact kinds understood by the loader
const (
	KindColumnTransformer = "column_transformer"
	KindRandomForest      = "random_forest"
	KindCELScorer         = "cel_scorer"
)

// kindRoles maps each kind to the role it can fill
var kindRoles = map[string]Role{
	KindColumnTransformer: RolePreprocessor,
	KindRandomForest:      RoleClassifier,
	KindCELScorer:         RoleClassifier,
}

const columnTransformerSchema = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "feature_names_in": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["type", "columns"],
        "properties": {
          "type": {"enum": ["scale", "onehot", "passthrough"]},
          "columns": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "mean": {"type": "array", "items": {"type": "number"}},
          "scale": {"type": "array", "items": {"type": "number"}},
          "categories": {
            "type": "array",
            "items": {"type": "array", "items": {"type": "string"}, "minItems": 1}
          },
          "handle_unknown": {"enum": ["", "error", "ignore"]},
          "drop": {"enum": ["", "none", "first"]}
        }
      }
    }
  }
}`

const randomForestSchema = `{
  "type": "object",
  "required": ["n_features", "classes", "trees"],
  "properties": {
    "n_features": {"type": "integer", "minimum": 1},
    "classes": {"type": "array", "items": {"type": "integer"}, "minItems": 2},
    "positive_class": {"type": "integer"},
    "trees": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["children_left", "children_right", "feature", "threshold", "value"],
        "properties": {
          "children_left": {"type": "array", "items": {"type": "integer"}, "minItems": 1},
          "children_right": {"type": "array", "items": {"type": "integer"}, "minItems": 1},
          "feature": {"type": "array", "items": {"type": "integer"}, "minItems": 1},
          "threshold": {"type": "array", "items": {"type": "number"}, "minItems": 1},
          "value": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "array", "items": {"type": "number", "minimum": 0}}
          }
        }
      }
    }
  }
}`

const celScorerSchema = `{
  "type": "object",
  "required": ["n_features", "expression"],
  "properties": {
    "n_features": {"type": "integer", "minimum": 1},
    "expression": {"type": "string", "minLength": 1},
    "output": {"enum": ["logit", "probability"]},
    "threshold": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var kindSchemaSources = map[string]string{
	KindColumnTransformer: columnTransformerSchema,
	KindRandomForest:      randomForestSchema,
	KindCELScorer:         celScorerSchema,
}

var (
	schemasOnce sync.Once
	schemas     map[string]*gojsonschema.Schema
	schemasErr  error
)

func compiledSchemas() (map[string]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[string]*gojsonschema.Schema, len(kindSchemaSources))
		for kind, src := range kindSchemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemasErr = fmt.Errorf("invalid %s schema: %w", kind, err)
				return
			}
			schemas[kind] = s
		}
	})
	return schemas, schemasErr
}

// Kinds returns the artifact kinds that have a payload schema
func Kinds() []string {
	return []string{KindColumnTransformer, KindRandomForest, KindCELScorer}
}

// ValidatePayload checks a's payload against the JSON Schema of its kind
// and that the kind fits the artifact's role
func ValidatePayload(a *Artifact) error {
	role, ok := kindRoles[a.Kind]
	if !ok {
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	if role != a.Role {
		return fmt.Errorf("artifact kind %s cannot be used as %s", a.Kind, a.Role)
	}

	all, err := compiledSchemas()
	if err != nil {
		return err
	}

	result, err := all[a.Kind].Validate(gojsonschema.NewBytesLoader(a.Payload))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%s payload validation failed: %s", a.Kind, strings.Join(errs, "; "))
	}
	return nil
}
