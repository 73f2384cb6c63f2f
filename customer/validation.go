package customer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Constraint names reported in a Violation
const (
	ConstraintRequired = "required"
	ConstraintType     = "type"
	ConstraintOneOf    = "oneof"
	ConstraintMin      = "min"
	ConstraintMax      = "max"
	ConstraintFinite   = "finite"
)

// Violation describes one field that failed validation
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError is returned when one or more fields are invalid.
// Every failing field is listed, in schema order.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s %s", v.Field, v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the names of the failing fields
func (e *ValidationError) Fields() []string {
	names := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		names[i] = v.Field
	}
	return names
}

// fieldSpec binds a wire name to the setter that decodes a raw value into Fields
type fieldSpec struct {
	name   string
	assign func(f *Fields, raw any) error
}

// fieldSpecs is in schema order; violations are sorted by it
var fieldSpecs = []fieldSpec{
	{"creditScore", func(f *Fields, raw any) (err error) { f.CreditScore, err = toInt(raw); return }},
	{"geography", func(f *Fields, raw any) error {
		s, err := toString(raw)
		f.Geography = Geography(s)
		return err
	}},
	{"gender", func(f *Fields, raw any) error {
		s, err := toString(raw)
		f.Gender = Gender(s)
		return err
	}},
	{"age", func(f *Fields, raw any) (err error) { f.Age, err = toInt(raw); return }},
	{"tenure", func(f *Fields, raw any) (err error) { f.Tenure, err = toInt(raw); return }},
	{"balance", func(f *Fields, raw any) (err error) { f.Balance, err = toFloat(raw); return }},
	{"numOfProducts", func(f *Fields, raw any) (err error) { f.NumOfProducts, err = toInt(raw); return }},
	{"hasCreditCard", func(f *Fields, raw any) (err error) { f.HasCreditCard, err = toInt(raw); return }},
	{"isActiveMember", func(f *Fields, raw any) (err error) { f.IsActiveMember, err = toInt(raw); return }},
	{"estimatedSalary", func(f *Fields, raw any) (err error) { f.EstimatedSalary, err = toFloat(raw); return }},
}

// FieldNames returns the wire names of all customer fields in schema order
func FieldNames() []string {
	names := make([]string, len(fieldSpecs))
	for i, s := range fieldSpecs {
		names[i] = s.name
	}
	return names
}

// Parse builds a Record from raw field values as decoded from JSON or an HTML form.
// Numbers may arrive as Go numerics, json.Number or decimal strings.
// Missing, mistyped and out-of-range fields are all reported together.
func Parse(raw map[string]any) (Record, error) {
	var f Fields
	var violations []Violation
	skip := make(map[string]bool)

	for _, spec := range fieldSpecs {
		v, ok := raw[spec.name]
		if !ok || v == nil || v == "" {
			violations = append(violations, Violation{
				Field:      spec.name,
				Constraint: ConstraintRequired,
				Message:    "is required",
			})
			skip[spec.name] = true
			continue
		}
		if err := spec.assign(&f, v); err != nil {
			violations = append(violations, Violation{
				Field:      spec.name,
				Constraint: ConstraintType,
				Message:    err.Error(),
			})
			skip[spec.name] = true
		}
	}

	if err := defaultValidator.check(f, skip); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return Record{}, err
		}
		violations = append(violations, verr.Violations...)
	}

	if len(violations) > 0 {
		sortViolations(violations)
		return Record{}, &ValidationError{Violations: violations}
	}
	return Record{f: f}, nil
}

// recordValidator wraps the struct-tag validator with customer-specific rules
type recordValidator struct {
	v *validator.Validate
}

var defaultValidator = newRecordValidator()

func newRecordValidator() *recordValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation(ConstraintFinite, isFinite); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", ConstraintFinite, err))
	}
	return &recordValidator{v: v}
}

// check validates f, ignoring failures on fields listed in skip
func (rv *recordValidator) check(f Fields, skip map[string]bool) error {
	err := rv.v.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate customer fields: %w", err)
	}

	var violations []Violation
	for _, fe := range fieldErrs {
		if skip[fe.Field()] {
			continue
		}
		violations = append(violations, Violation{
			Field:      fe.Field(),
			Constraint: fe.Tag(),
			Message:    describe(fe),
		})
	}
	if len(violations) == 0 {
		return nil
	}
	sortViolations(violations)
	return &ValidationError{Violations: violations}
}

func isFinite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// describe renders a validator failure as a short message
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case ConstraintMin:
		return "must be >= " + fe.Param()
	case ConstraintMax:
		return "must be <= " + fe.Param()
	case ConstraintOneOf:
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case ConstraintFinite:
		return "must be a finite number"
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

func sortViolations(vs []Violation) {
	order := make(map[string]int, len(fieldSpecs))
	for i, s := range fieldSpecs {
		order[s.name] = i
	}
	sort.SliceStable(vs, func(i, j int) bool {
		return order[vs[i].Field] < order[vs[j].Field]
	})
}

// maxExactInt bounds integers a float64 represents exactly
const maxExactInt = 1 << 53

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return intFromFloat(v)
	case float32:
		return intFromFloat(float64(v))
	case json.Number:
		return intFromString(v.String())
	case string:
		return intFromString(v)
	default:
		return 0, fmt.Errorf("must be an integer, got %T", raw)
	}
}

func intFromString(s string) (int, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("must be an integer, got %q", s)
	}
	return intFromFloat(f)
}

func intFromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, fmt.Errorf("must be an integer, got %v", f)
	}
	return int(f), nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return floatFromString(v.String())
	case string:
		return floatFromString(v)
	default:
		return 0, fmt.Errorf("must be a number, got %T", raw)
	}
}

func floatFromString(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number, got %q", s)
	}
	return f, nil
}

func toString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("must be a string, got %T", raw)
	}
	return s, nil
}
