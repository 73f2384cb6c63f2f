package inference

import (
	"fmt"

	"github.com/liamcoop/churn/customer"
)

// FeatureContractVersion identifies the column layout produced by Arrange.
// Artifacts trained against a different layout must not be loaded.
const FeatureContractVersion = "v1"

// Column names in the order the trained artifacts expect them
const (
	ColCreditScore     = "CreditScore"
	ColGeography       = "Geography"
	ColGender          = "Gender"
	ColAge             = "Age"
	ColTenure          = "Tenure"
	ColBalance         = "Balance"
	ColNumOfProducts   = "NumOfProducts"
	ColHasCrCard       = "HasCrCard"
	ColIsActiveMember  = "IsActiveMember"
	ColEstimatedSalary = "EstimatedSalary"
)

var featureColumns = []string{
	ColCreditScore,
	ColGeography,
	ColGender,
	ColAge,
	ColTenure,
	ColBalance,
	ColNumOfProducts,
	ColHasCrCard,
	ColIsActiveMember,
	ColEstimatedSalary,
}

// FeatureColumns returns the column order of the current feature contract
func FeatureColumns() []string {
	cols := make([]string, len(featureColumns))
	copy(cols, featureColumns)
	return cols
}

// Frame is a single named row handed to a Preprocessor.
// Values are int, float64 or string.
type Frame struct {
	Columns []string
	Values  []any
}

// Arrange lays out rec according to the feature contract
func Arrange(rec customer.Record) Frame {
	f := rec.Fields()
	return Frame{
		Columns: FeatureColumns(),
		Values: []any{
			f.CreditScore,
			string(f.Geography),
			string(f.Gender),
			f.Age,
			f.Tenure,
			f.Balance,
			f.NumOfProducts,
			f.HasCreditCard,
			f.IsActiveMember,
			f.EstimatedSalary,
		},
	}
}

// Lookup returns the value of column
func (fr Frame) Lookup(column string) (any, error) {
	for i, c := range fr.Columns {
		if c == column {
			if i >= len(fr.Values) {
				return nil, fmt.Errorf("column %q has no value", column)
			}
			return fr.Values[i], nil
		}
	}
	return nil, fmt.Errorf("column %q not found in frame", column)
}

// Number returns the value of column as a float64
func (fr Frame) Number(column string) (float64, error) {
	v, err := fr.Lookup(column)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("column %q is not numeric (%T)", column, v)
	}
}
