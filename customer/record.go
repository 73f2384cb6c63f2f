package customer

// Geography is the customer's country
type Geography string

const (
	France  Geography = "France"
	Germany Geography = "Germany"
	Spain   Geography = "Spain"
)

// Gender is the customer's gender as recorded by the bank
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// Geographies lists the accepted geography values in form order
func Geographies() []Geography {
	return []Geography{France, Germany, Spain}
}

// Genders lists the accepted gender values in form order
func Genders() []Gender {
	return []Gender{Male, Female}
}

// Fields holds the raw attribute values of a customer.
// A Fields value carries no guarantees; only a Record does.
type Fields struct {
	CreditScore     int       `json:"creditScore"`
	Geography       Geography `json:"geography" validate:"oneof=France Germany Spain"`
	Gender          Gender    `json:"gender" validate:"oneof=Male Female"`
	Age             int       `json:"age" validate:"min=18,max=100"`
	Tenure          int       `json:"tenure" validate:"min=0,max=10"`
	Balance         float64   `json:"balance" validate:"finite,min=0"`
	NumOfProducts   int       `json:"numOfProducts" validate:"min=1,max=4"`
	HasCreditCard   int       `json:"hasCreditCard" validate:"oneof=0 1"`
	IsActiveMember  int       `json:"isActiveMember" validate:"oneof=0 1"`
	EstimatedSalary float64   `json:"estimatedSalary" validate:"finite,min=0"`
}

// Record is a validated customer. The zero Record is not valid; records
// are only obtained from New or Parse and cannot be modified afterwards.
type Record struct {
	f Fields
}

// New validates f and returns a Record holding a copy of it
func New(f Fields) (Record, error) {
	if err := defaultValidator.check(f, nil); err != nil {
		return Record{}, err
	}
	return Record{f: f}, nil
}

// Fields returns a copy of the record's attributes
func (r Record) Fields() Fields {
	return r.f
}

// HasCreditCard reports whether the customer holds a credit card
func (r Record) HasCreditCard() bool {
	return r.f.HasCreditCard == 1
}

// IsActiveMember reports whether the customer is an active member
func (r Record) IsActiveMember() bool {
	return r.f.IsActiveMember == 1
}
