package domain

import "errors"

var (
	// ErrInvalidParameter marks caller errors such as a negative standard
	// deviation. It is the only error the computational core returns.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMissingData marks lookups with no matching records. It is never
	// returned by the core; it is carried by a Warning instead.
	ErrMissingData = errors.New("missing data")

	// ErrSchemaViolation marks source tables without their required columns.
	// Loaders return it before the core is invoked.
	ErrSchemaViolation = errors.New("schema violation")
)

// Warning kinds.
const (
	WarningMissingData      = "missing_data"
	WarningNegativeBaseline = "negative_baseline"
)

// Warning reports a data-quality condition that was absorbed with a fallback
// instead of failing the request.
type Warning struct {
	Kind    string `json:"kind"`
	Region  string `json:"region,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Kind + ": " + w.Message
}
