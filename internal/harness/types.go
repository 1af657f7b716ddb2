package harness

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Pipeline is the canonical JSON of the compiled pipeline, empty when
	// compilation failed.
	Pipeline string `json:"pipeline,omitempty"`

	// ID is the content-addressed pipeline ID.
	ID string `json:"id,omitempty"`

	// Output is the canonical JSON of the inferred output schema. Only set
	// when the scenario has an input schema.
	Output string `json:"output,omitempty"`

	// Problems are the type problems found, rendered as strings.
	Problems []string `json:"problems,omitempty"`

	// Err is the compile or decode error, if any.
	Err string `json:"err,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
