package llm

import "fmt"

// Failure kinds reported by the gateway once its repair and retry budget is
// exhausted.
const (
	FailureKindNetwork   = "network"
	FailureKindTimeout   = "timeout"
	FailureKindBadJSON   = "malformed_json"
	FailureKindEmpty     = "empty_response"
	FailureKindExhausted = "retries_exhausted"
)

// Failure is a structured LLM error carrying what went wrong and whether a
// retry could plausibly succeed.
type Failure struct {
	Kind      string
	Retryable bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("llm failure (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("llm failure (%s)", f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure wraps err as a gateway failure.
func NewFailure(kind string, retryable bool, err error) *Failure {
	return &Failure{Kind: kind, Retryable: retryable, Err: err}
}
