package domain

// MaxRequestsPerRun is the default ceiling on outbound calls in one run.
const MaxRequestsPerRun = 150

// RequestBudget caps the number of outbound third-party calls within a run.
//
// A budget belongs to exactly one run and is handed to every component
// that issues calls. It is not safe for concurrent use; runs process
// accounts sequentially.
type RequestBudget struct {
	ceiling  int
	consumed int
}

// NewRequestBudget creates an empty budget with the given ceiling.
// A negative ceiling is treated as zero.
func NewRequestBudget(ceiling int) *RequestBudget {
	if ceiling < 0 {
		ceiling = 0
	}
	return &RequestBudget{ceiling: ceiling}
}

// Ceiling returns the maximum number of calls.
func (b *RequestBudget) Ceiling() int {
	return b.ceiling
}

// Consumed returns the number of calls made so far.
func (b *RequestBudget) Consumed() int {
	return b.consumed
}

// Remaining reports whether another call may be issued.
func (b *RequestBudget) Remaining() bool {
	return b.consumed < b.ceiling
}

// Increment records one outbound call.
func (b *RequestBudget) Increment() {
	b.consumed++
}

// Take checks the budget and records a call in one step.
// It returns ErrBudgetExhausted, without recording, once the ceiling is reached.
func (b *RequestBudget) Take() error {
	if !b.Remaining() {
		return ErrBudgetExhausted
	}
	b.Increment()
	return nil
}
