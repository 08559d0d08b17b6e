package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates no row/résource exists for the given key.
var ErrNotFound = errors.New("domain: not found")

// ErrStoreUnavailable indicates the backing database is missing, corrupt,
// or otherwise unreachable. Callers should treat this as fatal.
var ErrStoreUnavailable = errors.New("domain: store unavailable")

// InvalidTransitionError reports a ControlPlane- or worker-requested status
// change that is not a legal edge in the job state machine.
type InvalidTransitionError struct {
	JobID int64
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("domain: invalid transition for job %d: %s -> %s", e.JobID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ErrInvalidTransition is the sentinel InvalidTransitionError wraps, for
// errors.Is checks at call sites that don't care about the job/from/to.
var ErrInvalidTransition = errors.New("domain: invalid transition")

// ProposalParseError records that the oracle's response text could not be
// parsed into a well-formed Proposal. The caller falls back to a
// metadata-only proposal; this error is recorded as the job's diagnostic.
type ProposalParseError struct {
	Raw string
	Err error
}

func (e *ProposalParseError) Error() string {
	return fmt.Sprintf("domain: could not parse oracle response as a proposal: %v", e.Err)
}

func (e *ProposalParseError) Unwrap() error {
	return e.Err
}
