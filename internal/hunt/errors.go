package hunt

import "errors"

var (
	ErrEmptyCatalog        = errors.New("no challenge template matches")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrMalformedSubmission = errors.New("malformed submission")
	ErrAlreadyFinalized    = errors.New("challenge already finalized for player")
	ErrGraderUnavailable   = errors.New("grader unavailable")
	ErrStorageConflict     = errors.New("concurrent progress update")
	ErrInvalidRequest      = errors.New("invalid request")
)

// IsRetryable reports whether the caller should retry the whole
// validate-and-commit operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGraderUnavailable) || errors.Is(err, ErrStorageConflict)
}
