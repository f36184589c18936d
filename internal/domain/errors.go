package domain

import "errors"

var (
	// ErrUnauthorized is returned when a submission arrives without a valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrContestNotFound indicates the contest slug does not resolve to an active contest.
	ErrContestNotFound = errors.New("contest not found")
	// ErrDuplicateSubmission indicates a single-attempt contest already has an
	// attempt recorded for this user.
	ErrDuplicateSubmission = errors.New("attempt already submitted")
	// ErrInvalidSubmission indicates a structurally malformed submission payload.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAttemptNotFound indicates no attempt is recorded for the (user, contest) pair.
	ErrAttemptNotFound = errors.New("attempt not found")
)
