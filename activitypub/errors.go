package activitypub

import "errors"

// Sentinel errors surfaced by resolution and fetching. Callers discriminate
// with errors.Is; the transport layer maps them to HTTP statuses.
var (
	// ErrNotFound means the user or object could not be located, either
	// locally or through discovery.
	ErrNotFound = errors.New("activitypub: not found")

	// ErrActorGone means the remote server answered 410 for the actor; the
	// account has been deleted and should not be retried.
	ErrActorGone = errors.New("activitypub: actor gone")

	// ErrIdentityMismatch means a fetched document's id did not match the
	// address it was fetched from, or discovery produced inconsistent
	// identities. Treated as a spoofing attempt.
	ErrIdentityMismatch = errors.New("activitypub: identity mismatch")

	// ErrBlockedInstance means federation policy forbids interacting with
	// the host in question.
	ErrBlockedInstance = errors.New("activitypub: instance blocked")

	// ErrInvalidRequest means the inbound activity or query was malformed
	// or violated protocol requirements.
	ErrInvalidRequest = errors.New("activitypub: invalid request")
)
