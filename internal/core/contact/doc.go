// Package contact maintains the ordered, deduplicated set of receptionist
// contact points known to a client session.
//
// The registry is owned by exactly one session and is not safe for
// concurrent use; the session's mailbox loop serializes every call.
//
// Insertion order is rotation order. Entries whose consecutive failure
// count exceeds the configured ceiling are skipped by rotation until
// ResetFailures is called after a full-registry backoff.
package contact
