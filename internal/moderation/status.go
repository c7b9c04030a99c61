package moderation

// Status is the moderation lifecycle state of a comment. It is never
// user-writable: the initial value comes from classification and later
// changes only through an explicit moderator action.
type Status string

const (
	// StatusPending holds the comment for manual review.
	StatusPending Status = "pending"
	// StatusApproved makes the comment publicly visible.
	StatusApproved Status = "approved"
	// StatusRejected hides the comment permanently unless a moderator
	// reverses the decision.
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// InitialStatus computes the creation-time status from the classifier
// outcome. Content is never re-evaluated after creation.
func InitialStatus(autoApprove bool) Status {
	if autoApprove {
		return StatusApproved
	}
	return StatusPending
}

// CanTransition reports whether a moderator action may move a comment from
// one status to another. Any move between distinct valid states is allowed,
// including reversing a rejection; only the actor is restricted, not the
// edge.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return from != to
}
