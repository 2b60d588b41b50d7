package orders

// transitions is the legal status graph. FULFILLED and CANCELLED are
// terminal: nothing leaves them, and nothing ever re-enters PENDING_PAYMENT.
var transitions = map[string]map[string]bool{
	StatusPendingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:           {StatusFulfilled: true, StatusCancelled: true},
	StatusFulfilled:      {},
	StatusCancelled:      {},
}

// IsTransitionAllowed reports whether current -> next is in the graph.
// A same-state "transition" is not in the graph; callers treat it as a no-op
// success before consulting this matrix.
func IsTransitionAllowed(current, next string) bool {
	return transitions[current][next]
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(status string) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// KnownStatus reports whether s is one of the order statuses.
func KnownStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}
