package domain

// Status is the current position of an order in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Actor identifies who is requesting a change. Admin actors come from the
// role claim attached by the authentication layer; the core never verifies
// credentials itself.
type Actor struct {
	ID    string
	Name  string
	Admin bool
}

// transitions is the legal-transition table. A status absent from a row's
// set cannot be reached from that row.
var transitions = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusProcessing: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions. Terminal statuses
// never transition out, regardless of who asks.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether the transition table permits from -> to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Cancellable reports whether an order in status s is still eligible for
// cancellation.
func (s Status) Cancellable() bool {
	return CanTransition(s, StatusCancelled)
}

// ValidateTransition checks from -> to against the transition policy for the
// given actor. Admins may take any edge except out of a terminal status.
// Non-admin actors (the order's own customer) may only cancel an order that
// is still pending or confirmed. Self-transitions are the repository's
// concern (reported as "no change") and must be filtered before calling.
func ValidateTransition(from, to Status, actor Actor) error {
	if !from.Valid() || !to.Valid() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if from.Terminal() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if actor.Admin {
		return nil
	}
	if to == StatusCancelled && CanTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}
