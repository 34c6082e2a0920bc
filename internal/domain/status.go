package domain

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaying    Status = "PAYING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCheckIn   Status = "CHECKIN"
	StatusCheckOut  Status = "CHECKOUT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusPaying, StatusConfirmed, StatusCancelled, StatusExpired},
	StatusPaying:    {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCheckIn},
	StatusCheckIn:   {StatusCheckOut},
	StatusCheckOut:  {StatusCompleted},
}

// InactiveStatuses never block a room.
var InactiveStatuses = []Status{StatusCancelled, StatusCompleted, StatusExpired}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	switch st {
	case StatusPending, StatusPaying, StatusConfirmed, StatusCheckIn,
		StatusCheckOut, StatusCompleted, StatusCancelled, StatusExpired:
		return st, true
	}
	return "", false
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// IsActive reports whether a booking in this status occupies its rooms.
func (s Status) IsActive() bool {
	for _, inactive := range InactiveStatuses {
		if s == inactive {
			return false
		}
	}
	return true
}
