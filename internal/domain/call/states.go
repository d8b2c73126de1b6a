package call

import "strings"

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusRinging   Status = "RINGING"
	StatusAccepted  Status = "ACCEPTED"
	StatusEnded     Status = "ENDED"
	StatusRejected  Status = "REJECTED"
	StatusMissed    Status = "MISSED"
	StatusBusy      Status = "BUSY"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusEnded, StatusRejected, StatusMissed, StatusBusy:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusInitiated: {StatusRinging, StatusAccepted, StatusEnded, StatusRejected, StatusMissed, StatusBusy},
	StatusRinging:   {StatusAccepted, StatusEnded, StatusRejected, StatusMissed, StatusBusy},
	StatusAccepted:  {StatusEnded, StatusRejected, StatusMissed, StatusBusy},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf lists every state from which to is directly reachable.
func SourcesOf(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusInitiated, StatusRinging, StatusAccepted} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// EndStatus resolves the final status of an end request; anything that is
// not an explicit terminal status falls back to ENDED.
func EndStatus(requested string) Status {
	switch s := Status(strings.ToUpper(strings.TrimSpace(requested))); s {
	case StatusEnded, StatusRejected, StatusMissed, StatusBusy:
		return s
	}
	return StatusEnded
}
