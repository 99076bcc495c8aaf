package call

// State is the negotiation state of a Session.
type State int

const (
	// Idle: no room, no media, no peer connection activity.
	Idle State = iota
	// AwaitingMedia: a room was chosen and capture is being acquired.
	AwaitingMedia
	// Joined: in the room with local tracks attached, no negotiation yet.
	Joined
	// Offering: a local offer was sent and its answer is awaited.
	Offering
	// Answering: a remote offer was applied and the answer is being produced.
	Answering
	// Connected: both descriptions are applied.
	Connected
	// Closed is terminal.
	Closed
)

var stateNames = [...]string{
	Idle:          "idle",
	AwaitingMedia: "awaiting-media",
	Joined:        "joined",
	Offering:      "offering",
	Answering:     "answering",
	Connected:     "connected",
	Closed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// negotiating reports whether signaling for the room is meaningful in s.
func (s State) negotiating() bool {
	switch s {
	case Joined, Offering, Answering, Connected:
		return true
	}
	return false
}

// Transition is reported to state observers.
type Transition struct {
	From State
	To   State
	// Err is set when the transition to Closed was caused by a failure.
	Err error
}
