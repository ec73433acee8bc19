package chessdto

const EventState = "state"

// Event is one websocket frame.
type Event struct {
	Type  string        `json:"type"`
	State *SessionState `json:"state"`
}
