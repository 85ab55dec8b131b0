package smbauth

// HandshakeState tracks an NTLM exchange. Each transition corresponds to one
// Make/Take pair; the codec never advances it, the mechanism layer does.
type HandshakeState int

const (
	StateNotStarted HandshakeState = iota
	StateNegotiateSent
	StateChallengeReceived
	StateAuthenticateSent
	StateComplete
)

// Next returns the state that follows s. StateComplete is terminal.
func (s HandshakeState) Next() HandshakeState {
	if s >= StateComplete {
		return StateComplete
	}
	return s + 1
}

// String returns the state name
func (s HandshakeState) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateNegotiateSent:
		return "NEGOTIATE_SENT"
	case StateChallengeReceived:
		return "CHALLENGE_RECEIVED"
	case StateAuthenticateSent:
		return "AUTHENTICATE_SENT"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}
