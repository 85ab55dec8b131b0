package smbauth

import "testing"

func TestHandshakeState_Next(t *testing.T) {
	tests := []struct {
		state HandshakeState
		want  HandshakeState
	}{
		{StateNotStarted, StateNegotiateSent},
		{StateNegotiateSent, StateChallengeReceived},
		{StateChallengeReceived, StateAuthenticateSent},
		{StateAuthenticateSent, StateComplete},
		{StateComplete, StateComplete},
	}

	for _, tt := range tests {
		if got := tt.state.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestHandshakeState_String(t *testing.T) {
	tests := []struct {
		state HandshakeState
		want  string
	}{
		{StateNotStarted, "NOT_STARTED"},
		{StateNegotiateSent, "NEGOTIATE_SENT"},
		{StateChallengeReceived, "CHALLENGE_RECEIVED"},
		{StateAuthenticateSent, "AUTHENTICATE_SENT"},
		{StateComplete, "COMPLETE"},
		{HandshakeState(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("HandshakeState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestConn_AdvanceState(t *testing.T) {
	c, err := NewConn(nil, &Config{Logger: &NullLogger{}})
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != StateNotStarted {
		t.Fatalf("State() = %s, want NOT_STARTED", c.State())
	}

	for i := 0; i < 6; i++ {
		c.AdvanceState()
	}
	if c.State() != StateComplete {
		t.Errorf("State() = %s after six advances, want COMPLETE", c.State())
	}

	c.SetState(StateNotStarted)
	if got := c.AdvanceState(); got != StateNegotiateSent {
		t.Errorf("AdvanceState() = %s, want NEGOTIATE_SENT", got)
	}
}
