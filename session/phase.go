package session

// Phase is the identity-verification state.
type Phase string

const (
	PhaseAnonymous        Phase = "anonymous"
	PhasePhoneSubmitted   Phase = "phone_submitted"
	PhaseAwaitingPassword Phase = "awaiting_password"
	PhaseAwaitingOTP      Phase = "awaiting_otp"
	PhaseAuthenticated    Phase = "authenticated"
)

func (p Phase) String() string { return string(p) }

// EventKind names a session change.
type EventKind string

const (
	EventPhaseChanged   EventKind = "phase_changed"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventRefreshFailed  EventKind = "refresh_failed"
	EventLoggedOut      EventKind = "logged_out"
)

// Event is published to subscribers after the state has been committed.
type Event struct {
	Kind  EventKind
	Phase Phase
	// Reason is set on forced logouts.
	Reason string
}

// State is a token-free view of the session.
type State struct {
	Phase       Phase  `json:"phase"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Authenticated reports whether the phase is PhaseAuthenticated.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}
