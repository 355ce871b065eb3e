package domain

// RegistrationState is the per (event, user) state.
type RegistrationState string

const (
	StateNotRegistered RegistrationState = "not_registered"
	StateRegistered    RegistrationState = "registered"
)

// Registration is the outcome of a successful register call.
type Registration struct {
	EventID     string            `json:"event_id"`
	UserID      string            `json:"user_id"`
	State       RegistrationState `json:"status"`
	Reserved    int               `json:"reserved"`
	MaxCapacity int               `json:"max_capacity"`
}

// Cancellation is the outcome of a cancel call. Changed is false for the
// idempotent no-op when the user was not registered.
type Cancellation struct {
	EventID  string            `json:"event_id"`
	UserID   string            `json:"user_id"`
	State    RegistrationState `json:"status"`
	Changed  bool              `json:"changed"`
	Reserved int               `json:"reserved"`
}
