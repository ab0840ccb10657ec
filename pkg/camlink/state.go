package camlink

// AppState represents the lifecycle state of an App.
type AppState int

const (
	// AppStateUnconfigured means the install has no server address or
	// user credentials yet.
	AppStateUnconfigured AppState = iota

	// AppStateUnpaired means the install is configured but has no cameras.
	AppStateUnpaired

	// AppStateReady means at least one camera is paired.
	AppStateReady

	// AppStateClosed means the App has been shut down.
	AppStateClosed
)

// String returns a human-readable name for the state.
func (s AppState) String() string {
	switch s {
	case AppStateUnconfigured:
		return "Unconfigured"
	case AppStateUnpaired:
		return "Unpaired"
	case AppStateReady:
		return "Ready"
	case AppStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CanReceivePushes returns true if pushes can be decoded in this state.
func (s AppState) CanReceivePushes() bool {
	return s == AppStateReady
}
