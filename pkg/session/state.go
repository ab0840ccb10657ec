package session

// ChannelState is the lifecycle state of one camera's secure channel as
// seen from this layer.
//
//	Uninitialized --connect(success, firstTime)--> Established
//	Uninitialized --connect(failure)-------------> Uninitialized
//	Established   --connect(success)-------------> Established
//	Established   --deregister(success)----------> Uninitialized
type ChannelState int

const (
	// StateUninitialized means first-time initialization has never
	// completed, or the camera was deregistered.
	StateUninitialized ChannelState = iota

	// StateEstablished means first-time initialization completed together
	// with the operation that required it.
	StateEstablished
)

// String returns a human-readable name for the state.
func (s ChannelState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateEstablished:
		return "Established"
	default:
		return "Unknown"
	}
}
