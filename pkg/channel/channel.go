// Package channel defines the SecureChannel capability the session layer
// drives: one logical secure session per camera name, owned by an external
// implementation that performs key exchange, encryption and group handling.
//
// The session layer never inspects channel state. It only addresses a
// session by camera name and observes success or failure.
package channel

import (
	"context"
	"errors"
)

// Errors returned at the channel boundary.
var (
	// ErrInitialize is returned when the implementation reports that
	// initialization failed.
	ErrInitialize = errors.New("channel: initialize failed")

	// ErrDecode is returned when a payload cannot be decoded: no session,
	// corrupted payload or a protocol-level error.
	ErrDecode = errors.New("channel: decode failed")

	// ErrOperation is returned when a send-style operation reports failure.
	ErrOperation = errors.New("channel: operation failed")

	// ErrClosed is returned when the channel implementation has shut down.
	ErrClosed = errors.New("channel: closed")
)

// Legacy sentinel strings used by string-returning bindings.
const (
	SentinelNoPayload = "None"
	SentinelError     = "Error"
)

// InitParams are the inputs to SecureChannel.Initialize.
type InitParams struct {
	ServerAddress   string
	RelayToken      string
	StorageDir      string
	CameraName      string
	FirstTime       bool
	UserCredentials []byte
}

// DecodedKind distinguishes successful decode outcomes.
type DecodedKind int

const (
	// DecodedNoPayload means the camera only signalled that new footage is
	// available. There is no embedded event data.
	DecodedNoPayload DecodedKind = iota

	// DecodedEvent means the payload carried event text.
	DecodedEvent
)

// String returns the kind name.
func (k DecodedKind) String() string {
	switch k {
	case DecodedNoPayload:
		return "NoPayload"
	case DecodedEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// Decoded is a successful decode result. Failures are reported as errors.
type Decoded struct {
	Kind DecodedKind

	// Event is the decoded event text, set when Kind is DecodedEvent.
	// Its format is "<cameraName>_<unixSeconds>".
	Event string
}

// FromSentinel converts a legacy string result into a Decoded value.
func FromSentinel(s string) (Decoded, error) {
	switch s {
	case SentinelNoPayload:
		return Decoded{Kind: DecodedNoPayload}, nil
	case SentinelError, "":
		return Decoded{}, ErrDecode
	default:
		return Decoded{Kind: DecodedEvent, Event: s}, nil
	}
}

// SecureChannel is the per-camera secure session capability.
//
// Implementations must be safe for concurrent use across camera names.
// Calls for the same camera name are serialized by the caller.
type SecureChannel interface {
	// Initialize connects the session for p.CameraName, creating keying
	// material when p.FirstTime is set.
	Initialize(ctx context.Context, p InitParams) error

	// Decode decrypts a push payload addressed to camera.
	Decode(ctx context.Context, camera string, payload []byte) (Decoded, error)

	// UpdateToken pushes a new relay token through the session.
	UpdateToken(ctx context.Context, token, camera string) error

	// AddCamera pairs camera at cameraIP using the pairing secret.
	AddCamera(ctx context.Context, camera, cameraIP string, secret []byte) error

	// Deregister tears down the session for camera.
	Deregister(ctx context.Context, camera string) error

	// Receive fetches pending footage for camera and returns the received
	// video names, whitespace separated.
	Receive(ctx context.Context, camera string) (string, error)

	// LivestreamStart starts a livestream from camera.
	LivestreamStart(ctx context.Context, camera string) error

	// LivestreamRead reads up to n bytes of livestream data.
	LivestreamRead(ctx context.Context, camera string, n int) ([]byte, error)

	// LivestreamEnd stops the livestream from camera.
	LivestreamEnd(ctx context.Context, camera string) error
}
