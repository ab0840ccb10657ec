package channel

import (
	"context"
	"sync"
)

// Method names, shared by the simulator call log and the bridge protocol.
const (
	MethodInitialize      = "initialize"
	MethodDecode          = "decode"
	MethodUpdateToken     = "update_token"
	MethodAddCamera       = "add_camera"
	MethodDeregister      = "deregister"
	MethodReceive         = "receive"
	MethodLivestreamStart = "livestream_start"
	MethodLivestreamRead  = "livestream_read"
	MethodLivestreamEnd   = "livestream_end"
)

// Call records one invocation on a Simulator.
type Call struct {
	Method    string
	Camera    string
	FirstTime bool
	Token     string
	Payload   []byte
}

// Simulator is an in-memory SecureChannel. It records every call and lets
// tests script failures or block inside a call through the hook fields.
// Hooks must be set before the simulator is shared.
//
// With no hooks set, Initialize and send-style operations succeed and
// Decode interprets the payload bytes as a legacy sentinel string.
type Simulator struct {
	InitializeFunc  func(ctx context.Context, p InitParams) error
	DecodeFunc      func(ctx context.Context, camera string, payload []byte) (Decoded, error)
	UpdateTokenFunc func(ctx context.Context, token, camera string) error
	AddCameraFunc   func(ctx context.Context, camera, cameraIP string, secret []byte) error
	ReceiveFunc     func(ctx context.Context, camera string) (string, error)

	mu          sync.Mutex
	calls       []Call
	established map[string]bool
	streaming   map[string]bool
}

// NewSimulator creates a simulator with no scripted behaviour.
func NewSimulator() *Simulator {
	return &Simulator{
		established: make(map[string]bool),
		streaming:   make(map[string]bool),
	}
}

func (s *Simulator) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Initialize implements SecureChannel.
func (s *Simulator) Initialize(ctx context.Context, p InitParams) error {
	s.record(Call{Method: MethodInitialize, Camera: p.CameraName, FirstTime: p.FirstTime, Token: p.RelayToken})
	if s.InitializeFunc != nil {
		if err := s.InitializeFunc(ctx, p); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.established[p.CameraName] = true
	return nil
}

// Decode implements SecureChannel.
func (s *Simulator) Decode(ctx context.Context, camera string, payload []byte) (Decoded, error) {
	s.record(Call{Method: MethodDecode, Camera: camera, Payload: append([]byte(nil), payload...)})
	if s.DecodeFunc != nil {
		return s.DecodeFunc(ctx, camera, payload)
	}
	return FromSentinel(string(payload))
}

// UpdateToken implements SecureChannel.
func (s *Simulator) UpdateToken(ctx context.Context, token, camera string) error {
	s.record(Call{Method: MethodUpdateToken, Camera: camera, Token: token})
	if s.UpdateTokenFunc != nil {
		return s.UpdateTokenFunc(ctx, token, camera)
	}
	return nil
}

// AddCamera implements SecureChannel.
func (s *Simulator) AddCamera(ctx context.Context, camera, cameraIP string, secret []byte) error {
	s.record(Call{Method: MethodAddCamera, Camera: camera, Payload: append([]byte(nil), secret...)})
	if s.AddCameraFunc != nil {
		return s.AddCameraFunc(ctx, camera, cameraIP, secret)
	}
	return nil
}

// Deregister implements SecureChannel.
func (s *Simulator) Deregister(_ context.Context, camera string) error {
	s.record(Call{Method: MethodDeregister, Camera: camera})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.established, camera)
	delete(s.streaming, camera)
	return nil
}

// Receive implements SecureChannel.
func (s *Simulator) Receive(ctx context.Context, camera string) (string, error) {
	s.record(Call{Method: MethodReceive, Camera: camera})
	if s.ReceiveFunc != nil {
		return s.ReceiveFunc(ctx, camera)
	}
	return "", nil
}

// LivestreamStart implements SecureChannel.
func (s *Simulator) LivestreamStart(_ context.Context, camera string) error {
	s.record(Call{Method: MethodLivestreamStart, Camera: camera})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming[camera] = true
	return nil
}

// LivestreamRead implements SecureChannel. It returns n zero bytes while a
// livestream is active.
func (s *Simulator) LivestreamRead(_ context.Context, camera string, n int) ([]byte, error) {
	s.record(Call{Method: MethodLivestreamRead, Camera: camera})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming[camera] || n < 0 {
		return nil, ErrOperation
	}
	return make([]byte, n), nil
}

// LivestreamEnd implements SecureChannel.
func (s *Simulator) LivestreamEnd(_ context.Context, camera string) error {
	s.record(Call{Method: MethodLivestreamEnd, Camera: camera})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming[camera] {
		return ErrOperation
	}
	delete(s.streaming, camera)
	return nil
}

// Calls returns a copy of the call log.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many times method was called.
func (s *Simulator) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// InitializeCount returns how many Initialize calls for camera used the
// given firstTime value.
func (s *Simulator) InitializeCount(camera string, firstTime bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == MethodInitialize && c.Camera == camera && c.FirstTime == firstTime {
			n++
		}
	}
	return n
}

// Established reports whether camera has been initialized and not deregistered.
func (s *Simulator) Established(camera string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.established[camera]
}

// Verify Simulator implements SecureChannel.
var _ SecureChannel = (*Simulator)(nil)
