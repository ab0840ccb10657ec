package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/store"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

func seedConfig(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, store.KeyServerAddress, "192.168.1.2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, store.KeyRelayToken, "relay-token"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetUserCredentials(ctx, s, []byte("user-creds")); err != nil {
		t.Fatal(err)
	}
}

func newTestManager(t *testing.T, sim *channel.Simulator) (*Manager, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	seedConfig(t, s)

	m, err := NewManager(ManagerConfig{
		Store:         s,
		Channel:       sim,
		FilesDir:      t.TempDir(),
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, s
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(ManagerConfig{Channel: channel.NewSimulator()}); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("NewManager() without store error = %v", err)
	}
	if _, err := NewManager(ManagerConfig{Store: store.NewMemoryStore()}); !errors.Is(err, ErrChannelRequired) {
		t.Errorf("NewManager() without channel error = %v", err)
	}
}

func TestEnsureConnected_FirstTimeThenEstablished(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	state, _ := m.State(ctx, "cam1")
	if state != StateUninitialized {
		t.Errorf("State() before connect = %v, want Uninitialized", state)
	}

	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Fatalf("second EnsureConnected() error = %v", err)
	}

	if got := sim.InitializeCount("cam1", true); got != 1 {
		t.Errorf("first-time initializations = %d, want 1", got)
	}
	if got := sim.InitializeCount("cam1", false); got != 1 {
		t.Errorf("established initializations = %d, want 1", got)
	}

	done, _ := store.FirstTimeDone(ctx, s, "cam1")
	if !done {
		t.Error("FirstTimeDone() = false after successful connect")
	}
	state, _ = m.State(ctx, "cam1")
	if state != StateEstablished {
		t.Errorf("State() = %v, want Established", state)
	}
}

func TestEnsureConnected_InitParams(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()

	var got channel.InitParams
	sim.InitializeFunc = func(_ context.Context, p channel.InitParams) error {
		got = p
		return nil
	}
	m, _ := newTestManager(t, sim)

	if err := m.EnsureConnected(ctx, "porch"); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}

	if got.ServerAddress != "192.168.1.2" || got.RelayToken != "relay-token" {
		t.Errorf("InitParams = %+v", got)
	}
	if string(got.UserCredentials) != "user-creds" {
		t.Errorf("UserCredentials = %q", got.UserCredentials)
	}
	if got.CameraName != "porch" || !got.FirstTime {
		t.Errorf("InitParams camera/firstTime = %q/%v", got.CameraName, got.FirstTime)
	}
	if filepath.Base(got.StorageDir) != "camera_dir_porch" {
		t.Errorf("StorageDir = %q", got.StorageDir)
	}
	if fi, err := os.Stat(got.StorageDir); err != nil || !fi.IsDir() {
		t.Errorf("storage dir not created: %v", err)
	}
}

func TestEnsureConnected_MissingConfig(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx context.Context, s *store.MemoryStore)
	}{
		{"no server address", func(ctx context.Context, s *store.MemoryStore) {
			s.Delete(ctx, store.KeyServerAddress)
		}},
		{"no relay token", func(ctx context.Context, s *store.MemoryStore) {
			s.Delete(ctx, store.KeyRelayToken)
		}},
		{"legacy invalid token", func(ctx context.Context, s *store.MemoryStore) {
			s.Set(ctx, store.KeyRelayToken, store.LegacyInvalid)
		}},
		{"no credentials", func(ctx context.Context, s *store.MemoryStore) {
			s.Delete(ctx, store.KeyUserCredentials)
		}},
		{"undecodable credentials", func(ctx context.Context, s *store.MemoryStore) {
			s.Set(ctx, store.KeyUserCredentials, "%%%")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			sim := channel.NewSimulator()
			m, s := newTestManager(t, sim)
			tt.setup(ctx, s)

			err := m.EnsureConnected(ctx, "cam1")
			if !errors.Is(err, ErrMissingConfig) {
				t.Errorf("EnsureConnected() error = %v, want ErrMissingConfig", err)
			}
			if n := sim.Count(channel.MethodInitialize); n != 0 {
				t.Errorf("Initialize called %d times with missing config", n)
			}
		})
	}
}

func TestEnsureConnected_InvalidCamera(t *testing.T) {
	m, _ := newTestManager(t, channel.NewSimulator())
	if err := m.EnsureConnected(context.Background(), ""); !errors.Is(err, ErrInvalidCamera) {
		t.Errorf("EnsureConnected(\"\") error = %v", err)
	}
}

func TestDo_InitFailureKeepsUninitialized(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	fail := true
	sim.InitializeFunc = func(context.Context, channel.InitParams) error {
		if fail {
			return channel.ErrInitialize
		}
		return nil
	}
	m, s := newTestManager(t, sim)

	err := m.EnsureConnected(ctx, "cam1")
	if !errors.Is(err, ErrChannelInit) || !errors.Is(err, channel.ErrInitialize) {
		t.Fatalf("EnsureConnected() error = %v, want ErrChannelInit wrapping ErrInitialize", err)
	}
	if done, _ := store.FirstTimeDone(ctx, s, "cam1"); done {
		t.Error("FirstTimeDone() = true after failed init")
	}

	fail = false
	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got := sim.InitializeCount("cam1", true); got != 2 {
		t.Errorf("first-time initializations = %d, want 2 (retry is first-time again)", got)
	}
}

func TestDo_ActionFailureDoesNotCompleteFirstTime(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	boom := errors.New("pairing rejected")
	err := m.Do(ctx, "cam1", func(context.Context) error { return boom })
	if !errors.Is(err, ErrAction) || !errors.Is(err, boom) {
		t.Fatalf("Do() error = %v, want ErrAction wrapping cause", err)
	}
	if done, _ := store.FirstTimeDone(ctx, s, "cam1"); done {
		t.Error("FirstTimeDone() = true although the bundled action failed")
	}

	ran := false
	if err := m.Do(ctx, "cam1", func(context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !ran {
		t.Error("action not run")
	}
	if got := sim.InitializeCount("cam1", true); got != 2 {
		t.Errorf("first-time initializations = %d, want 2", got)
	}
	if done, _ := store.FirstTimeDone(ctx, s, "cam1"); !done {
		t.Error("FirstTimeDone() = false after connect and action succeeded")
	}
}

func TestDo_ActionSkippedOnConnectFailure(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	sim.InitializeFunc = func(context.Context, channel.InitParams) error { return channel.ErrInitialize }
	m, _ := newTestManager(t, sim)

	ran := false
	m.Do(ctx, "cam1", func(context.Context) error { ran = true; return nil })
	if ran {
		t.Error("action ran although connect failed")
	}
}

func TestEnsureConnected_ConcurrentFirstTime(t *testing.T) {
	defer test.CheckRoutines(t)()
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	ctx := context.Background()
	sim := channel.NewSimulator()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	sim.InitializeFunc = func(_ context.Context, p channel.InitParams) error {
		entered <- struct{}{}
		<-release
		return nil
	}
	m, _ := newTestManager(t, sim)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.EnsureConnected(ctx, "cam1")
		}(i)
	}

	// Exactly one caller can be inside Initialize at a time.
	<-entered
	select {
	case <-entered:
		t.Fatal("second Initialize started before the first completed")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("EnsureConnected[%d] error = %v", i, err)
		}
	}
	if got := sim.InitializeCount("cam1", true); got != 1 {
		t.Errorf("first-time initializations = %d, want 1", got)
	}
	if got := sim.InitializeCount("cam1", false); got != 1 {
		t.Errorf("established initializations = %d, want 1", got)
	}
}

func TestDo_DifferentCamerasRunInParallel(t *testing.T) {
	defer test.CheckRoutines(t)()

	ctx := context.Background()
	sim := channel.NewSimulator()
	bDone := make(chan struct{})
	sim.InitializeFunc = func(_ context.Context, p channel.InitParams) error {
		switch p.CameraName {
		case "a":
			select {
			case <-bDone:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("camera b was blocked behind camera a")
			}
		case "b":
			close(bDone)
		}
		return nil
	}
	m, _ := newTestManager(t, sim)

	errA := make(chan error, 1)
	go func() { errA <- m.EnsureConnected(ctx, "a") }()

	if err := m.EnsureConnected(ctx, "b"); err != nil {
		t.Fatalf("EnsureConnected(b) error = %v", err)
	}
	if err := <-errA; err != nil {
		t.Errorf("EnsureConnected(a) error = %v", err)
	}
}

func TestEnsureConnected_DirectoryFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	s := store.NewMemoryStore()
	seedConfig(t, s)

	m, err := NewManager(ManagerConfig{
		Store:   s,
		Channel: sim,
		MkdirAll: func(string, os.FileMode) error {
			return os.ErrPermission
		},
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Errorf("EnsureConnected() error = %v, want nil despite mkdir failure", err)
	}
	if sim.Count(channel.MethodInitialize) != 1 {
		t.Error("Initialize not attempted after mkdir failure")
	}
}

func TestAddCamera_RecordsPairing(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	if err := m.AddCamera(ctx, "porch", "192.168.1.40", []byte("secret")); err != nil {
		t.Fatalf("AddCamera() error = %v", err)
	}
	paired, _ := store.PairedCameras(ctx, s)
	if len(paired) != 1 || paired[0] != "porch" {
		t.Errorf("PairedCameras() = %v", paired)
	}
	if done, _ := store.FirstTimeDone(ctx, s, "porch"); !done {
		t.Error("FirstTimeDone() = false after pairing")
	}
}

func TestAddCamera_FailureLeavesCameraUnpaired(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	sim.AddCameraFunc = func(context.Context, string, string, []byte) error { return channel.ErrOperation }
	m, s := newTestManager(t, sim)

	if err := m.AddCamera(ctx, "porch", "192.168.1.40", nil); !errors.Is(err, channel.ErrOperation) {
		t.Errorf("AddCamera() error = %v", err)
	}
	paired, _ := store.PairedCameras(ctx, s)
	if len(paired) != 0 {
		t.Errorf("PairedCameras() = %v, want none", paired)
	}
	if done, _ := store.FirstTimeDone(ctx, s, "porch"); done {
		t.Error("FirstTimeDone() = true after failed pairing")
	}
}

func TestDeregister_ResetsState(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	m.AddCamera(ctx, "cam1", "10.0.0.9", nil)
	m.AddCamera(ctx, "cam2", "10.0.0.10", nil)

	if err := m.Deregister(ctx, "cam1"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}

	state, _ := m.State(ctx, "cam1")
	if state != StateUninitialized {
		t.Errorf("State(cam1) = %v, want Uninitialized", state)
	}
	state, _ = m.State(ctx, "cam2")
	if state != StateEstablished {
		t.Errorf("State(cam2) = %v, want Established", state)
	}
	paired, _ := store.PairedCameras(ctx, s)
	if len(paired) != 1 || paired[0] != "cam2" {
		t.Errorf("PairedCameras() = %v, want [cam2]", paired)
	}
	if sim.Established("cam1") {
		t.Error("channel session for cam1 still established")
	}

	m.EnsureConnected(ctx, "cam1")
	if got := sim.InitializeCount("cam1", true); got != 2 {
		t.Errorf("first-time initializations after deregister = %d, want 2", got)
	}
}

func TestDeregister_ConnectFailure(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)
	m.AddCamera(ctx, "cam1", "10.0.0.9", nil)

	s.Delete(ctx, store.KeyServerAddress)
	if err := m.Deregister(ctx, "cam1"); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("Deregister() error = %v", err)
	}
	if sim.Count(channel.MethodDeregister) != 0 {
		t.Error("channel Deregister called without a connection")
	}
	if done, _ := store.FirstTimeDone(ctx, s, "cam1"); !done {
		t.Error("failed deregister reset the first-time flag")
	}
}

func TestPendingToken_RetriedOnEstablishedConnect(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	store.SetFirstTimeDone(ctx, s, "cam1", true)
	store.SetPendingToken(ctx, s, "fresh-token")

	m.EnsureConnected(ctx, "cam1")
	calls := 0
	for _, c := range sim.Calls() {
		if c.Method == channel.MethodUpdateToken {
			calls++
			if c.Token != "fresh-token" || c.Camera != "cam1" {
				t.Errorf("UpdateToken call = %+v", c)
			}
		}
	}
	if calls != 1 {
		t.Errorf("UpdateToken calls = %d, want 1", calls)
	}
	pending, _ := store.PendingToken(ctx, s)
	if pending.NeedsUpdate {
		t.Error("pending flag not cleared after confirmed update")
	}

	m.EnsureConnected(ctx, "cam1")
	if n := sim.Count(channel.MethodUpdateToken); n != 1 {
		t.Errorf("UpdateToken calls after clearing = %d, want 1", n)
	}
}

func TestPendingToken_ClearedByFirstTimeConnect(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	store.SetPendingToken(ctx, s, "fresh-token")

	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	calls := sim.Calls()
	if calls[0].Method != channel.MethodInitialize || !calls[0].FirstTime {
		t.Fatalf("first call = %+v, want first-time initialize", calls[0])
	}
	if n := sim.Count(channel.MethodUpdateToken); n != 0 {
		t.Errorf("UpdateToken calls after first-time connect = %d, want 0", n)
	}
	pending, _ := store.PendingToken(ctx, s)
	if pending.NeedsUpdate || pending.Token != "fresh-token" {
		t.Errorf("PendingToken() = %+v, want {fresh-token false}", pending)
	}

	// Nothing is left to push on the next established connect.
	m.EnsureConnected(ctx, "cam1")
	if n := sim.Count(channel.MethodUpdateToken); n != 0 {
		t.Errorf("UpdateToken calls after established connect = %d, want 0", n)
	}
}

func TestPendingToken_FirstTimeFailureKeepsFlag(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	store.SetPendingToken(ctx, s, "fresh-token")

	err := m.Do(ctx, "cam1", func(context.Context) error { return errors.New("boom") })
	if !errors.Is(err, ErrAction) {
		t.Fatalf("Do() error = %v, want ErrAction", err)
	}
	pending, _ := store.PendingToken(ctx, s)
	if !pending.NeedsUpdate {
		t.Error("pending flag cleared although first-time setup did not complete")
	}
}

func TestPendingToken_NewerTokenSurvivesFirstTimeConnect(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, s := newTestManager(t, sim)

	store.SetPendingToken(ctx, s, "token-1")
	sim.InitializeFunc = func(ctx context.Context, p channel.InitParams) error {
		if p.RelayToken != "token-1" {
			t.Errorf("RelayToken = %q, want token-1", p.RelayToken)
		}
		// A rotation lands while the channel initializes.
		return store.SetPendingToken(ctx, s, "token-2")
	}

	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	pending, _ := store.PendingToken(ctx, s)
	if !pending.NeedsUpdate || pending.Token != "token-2" {
		t.Errorf("PendingToken() = %+v, want {token-2 true}", pending)
	}
}

func TestPendingToken_FailedRetryKeepsFlag(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	sim.UpdateTokenFunc = func(context.Context, string, string) error { return channel.ErrOperation }
	m, s := newTestManager(t, sim)

	store.SetFirstTimeDone(ctx, s, "cam1", true)
	store.SetPendingToken(ctx, s, "tok")

	if err := m.EnsureConnected(ctx, "cam1"); err != nil {
		t.Errorf("EnsureConnected() error = %v, token retry failure must not fail the connect", err)
	}
	pending, _ := store.PendingToken(ctx, s)
	if !pending.NeedsUpdate || pending.Token != "tok" {
		t.Errorf("PendingToken() = %+v, want {tok true}", pending)
	}
}

func TestOperations_PassThrough(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	sim.ReceiveFunc = func(_ context.Context, camera string) (string, error) {
		return "video_" + camera + "_1.mp4", nil
	}
	m, _ := newTestManager(t, sim)

	got, err := m.Decode(ctx, "cam1", []byte("cam1_1700000000"))
	if err != nil || got.Kind != channel.DecodedEvent || got.Event != "cam1_1700000000" {
		t.Errorf("Decode() = %+v, %v", got, err)
	}

	if _, err := m.Decode(ctx, "cam1", []byte("Error")); !errors.Is(err, channel.ErrDecode) {
		t.Errorf("Decode(Error) error = %v", err)
	}

	name, err := m.Receive(ctx, "cam1")
	if err != nil || name != "video_cam1_1.mp4" {
		t.Errorf("Receive() = %q, %v", name, err)
	}

	if err := m.UpdateToken(ctx, "cam1", "t2"); err != nil {
		t.Errorf("UpdateToken() error = %v", err)
	}
}

func TestLivestream(t *testing.T) {
	ctx := context.Background()
	sim := channel.NewSimulator()
	m, _ := newTestManager(t, sim)

	if err := m.LivestreamStart(ctx, "cam1"); err != nil {
		t.Fatalf("LivestreamStart() error = %v", err)
	}
	inits := sim.Count(channel.MethodInitialize)

	data, err := m.LivestreamRead(ctx, "cam1", 32)
	if err != nil || len(data) != 32 {
		t.Errorf("LivestreamRead() = %d bytes, %v", len(data), err)
	}
	if err := m.LivestreamEndNoConnect(ctx, "cam1"); err != nil {
		t.Errorf("LivestreamEndNoConnect() error = %v", err)
	}
	if err := m.LivestreamStartNoConnect(ctx, "cam1"); err != nil {
		t.Errorf("LivestreamStartNoConnect() error = %v", err)
	}
	if got := sim.Count(channel.MethodInitialize); got != inits {
		t.Errorf("no-connect variants initialized the channel (%d -> %d)", inits, got)
	}
	if err := m.LivestreamEnd(ctx, "cam1"); err != nil {
		t.Errorf("LivestreamEnd() error = %v", err)
	}
	if _, err := m.LivestreamRead(ctx, "", 1); !errors.Is(err, ErrInvalidCamera) {
		t.Errorf("LivestreamRead(\"\") error = %v", err)
	}
}

func TestChannelState_String(t *testing.T) {
	tests := []struct {
		s    ChannelState
		want string
	}{
		{StateUninitialized, "Uninitialized"},
		{StateEstablished, "Established"},
		{ChannelState(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("ChannelState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
