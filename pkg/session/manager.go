// Package session orchestrates per-camera secure channel sessions.
//
// Every operation addressed to a camera runs inside that camera's exclusive
// section: the Manager reads the first-time flag, initializes the channel
// (first-time or established), performs the operation, and only then
// records first-time completion. Connecting and completing first-time setup
// are therefore never separately observable, and two triggers for the same
// camera can never both run first-time initialization.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/metrics"
	"github.com/backkem/camlink/pkg/store"
	"github.com/pion/logging"
)

// CameraDirPrefix prefixes each camera's storage directory name.
const CameraDirPrefix = "camera_dir_"

// Action is the operation performed once the camera's channel is connected.
type Action func(ctx context.Context) error

// ManagerConfig configures the session Manager.
type ManagerConfig struct {
	// Store holds install configuration and per-camera flags. Required.
	Store store.Store

	// Channel is the secure channel implementation. Required.
	Channel channel.SecureChannel

	// FilesDir is the parent of per-camera storage directories.
	// Default: the current directory.
	FilesDir string

	// Metrics records connect and token outcomes. Optional.
	Metrics *metrics.Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// MkdirAll creates storage directories. Default: os.MkdirAll.
	MkdirAll func(path string, perm os.FileMode) error
}

// Manager drives secure channel sessions for all cameras of one install.
type Manager struct {
	store    store.Store
	channel  channel.SecureChannel
	filesDir string
	metrics  *metrics.Metrics
	mkdirAll func(string, os.FileMode) error
	log      logging.LeveledLogger

	locks *LockTable
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Store == nil {
		return nil, ErrStoreRequired
	}
	if config.Channel == nil {
		return nil, ErrChannelRequired
	}
	if config.MkdirAll == nil {
		config.MkdirAll = os.MkdirAll
	}

	m := &Manager{
		store:    config.Store,
		channel:  config.Channel,
		filesDir: config.FilesDir,
		metrics:  config.Metrics,
		mkdirAll: config.MkdirAll,
		locks:    NewLockTable(),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("session")
	}
	return m, nil
}

// StorageDir returns the storage directory for camera.
func (m *Manager) StorageDir(camera string) string {
	return filepath.Join(m.filesDir, CameraDirPrefix+camera)
}

// EnsureConnected connects the channel for camera, running first-time
// initialization if it has never completed.
//
// It is the same as Do with an action that always succeeds, so a
// successful first-time connect is recorded immediately. Callers that have
// a follow-up operation must use Do so the flag depends on that operation.
func (m *Manager) EnsureConnected(ctx context.Context, camera string) error {
	return m.Do(ctx, camera, nil)
}

// Do connects the channel for camera and runs action inside the camera's
// exclusive section. First-time completion is recorded only if both the
// connect and action succeed. A nil action always succeeds.
//
// When an established channel connects, a relay token left pending by an
// earlier failed rotation is pushed through it before action runs. A
// first-time connect already initializes with the latest relay token, so
// its completion also clears a pending flag for that token.
func (m *Manager) Do(ctx context.Context, camera string, action Action) error {
	if camera == "" {
		return ErrInvalidCamera
	}

	unlock := m.locks.Lock(camera)
	defer unlock()

	done, relayToken, err := m.connect(ctx, camera)
	if err != nil {
		return err
	}
	if done {
		m.retryPendingToken(ctx, camera)
	}

	if action != nil {
		if err := action(ctx); err != nil {
			return fmt.Errorf("%w: camera %q: %w", ErrAction, camera, err)
		}
	}

	if !done {
		if err := store.SetFirstTimeDone(ctx, m.store, camera, true); err != nil {
			return fmt.Errorf("session: record first-time completion for %q: %w", camera, err)
		}
		if m.log != nil {
			m.log.Infof("camera %s: first-time initialization complete", camera)
		}
		m.clearDeliveredToken(ctx, camera, relayToken)
	}
	return nil
}

// connect reads the first-time flag and initializes the channel. It returns
// the flag value observed and the relay token the channel was initialized
// with. Caller holds the camera lock.
func (m *Manager) connect(ctx context.Context, camera string) (firstTimeDone bool, relayToken string, err error) {
	done, err := store.FirstTimeDone(ctx, m.store, camera)
	if err != nil {
		return false, "", fmt.Errorf("session: read first-time flag for %q: %w", camera, err)
	}

	params, err := m.initParams(ctx, camera)
	if err != nil {
		return done, "", err
	}
	params.FirstTime = !done

	// The channel may still succeed without a writable directory, so a
	// failure here is only logged.
	if err := m.mkdirAll(params.StorageDir, 0o700); err != nil && m.log != nil {
		m.log.Warnf("camera %s: create storage dir %s: %v", camera, params.StorageDir, err)
	}

	err = m.channel.Initialize(ctx, params)
	m.metrics.ObserveConnect(params.FirstTime, err)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("camera %s: initialize (firstTime=%t) failed: %v", camera, params.FirstTime, err)
		}
		return done, "", fmt.Errorf("%w: camera %q: %w", ErrChannelInit, camera, err)
	}
	return done, params.RelayToken, nil
}

// initParams reads the install configuration needed to initialize a channel.
func (m *Manager) initParams(ctx context.Context, camera string) (channel.InitParams, error) {
	server, ok, err := store.GetString(ctx, m.store, store.KeyServerAddress)
	if err != nil {
		return channel.InitParams{}, err
	}
	if !ok {
		return channel.InitParams{}, m.missing(camera, "server address")
	}

	token, ok, err := store.GetString(ctx, m.store, store.KeyRelayToken)
	if err != nil {
		return channel.InitParams{}, err
	}
	if !ok {
		return channel.InitParams{}, m.missing(camera, "relay token")
	}

	creds, ok, err := store.UserCredentials(ctx, m.store)
	if err != nil {
		return channel.InitParams{}, err
	}
	if !ok {
		return channel.InitParams{}, m.missing(camera, "user credentials")
	}

	return channel.InitParams{
		ServerAddress:   server,
		RelayToken:      token,
		StorageDir:      m.StorageDir(camera),
		CameraName:      camera,
		UserCredentials: creds,
	}, nil
}

func (m *Manager) missing(camera, what string) error {
	if m.log != nil {
		m.log.Errorf("camera %s: failed to retrieve the %s", camera, what)
	}
	return fmt.Errorf("%w: %s", ErrMissingConfig, what)
}

// retryPendingToken pushes a relay token that failed to reach the channel
// earlier. The flag is cleared only after the channel confirms the update.
// Caller holds the camera lock on an established, connected channel.
func (m *Manager) retryPendingToken(ctx context.Context, camera string) {
	pending, err := store.PendingToken(ctx, m.store)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("read pending token: %v", err)
		}
		return
	}
	if !pending.NeedsUpdate {
		return
	}

	err = m.channel.UpdateToken(ctx, pending.Token, camera)
	m.metrics.ObserveTokenUpdate(err)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("camera %s: retry pending token: %v", camera, err)
		}
		return
	}

	cleared, err := store.ClearPendingToken(ctx, m.store, pending.Token)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("clear pending token: %v", err)
		}
		return
	}
	if cleared && m.log != nil {
		m.log.Infof("camera %s: pending relay token delivered", camera)
	}
}

// clearDeliveredToken clears the pending flag when token, already carried
// by a completed first-time initialization, is the one still pending.
// Caller holds the camera lock.
func (m *Manager) clearDeliveredToken(ctx context.Context, camera, token string) {
	cleared, err := store.ClearPendingToken(ctx, m.store, token)
	if err != nil {
		if m.log != nil {
			m.log.Warnf("clear pending token: %v", err)
		}
		return
	}
	if cleared && m.log != nil {
		m.log.Infof("camera %s: pending relay token delivered by first-time initialization", camera)
	}
}

// State reports the channel state recorded for camera.
func (m *Manager) State(ctx context.Context, camera string) (ChannelState, error) {
	done, err := store.FirstTimeDone(ctx, m.store, camera)
	if err != nil {
		return StateUninitialized, err
	}
	if done {
		return StateEstablished, nil
	}
	return StateUninitialized, nil
}
