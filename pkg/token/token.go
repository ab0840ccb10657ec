// Package token handles relay token rotation.
//
// A new token is pushed through the secure channel of every paired camera.
// If that is not possible yet, the token is persisted as pending and pushed
// on a later successful connect.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/wakelock"
	"github.com/pion/logging"
)

// WakeLockTag is held for the duration of each rotation.
const WakeLockTag = "camlink::token"

// Token errors.
var (
	// ErrPending is returned when the token could not be pushed and was
	// stored as pending instead.
	ErrPending = errors.New("token: update pending")

	// ErrNoCamera is the pending cause when no camera is paired.
	ErrNoCamera = errors.New("token: no paired camera")

	// ErrEmptyToken is returned for an empty token.
	ErrEmptyToken = errors.New("token: empty token")

	// ErrMissingDependency is returned by NewHandler for a nil collaborator.
	ErrMissingDependency = errors.New("token: missing dependency")
)

// Updater pushes a token through a camera's connected secure channel.
// *session.Manager implements it.
type Updater interface {
	UpdateToken(ctx context.Context, camera, token string) error
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Sessions pushes tokens. Required.
	Sessions Updater

	// Store holds the relay token, pending state and paired cameras. Required.
	Store store.Store

	// WakeLock is held during OnNewToken. Default: wakelock.Nop.
	WakeLock wakelock.Locker

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Handler handles relay token rotation. Calls are serialized.
type Handler struct {
	sessions Updater
	store    store.Store
	wakeLock wakelock.Locker
	log      logging.LeveledLogger

	mu sync.Mutex
}

// NewHandler creates a token handler.
func NewHandler(config HandlerConfig) (*Handler, error) {
	if config.Sessions == nil || config.Store == nil {
		return nil, ErrMissingDependency
	}
	if config.WakeLock == nil {
		config.WakeLock = wakelock.Nop{}
	}
	h := &Handler{
		sessions: config.Sessions,
		store:    config.Store,
		wakeLock: config.WakeLock,
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("token")
	}
	return h, nil
}

// OnNewToken pushes token to every paired camera. When all succeed the
// token becomes the current relay token with nothing pending. Otherwise it
// is stored as pending and the returned error wraps ErrPending.
func (h *Handler) OnNewToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	lock := h.wakeLock.Acquire(WakeLockTag)
	defer lock.Release()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.pushAll(ctx, token); err != nil {
		if serr := store.SetPendingToken(ctx, h.store, token); serr != nil {
			return fmt.Errorf("token: store pending: %w", serr)
		}
		if h.log != nil {
			h.log.Warnf("relay token stored as pending: %v", err)
		}
		return fmt.Errorf("%w: %w", ErrPending, err)
	}

	if err := store.CommitToken(ctx, h.store, token); err != nil {
		return fmt.Errorf("token: commit: %w", err)
	}
	if h.log != nil {
		h.log.Info("relay token updated")
	}
	return nil
}

// RetryPending pushes a pending token to every paired camera and clears
// the pending flag once all of them accepted it. It is a no-op when nothing
// is pending.
func (h *Handler) RetryPending(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending, err := store.PendingToken(ctx, h.store)
	if err != nil {
		return err
	}
	if !pending.NeedsUpdate {
		return nil
	}

	if err := h.pushAll(ctx, pending.Token); err != nil {
		return fmt.Errorf("%w: %w", ErrPending, err)
	}
	if _, err := store.ClearPendingToken(ctx, h.store, pending.Token); err != nil {
		return err
	}
	if h.log != nil {
		h.log.Info("pending relay token delivered")
	}
	return nil
}

func (h *Handler) pushAll(ctx context.Context, token string) error {
	cameras, err := store.PairedCameras(ctx, h.store)
	if err != nil {
		return err
	}
	if len(cameras) == 0 {
		return ErrNoCamera
	}

	var errs []error
	for _, camera := range cameras {
		if err := h.sessions.UpdateToken(ctx, camera, token); err != nil {
			errs = append(errs, fmt.Errorf("camera %s: %w", camera, err))
		}
	}
	return errors.Join(errs...)
}
