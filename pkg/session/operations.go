package session

import (
	"context"
	"fmt"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/store"
)

// AddCamera pairs a camera and records it as paired. Pairing is the
// operation that normally completes first-time initialization.
func (m *Manager) AddCamera(ctx context.Context, camera, cameraIP string, secret []byte) error {
	return m.Do(ctx, camera, func(ctx context.Context) error {
		if err := m.channel.AddCamera(ctx, camera, cameraIP, secret); err != nil {
			return err
		}
		return store.AddPairedCamera(ctx, m.store, camera)
	})
}

// UpdateToken pushes token through the channel of camera.
func (m *Manager) UpdateToken(ctx context.Context, camera, token string) error {
	return m.Do(ctx, camera, func(ctx context.Context) error {
		err := m.channel.UpdateToken(ctx, token, camera)
		m.metrics.ObserveTokenUpdate(err)
		return err
	})
}

// Decode connects camera's channel and decodes a push payload.
func (m *Manager) Decode(ctx context.Context, camera string, payload []byte) (channel.Decoded, error) {
	var out channel.Decoded
	err := m.Do(ctx, camera, func(ctx context.Context) error {
		var err error
		out, err = m.channel.Decode(ctx, camera, payload)
		return err
	})
	return out, err
}

// Receive connects camera's channel and fetches pending footage.
func (m *Manager) Receive(ctx context.Context, camera string) (string, error) {
	var out string
	err := m.Do(ctx, camera, func(ctx context.Context) error {
		var err error
		out, err = m.channel.Receive(ctx, camera)
		return err
	})
	return out, err
}

// Deregister connects camera's channel, deregisters it, and resets the
// camera to the uninitialized state.
func (m *Manager) Deregister(ctx context.Context, camera string) error {
	if camera == "" {
		return ErrInvalidCamera
	}

	unlock := m.locks.Lock(camera)
	defer unlock()

	if _, _, err := m.connect(ctx, camera); err != nil {
		return err
	}
	if err := m.channel.Deregister(ctx, camera); err != nil {
		return fmt.Errorf("%w: camera %q: %w", ErrAction, camera, err)
	}

	if err := store.SetFirstTimeDone(ctx, m.store, camera, false); err != nil {
		return fmt.Errorf("session: reset first-time flag for %q: %w", camera, err)
	}
	if err := store.RemovePairedCamera(ctx, m.store, camera); err != nil {
		return fmt.Errorf("session: unpair %q: %w", camera, err)
	}
	if m.log != nil {
		m.log.Infof("camera %s: deregistered", camera)
	}
	return nil
}

// LivestreamStart connects camera's channel and starts a livestream.
func (m *Manager) LivestreamStart(ctx context.Context, camera string) error {
	return m.Do(ctx, camera, func(ctx context.Context) error {
		return m.channel.LivestreamStart(ctx, camera)
	})
}

// LivestreamEnd connects camera's channel and ends the livestream.
func (m *Manager) LivestreamEnd(ctx context.Context, camera string) error {
	return m.Do(ctx, camera, func(ctx context.Context) error {
		return m.channel.LivestreamEnd(ctx, camera)
	})
}

// LivestreamStartNoConnect starts a livestream on an already connected
// channel. It is still serialized with other operations on camera.
func (m *Manager) LivestreamStartNoConnect(ctx context.Context, camera string) error {
	return m.locked(camera, func() error {
		return m.channel.LivestreamStart(ctx, camera)
	})
}

// LivestreamEndNoConnect ends a livestream without reconnecting.
func (m *Manager) LivestreamEndNoConnect(ctx context.Context, camera string) error {
	return m.locked(camera, func() error {
		return m.channel.LivestreamEnd(ctx, camera)
	})
}

// LivestreamRead reads up to n bytes of livestream data without reconnecting.
func (m *Manager) LivestreamRead(ctx context.Context, camera string, n int) ([]byte, error) {
	var out []byte
	err := m.locked(camera, func() error {
		var err error
		out, err = m.channel.LivestreamRead(ctx, camera, n)
		return err
	})
	return out, err
}

func (m *Manager) locked(camera string, fn func() error) error {
	if camera == "" {
		return ErrInvalidCamera
	}
	unlock := m.locks.Lock(camera)
	defer unlock()
	return fn()
}
