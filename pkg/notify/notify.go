// Package notify delivers motion alerts to the user.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notify errors.
var (
	// ErrPermissionDenied is returned when the user has not granted
	// permission to post notifications. The inner notifier is not called.
	ErrPermissionDenied = errors.New("notify: permission denied")

	// ErrDeliveryFailed is returned when a notifier could not deliver.
	ErrDeliveryFailed = errors.New("notify: delivery failed")

	// ErrURLRequired is returned when a webhook notifier has no URL.
	ErrURLRequired = errors.New("notify: webhook url required")
)

// Alert is one user-facing notification.
type Alert struct {
	ID         uuid.UUID `json:"id"`
	CameraName string    `json:"camera_name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	MotionAt   time.Time `json:"motion_at"`
}

// NewAlert creates an alert with a fresh id.
func NewAlert(camera, title, body string, motionAt time.Time) Alert {
	return Alert{
		ID:         uuid.New(),
		CameraName: camera,
		Title:      title,
		Body:       body,
		MotionAt:   motionAt,
	}
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Permission reports whether notifications may be posted.
type Permission func(ctx context.Context) bool

// AlwaysAllow is a Permission that always grants.
func AlwaysAllow(context.Context) bool { return true }

// Gated posts through Inner only while Permission grants.
type Gated struct {
	Inner      Notifier
	Permission Permission
}

// Notify implements Notifier.
func (g *Gated) Notify(ctx context.Context, alert Alert) error {
	if g.Permission != nil && !g.Permission(ctx) {
		return ErrPermissionDenied
	}
	return g.Inner.Notify(ctx, alert)
}

// Verify implementations.
var (
	_ Notifier = NotifierFunc(nil)
	_ Notifier = (*Gated)(nil)
)
