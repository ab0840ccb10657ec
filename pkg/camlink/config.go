package camlink

import (
	"time"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/discovery"
	"github.com/backkem/camlink/pkg/dispatch"
	"github.com/backkem/camlink/pkg/notify"
	"github.com/backkem/camlink/pkg/push"
	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/video"
	"github.com/backkem/camlink/pkg/wakelock"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds all configuration for an App.
type Config struct {
	// Store holds install configuration and per-camera state. Required.
	Store store.Store

	// Channel is the secure channel implementation. Required.
	Channel channel.SecureChannel

	// FilesDir is the parent of per-camera storage directories.
	FilesDir string

	// Videos records motion clips. Default: in-memory repository.
	Videos video.Repository

	// Notifier surfaces motion alerts. Default: a LogNotifier.
	Notifier notify.Notifier

	// Permission gates Notifier. Default: notify.AlwaysAllow.
	Permission notify.Permission

	// WakeLock is held by push and token handlers. Default: wakelock.Nop.
	WakeLock wakelock.Locker

	// MaxConcurrentTasks bounds background tasks.
	// Default: dispatch.DefaultMaxConcurrent.
	MaxConcurrentTasks int64

	// NetworkConstraint delays background downloads until the network is
	// available. Optional.
	NetworkConstraint dispatch.Constraint

	// Discovery configures camera discovery. The resolver is created on
	// first use.
	Discovery discovery.ResolverConfig

	// Registerer receives the metrics collectors. Optional.
	Registerer prometheus.Registerer

	// Location renders motion times in alerts. Default: time.Local.
	Location *time.Location

	// Callbacks - Optional
	OnPushHandled func(res push.Result)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.Channel == nil {
		return ErrChannelRequired
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Videos == nil {
		c.Videos = video.NewMemoryRepository()
	}
	if c.Notifier == nil {
		c.Notifier = notify.NewLogNotifier(c.LoggerFactory)
	}
	if c.Permission == nil {
		c.Permission = notify.AlwaysAllow
	}
	if c.WakeLock == nil {
		c.WakeLock = wakelock.Nop{}
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Discovery.LoggerFactory == nil {
		c.Discovery.LoggerFactory = c.LoggerFactory
	}
}
