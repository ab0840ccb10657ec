// Package download implements the deferred task that fetches new footage
// from every paired camera.
package download

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/video"
	"github.com/pion/logging"
)

// ErrMissingDependency is returned by NewTask for a nil collaborator.
var ErrMissingDependency = errors.New("download: missing dependency")

// Receiver fetches footage through a camera's connected secure channel.
// *session.Manager implements it.
type Receiver interface {
	Receive(ctx context.Context, camera string) (string, error)
}

// TaskConfig configures a Task.
type TaskConfig struct {
	// Sessions fetches footage. Required.
	Sessions Receiver

	// Store holds the paired camera list. Required.
	Store store.Store

	// Videos records received clips. Required.
	Videos video.Repository

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Task downloads pending footage.
type Task struct {
	sessions Receiver
	store    store.Store
	videos   video.Repository
	log      logging.LeveledLogger
}

// NewTask creates a download task.
func NewTask(config TaskConfig) (*Task, error) {
	if config.Sessions == nil || config.Store == nil || config.Videos == nil {
		return nil, ErrMissingDependency
	}
	t := &Task{
		sessions: config.Sessions,
		store:    config.Store,
		videos:   config.Videos,
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("download")
	}
	return t, nil
}

// Run receives from each paired camera and marks the returned clips as
// received. A failing camera does not stop the others; the joined error
// of all failures is returned.
func (t *Task) Run(ctx context.Context) error {
	cameras, err := store.PairedCameras(ctx, t.store)
	if err != nil {
		return err
	}

	var errs []error
	for _, camera := range cameras {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := t.receive(ctx, camera)
		if err != nil {
			errs = append(errs, fmt.Errorf("camera %s: %w", camera, err))
			continue
		}
		if t.log != nil && n > 0 {
			t.log.Infof("camera %s: received %d video(s)", camera, n)
		}
	}
	return errors.Join(errs...)
}

func (t *Task) receive(ctx context.Context, camera string) (int, error) {
	out, err := t.sessions.Receive(ctx, camera)
	if err != nil {
		return 0, err
	}

	names := strings.Fields(out)
	for _, name := range names {
		if err := t.videos.MarkReceived(ctx, camera, name); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}
