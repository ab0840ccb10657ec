// Package push classifies inbound push payloads and dispatches the
// follow-up work: a deduplicated download task for footage signals, or a
// user notification plus a pending-video record for motion events.
package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/dispatch"
	"github.com/backkem/camlink/pkg/metrics"
	"github.com/backkem/camlink/pkg/notify"
	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/video"
	"github.com/backkem/camlink/pkg/wakelock"
	"github.com/pion/logging"
)

const (
	// DownloadTaskID is the unique id of the download task.
	DownloadTaskID = "DownloadTask"

	// WakeLockTag is held for the duration of each push.
	WakeLockTag = "camlink::push"
)

// Decoder decodes a payload through a camera's connected secure channel.
// *session.Manager implements it.
type Decoder interface {
	Decode(ctx context.Context, camera string, payload []byte) (channel.Decoded, error)
}

// Enqueuer schedules unique deferred work. *dispatch.Dispatcher implements it.
type Enqueuer interface {
	EnqueueUnique(taskID string, policy dispatch.Policy, work dispatch.Work) (bool, error)
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// Sessions decodes payloads. Required.
	Sessions Decoder

	// Store holds the paired camera list and notification preference. Required.
	Store store.Store

	// Dispatcher runs the download task. Required.
	Dispatcher Enqueuer

	// DownloadWork is the work enqueued for download triggers. Required.
	DownloadWork dispatch.Work

	// Videos records pending clips. Required.
	Videos video.Repository

	// Notifier surfaces motion alerts. If nil, alerts are not surfaced but
	// pending clips are still recorded.
	Notifier notify.Notifier

	// WakeLock is held while a push is handled. Default: wakelock.Nop.
	WakeLock wakelock.Locker

	// Location renders motion times. Default: time.Local.
	Location *time.Location

	// Metrics records classifications. Optional.
	Metrics *metrics.Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Pipeline handles inbound pushes.
type Pipeline struct {
	sessions     Decoder
	store        store.Store
	dispatcher   Enqueuer
	downloadWork dispatch.Work
	videos       video.Repository
	notifier     notify.Notifier
	wakeLock     wakelock.Locker
	location     *time.Location
	metrics      *metrics.Metrics
	log          logging.LeveledLogger
}

// NewPipeline creates a push pipeline.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	switch {
	case config.Sessions == nil:
		return nil, fmt.Errorf("%w: sessions", ErrMissingDependency)
	case config.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	case config.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	case config.DownloadWork == nil:
		return nil, fmt.Errorf("%w: download work", ErrMissingDependency)
	case config.Videos == nil:
		return nil, fmt.Errorf("%w: videos", ErrMissingDependency)
	}
	if config.WakeLock == nil {
		config.WakeLock = wakelock.Nop{}
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	p := &Pipeline{
		sessions:     config.Sessions,
		store:        config.Store,
		dispatcher:   config.Dispatcher,
		downloadWork: config.DownloadWork,
		videos:       config.Videos,
		notifier:     config.Notifier,
		wakeLock:     config.WakeLock,
		location:     config.Location,
		metrics:      config.Metrics,
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("push")
	}
	return p, nil
}

// HandlePush decodes payload with the paired cameras, in name order, until
// one of them classifies it as something other than a failure, then runs
// the follow-up for that classification.
func (p *Pipeline) HandlePush(ctx context.Context, payload []byte) Result {
	lock := p.wakeLock.Acquire(WakeLockTag)
	defer lock.Release()

	return p.handlePush(ctx, payload)
}

// handlePush is HandlePush without the wake lock. Caller holds it.
func (p *Pipeline) handlePush(ctx context.Context, payload []byte) Result {
	if len(payload) == 0 {
		return p.finish(failure(ErrEmptyPayload))
	}

	cameras, err := store.PairedCameras(ctx, p.store)
	if err != nil {
		return p.finish(failure(err))
	}
	if len(cameras) == 0 {
		return p.finish(failure(ErrNoCamera))
	}

	res := failure(ErrNoCamera)
	for _, camera := range cameras {
		res = p.classify(ctx, camera, payload)
		if res.Kind != KindFailure {
			break
		}
		if p.log != nil {
			p.log.Debugf("camera %s could not decode push: %v", camera, res.Err)
		}
	}
	return p.finish(p.dispatch(ctx, res))
}

// HandlePushFor is HandlePush for a payload known to come from camera.
func (p *Pipeline) HandlePushFor(ctx context.Context, camera string, payload []byte) Result {
	lock := p.wakeLock.Acquire(WakeLockTag)
	defer lock.Release()

	if len(payload) == 0 {
		return p.finish(failure(ErrEmptyPayload))
	}
	return p.finish(p.dispatch(ctx, p.classify(ctx, camera, payload)))
}

// HandleEnvelope decodes a relay data map and handles its payload.
func (p *Pipeline) HandleEnvelope(ctx context.Context, data map[string]string) Result {
	lock := p.wakeLock.Acquire(WakeLockTag)
	defer lock.Release()

	payload, err := DecodeEnvelope(data)
	if err != nil {
		return p.finish(failure(err))
	}
	return p.handlePush(ctx, payload)
}

func (p *Pipeline) classify(ctx context.Context, camera string, payload []byte) Result {
	decoded, err := p.sessions.Decode(ctx, camera, payload)
	if err != nil {
		return failure(err)
	}

	switch decoded.Kind {
	case channel.DecodedNoPayload:
		return Result{Kind: KindDownloadTrigger}
	case channel.DecodedEvent:
		ev, err := ParseEvent(decoded.Event)
		if err != nil {
			return failure(err)
		}
		return Result{Kind: KindNotification, Event: ev}
	default:
		return failure(fmt.Errorf("%w: unknown decode kind %d", channel.ErrDecode, decoded.Kind))
	}
}

func (p *Pipeline) dispatch(ctx context.Context, res Result) Result {
	switch res.Kind {
	case KindDownloadTrigger:
		created, err := p.dispatcher.EnqueueUnique(DownloadTaskID, dispatch.KeepExisting, p.downloadWork)
		if err != nil {
			res.Err = err
		} else if !created && p.log != nil {
			p.log.Debug("download already outstanding")
		}
	case KindNotification:
		res.Err = p.notify(ctx, res.Event)
	}
	return res
}

// notify surfaces the alert for ev and records its pending clip. The clip
// is recorded whether or not the alert was surfaced.
func (p *Pipeline) notify(ctx context.Context, ev Event) error {
	enabled, err := store.NotificationsEnabled(ctx, p.store)
	if err != nil {
		if p.log != nil {
			p.log.Warnf("read notification preference: %v", err)
		}
		enabled = true
	}
	if !enabled {
		p.metrics.ObserveNotify("disabled")
		return nil
	}

	if p.notifier != nil {
		alert := notify.NewAlert(
			ev.CameraName,
			ev.CameraName,
			"Motion at "+FormatMotionTime(ev.TimestampSeconds, p.location),
			time.Unix(ev.TimestampSeconds, 0),
		)
		err := p.notifier.Notify(ctx, alert)
		switch {
		case err == nil:
			p.metrics.ObserveNotify("sent")
		case errors.Is(err, notify.ErrPermissionDenied):
			p.metrics.ObserveNotify("denied")
		default:
			p.metrics.ObserveNotify("failed")
			if p.log != nil {
				p.log.Warnf("camera %s: notify: %v", ev.CameraName, err)
			}
		}
	}

	name := video.FileName(ev.CameraName, ev.TimestampSeconds)
	if err := p.videos.InsertPending(ctx, ev.CameraName, name); err != nil {
		if p.log != nil {
			p.log.Errorf("camera %s: record pending %s: %v", ev.CameraName, name, err)
		}
		return err
	}
	return nil
}

func (p *Pipeline) finish(res Result) Result {
	p.metrics.ObserveDecode(res.Kind.String())
	if res.Kind == KindFailure && p.log != nil {
		p.log.Infof("push failed: %v", res.Err)
	}
	return res
}
