package camlink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/camlink/pkg/discovery"
	"github.com/backkem/camlink/pkg/dispatch"
	"github.com/backkem/camlink/pkg/download"
	"github.com/backkem/camlink/pkg/metrics"
	"github.com/backkem/camlink/pkg/notify"
	"github.com/backkem/camlink/pkg/push"
	"github.com/backkem/camlink/pkg/session"
	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/token"
	"github.com/backkem/camlink/pkg/video"
	"github.com/pion/logging"
)

// App is a running camera push client for one install.
type App struct {
	config Config
	log    logging.LeveledLogger

	store      store.Store
	metrics    *metrics.Metrics
	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher
	pipeline   *push.Pipeline
	tokens     *token.Handler
	downloads  *download.Task

	resolverOnce sync.Once
	resolver     *discovery.Resolver
	resolverErr  error

	mu     sync.RWMutex
	closed bool
}

// New creates an App with the given configuration.
func New(config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	a := &App{
		config: config,
		store:  config.Store,
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("camlink")
	}

	var err error
	if a.metrics, err = metrics.New(config.Registerer); err != nil {
		return nil, fmt.Errorf("camlink: metrics: %w", err)
	}

	a.sessions, err = session.NewManager(session.ManagerConfig{
		Store:         config.Store,
		Channel:       config.Channel,
		FilesDir:      config.FilesDir,
		Metrics:       a.metrics,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	a.downloads, err = download.NewTask(download.TaskConfig{
		Sessions:      a.sessions,
		Store:         config.Store,
		Videos:        config.Videos,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	a.dispatcher = dispatch.New(dispatch.Config{
		MaxConcurrent: config.MaxConcurrentTasks,
		Constraint:    config.NetworkConstraint,
		Metrics:       a.metrics,
		LoggerFactory: config.LoggerFactory,
	})

	a.pipeline, err = push.NewPipeline(push.PipelineConfig{
		Sessions:     a.sessions,
		Store:        config.Store,
		Dispatcher:   a.dispatcher,
		DownloadWork: a.downloads.Run,
		Videos:       config.Videos,
		Notifier: &notify.Gated{
			Inner:      config.Notifier,
			Permission: config.Permission,
		},
		WakeLock:      config.WakeLock,
		Location:      config.Location,
		Metrics:       a.metrics,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		a.dispatcher.Close()
		return nil, err
	}

	a.tokens, err = token.NewHandler(token.HandlerConfig{
		Sessions:      a.sessions,
		Store:         config.Store,
		WakeLock:      config.WakeLock,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		a.dispatcher.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) checkOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

// Configure stores the install configuration needed to initialize secure
// channels: the server address and the user credentials blob.
func (a *App) Configure(ctx context.Context, serverAddress string, credentials []byte) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if serverAddress == "" || len(credentials) == 0 {
		return ErrInvalidConfig
	}
	if err := a.store.Set(ctx, store.KeyServerAddress, serverAddress); err != nil {
		return err
	}
	return store.SetUserCredentials(ctx, a.store, credentials)
}

// SetNotificationsEnabled stores the user's notification preference.
func (a *App) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return store.SetBool(ctx, a.store, store.KeyNotificationsEnabled, enabled)
}

// HandlePush handles one inbound push payload.
func (a *App) HandlePush(ctx context.Context, payload []byte) push.Result {
	if err := a.checkOpen(); err != nil {
		return push.Result{Kind: push.KindFailure, Err: err}
	}
	return a.handled(a.pipeline.HandlePush(ctx, payload))
}

// HandlePushFor handles a push payload known to come from camera.
func (a *App) HandlePushFor(ctx context.Context, camera string, payload []byte) push.Result {
	if err := a.checkOpen(); err != nil {
		return push.Result{Kind: push.KindFailure, Err: err}
	}
	return a.handled(a.pipeline.HandlePushFor(ctx, camera, payload))
}

// HandleEnvelope handles a relay data map carrying a base64 body.
func (a *App) HandleEnvelope(ctx context.Context, data map[string]string) push.Result {
	if err := a.checkOpen(); err != nil {
		return push.Result{Kind: push.KindFailure, Err: err}
	}
	return a.handled(a.pipeline.HandleEnvelope(ctx, data))
}

func (a *App) handled(res push.Result) push.Result {
	if a.config.OnPushHandled != nil {
		a.config.OnPushHandled(res)
	}
	return res
}

// OnNewToken handles a relay token rotation. A returned error wrapping
// token.ErrPending means the token was stored for a later retry.
func (a *App) OnNewToken(ctx context.Context, tok string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.tokens.OnNewToken(ctx, tok)
}

// RetryPendingToken pushes a pending relay token to every paired camera.
func (a *App) RetryPendingToken(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.tokens.RetryPending(ctx)
}

// Pair adds a camera and records it as paired. Pairing completes the
// camera's first-time initialization.
func (a *App) Pair(ctx context.Context, camera, cameraIP string, secret []byte) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := a.sessions.AddCamera(ctx, camera, cameraIP, secret); err != nil {
		return err
	}
	if a.log != nil {
		a.log.Infof("camera %s paired at %s", camera, cameraIP)
	}
	return nil
}

// PairDiscovered pairs a camera found by Discover at its preferred address.
func (a *App) PairDiscovered(ctx context.Context, cam discovery.Camera, secret []byte) error {
	addr, err := cam.Address()
	if err != nil {
		return err
	}
	return a.Pair(ctx, cam.Name, addr, secret)
}

// Deregister removes a camera and resets it to the uninitialized state.
func (a *App) Deregister(ctx context.Context, camera string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.sessions.Deregister(ctx, camera)
}

// Discover browses the local network for cameras until the browse timeout.
func (a *App) Discover(ctx context.Context) ([]discovery.Camera, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	a.resolverOnce.Do(func() {
		a.resolver, a.resolverErr = discovery.NewResolver(a.config.Discovery)
	})
	if a.resolverErr != nil {
		return nil, fmt.Errorf("camlink: discovery: %w", a.resolverErr)
	}
	return a.resolver.Collect(ctx)
}

// Download runs the download task now, outside the dispatcher.
func (a *App) Download(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.downloads.Run(ctx)
}

// Cameras returns the paired camera names, sorted.
func (a *App) Cameras(ctx context.Context) ([]string, error) {
	return store.PairedCameras(ctx, a.store)
}

// Videos returns the clips recorded for camera.
func (a *App) Videos(ctx context.Context, camera string) ([]video.Video, error) {
	return a.config.Videos.ListByCamera(ctx, camera)
}

// State returns the install's current state.
func (a *App) State(ctx context.Context) (AppState, error) {
	if a.checkOpen() != nil {
		return AppStateClosed, nil
	}

	_, hasServer, err := store.GetString(ctx, a.store, store.KeyServerAddress)
	if err != nil {
		return AppStateUnconfigured, err
	}
	_, hasCreds, err := store.UserCredentials(ctx, a.store)
	if err != nil {
		return AppStateUnconfigured, err
	}
	if !hasServer || !hasCreds {
		return AppStateUnconfigured, nil
	}

	cameras, err := store.PairedCameras(ctx, a.store)
	if err != nil {
		return AppStateUnpaired, err
	}
	if len(cameras) == 0 {
		return AppStateUnpaired, nil
	}
	return AppStateReady, nil
}

// Sessions returns the session manager for camera-level operations such
// as livestreams.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Dispatcher returns the background task dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// LoggerFactory returns the logger factory used by the App.
func (a *App) LoggerFactory() logging.LoggerFactory {
	return a.config.LoggerFactory
}

// Close stops background work and releases the channel and video
// repository if they hold resources.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.dispatcher.Close()

	var err error
	if c, ok := a.config.Channel.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := a.config.Videos.(interface{ Close() }); ok {
		c.Close()
	}
	if a.log != nil {
		a.log.Info("closed")
	}
	return err
}

