package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/notify"
	"github.com/backkem/camlink/pkg/store"
	"github.com/backkem/camlink/pkg/video"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Setting keys. Each is also a persistent flag and, upper-cased with the
// CAMLINK_ prefix, an environment variable.
const (
	keySimulate      = "simulate"
	keyHelper        = "helper"
	keyHelperArgs    = "helper-args"
	keyStore         = "store"
	keyStorePath     = "store-path"
	keyStoreSecret   = "store-secret"
	keyRedisURL      = "redis-url"
	keyRedisPrefix   = "redis-prefix"
	keyFilesDir      = "files-dir"
	keyPostgresDSN   = "postgres-dsn"
	keyWebhookURL    = "webhook-url"
	keyMaxConcurrent = "max-concurrent"
	keyLogLevel      = "log-level"
)

// Store backends.
const (
	storeMemory = "memory"
	storeFile   = "file"
	storeRedis  = "redis"
)

// options are the resolved settings for one invocation.
type options struct {
	Simulate      bool
	Helper        string
	HelperArgs    []string
	Store         string
	StorePath     string
	StoreSecret   string
	RedisURL      string
	RedisPrefix   string
	FilesDir      string
	PostgresDSN   string
	WebhookURL    string
	MaxConcurrent int64
	LogLevel      logging.LogLevel
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

func loadOptions(v *viper.Viper) (options, error) {
	o := options{
		Simulate:      v.GetBool(keySimulate),
		Helper:        v.GetString(keyHelper),
		HelperArgs:    v.GetStringSlice(keyHelperArgs),
		Store:         strings.ToLower(v.GetString(keyStore)),
		StorePath:     v.GetString(keyStorePath),
		StoreSecret:   v.GetString(keyStoreSecret),
		RedisURL:      v.GetString(keyRedisURL),
		RedisPrefix:   v.GetString(keyRedisPrefix),
		FilesDir:      v.GetString(keyFilesDir),
		PostgresDSN:   v.GetString(keyPostgresDSN),
		WebhookURL:    v.GetString(keyWebhookURL),
		MaxConcurrent: v.GetInt64(keyMaxConcurrent),
	}
	if o.Store == "" {
		o.Store = storeMemory
	}

	name := strings.ToLower(v.GetString(keyLogLevel))
	if name == "" {
		name = "info"
	}
	level, ok := logLevels[name]
	if !ok {
		return options{}, fmt.Errorf("unknown log level %q", name)
	}
	o.LogLevel = level

	switch o.Store {
	case storeMemory, storeRedis:
	case storeFile:
		if o.StoreSecret == "" {
			return options{}, fmt.Errorf("--%s is required for the file store", keyStoreSecret)
		}
	default:
		return options{}, fmt.Errorf("unknown store %q", o.Store)
	}

	if !o.Simulate && o.Helper == "" {
		return options{}, fmt.Errorf("either --%s or --%s is required", keyHelper, keySimulate)
	}
	return o, nil
}

// newLoggerFactory returns a pion logger factory writing to stderr so
// command output on stdout stays parseable.
func newLoggerFactory(level logging.LogLevel) logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = os.Stderr
	f.DefaultLogLevel = level
	return f
}

// openApp builds an App from o. The returned cleanup releases resources
// the App does not own and must run after App.Close.
func openApp(ctx context.Context, o options, reg prometheus.Registerer) (*camlink.App, func(), error) {
	lf := newLoggerFactory(o.LogLevel)

	// closers release everything on a failed open; owned lists what the
	// App closes itself once it exists.
	var closers, owned []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*camlink.App, func(), error) {
		for i := len(owned) - 1; i >= 0; i-- {
			owned[i]()
		}
		cleanup()
		return nil, nil, err
	}

	var config camlink.Config
	if o.Simulate {
		config, _ = camlink.SimulatedConfig()
		if o.Store != storeMemory {
			config.Store = nil
		}
	} else {
		bridge, err := channel.NewProcessBridge(ctx, channel.ProcessConfig{
			Path:          o.Helper,
			Args:          o.HelperArgs,
			LoggerFactory: lf,
		})
		if err != nil {
			return nil, nil, err
		}
		config.Channel = bridge
		owned = append(owned, func() { bridge.Close() })
	}

	if config.Store == nil {
		s, closeStore, err := openStore(o, lf)
		if err != nil {
			return fail(err)
		}
		if closeStore != nil {
			closers = append(closers, closeStore)
		}
		config.Store = s
	}

	if o.PostgresDSN != "" {
		repo, err := video.OpenPostgres(ctx, video.PostgresConfig{
			DSN:           o.PostgresDSN,
			LoggerFactory: lf,
		})
		if err != nil {
			return fail(err)
		}
		config.Videos = repo
		owned = append(owned, repo.Close)
	}

	if o.WebhookURL != "" {
		n, err := notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:           o.WebhookURL,
			LoggerFactory: lf,
		})
		if err != nil {
			return fail(err)
		}
		config.Notifier = n
	}

	config.FilesDir = o.FilesDir
	config.MaxConcurrentTasks = o.MaxConcurrent
	config.Registerer = reg
	config.LoggerFactory = lf

	app, err := camlink.New(config)
	if err != nil {
		return fail(err)
	}
	return app, cleanup, nil
}

// openStore opens the configured store backend. The close func is nil when
// the backend holds no resources.
func openStore(o options, lf logging.LoggerFactory) (store.Store, func(), error) {
	switch o.Store {
	case storeFile:
		s, err := store.OpenFileStore(store.FileStoreConfig{
			Path:          o.StorePath,
			Secret:        []byte(o.StoreSecret),
			LoggerFactory: lf,
		})
		return s, nil, err
	case storeRedis:
		opt, err := redis.ParseURL(o.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		s, err := store.NewRedisStore(store.RedisStoreConfig{
			Client:        client,
			Prefix:        o.RedisPrefix,
			LoggerFactory: lf,
		})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, func() { client.Close() }, nil
	default:
		return store.NewMemoryStore(), nil, nil
	}
}

// withApp loads options from the global viper, opens the App, runs fn and
// closes everything afterwards.
func withApp(ctx context.Context, reg prometheus.Registerer, fn func(app *camlink.App) error) error {
	o, err := loadOptions(viper.GetViper())
	if err != nil {
		return err
	}
	app, cleanup, err := openApp(ctx, o, reg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer app.Close()

	return fn(app)
}
