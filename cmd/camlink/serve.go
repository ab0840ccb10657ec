package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/backkem/camlink/pkg/token"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var (
	serveMetricsAddr string
	serveCamera      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Handle pushes from stdin and serve /metrics",
	Long: `Retry a pending relay token, then handle one base64 push payload per
line of standard input and expose Prometheus metrics. Runs until standard
input ends or the process is interrupted; on end of input, queued downloads
finish first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return withApp(ctx, reg, func(app *camlink.App) error {
			return serve(ctx, app, serveConfig{
				MetricsAddr: serveMetricsAddr,
				Camera:      serveCamera,
				Gatherer:    reg,
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
			})
		})
	},
}

// serveConfig configures serve.
type serveConfig struct {
	// MetricsAddr is the /metrics listen address. Empty disables the
	// endpoint unless Listener is set.
	MetricsAddr string

	// Listener overrides MetricsAddr.
	Listener net.Listener

	// Camera addresses every push to one camera when set.
	Camera string

	Gatherer prometheus.Gatherer
	In       io.Reader
	Out      io.Writer
}

func serve(ctx context.Context, app *camlink.App, config serveConfig) error {
	var log logging.LeveledLogger
	if lf := app.LoggerFactory(); lf != nil {
		log = lf.NewLogger("serve")
	}

	if err := app.RetryPendingToken(ctx); err != nil && log != nil {
		if errors.Is(err, token.ErrPending) {
			log.Warnf("pending relay token still undelivered: %v", err)
		} else {
			log.Warnf("retry pending relay token: %v", err)
		}
	}

	ln := config.Listener
	if ln == nil && config.MetricsAddr != "" {
		var err error
		if ln, err = net.Listen("tcp", config.MetricsAddr); err != nil {
			return fmt.Errorf("listen %s: %w", config.MetricsAddr, err)
		}
	}

	// runCtx also ends when the input is exhausted, which stops the
	// metrics endpoint.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if ln != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if log != nil {
			log.Infof("serving metrics on %s", ln.Addr())
		}

		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return readPushes(gctx, app, config.In, config.Out, config.Camera)
	})

	err := g.Wait()
	if ctx.Err() == nil {
		// Input ended without a signal; let queued downloads finish.
		app.Dispatcher().Wait()
	}
	return err
}

func init() {
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", ":9464", "address serving /metrics; empty disables it")
	serveCmd.Flags().StringVar(&serveCamera, "camera", "", "decode with this camera instead of trying each paired camera")
	rootCmd.AddCommand(serveCmd)
}
