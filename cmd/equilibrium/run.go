package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/equilibrium/internal/actuate"
	"github.com/sweeney/equilibrium/internal/config"
	"github.com/sweeney/equilibrium/internal/emit"
	"github.com/sweeney/equilibrium/internal/metrics"
	"github.com/sweeney/equilibrium/internal/mqtt"
	"github.com/sweeney/equilibrium/internal/runtime"
	"github.com/sweeney/equilibrium/internal/status"
	"github.com/sweeney/equilibrium/internal/web"
)

const shutdownTimeout = 5 * time.Second

// lifecycle is implemented by emitters that carry STARTUP and SHUTDOWN
// events (the MQTT publisher).
type lifecycle interface {
	PublishSystem(ctx context.Context, event mqtt.SystemEvent) error
	IsConnected() bool
}

// daemon holds what runDaemon needs beyond the config. Tests replace dial
// and now.
type daemon struct {
	log  logr.Logger
	mode config.Mode
	dial func(ctx context.Context, endpoint string, cfg emit.DialConfig) (emit.Closer, error)
	now  func() time.Time
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		httpAddr string
		endpoint string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate controllers on a fixed interval until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, sync, err := g.setup()
			if err != nil {
				return err
			}
			defer sync()

			if cmd.Flags().Changed("http") {
				cfg.HTTP = httpAddr
			}
			if cmd.Flags().Changed("endpoint") {
				cfg.Endpoint = endpoint
			}
			mode := config.ModeLive
			if dryRun {
				mode = config.ModeDryRun
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			d := daemon{log: log, mode: mode, dial: emit.Dial, now: time.Now}
			return d.run(cmd.Context(), cfg, sigCh)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP status listen address, empty to disable (overrides config)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Message endpoint URL: http(s)://, mqtt://, tcp://, redis:// (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read real inputs but only log output writes")
	return cmd
}

// run wires the runtime to its devices, emitters and status server and
// blocks until a signal arrives or ctx ends.
func (d daemon) run(ctx context.Context, cfg *config.Config, sig <-chan os.Signal) error {
	log := d.log
	built, err := config.Build(cfg, d.mode, log.WithName("devices"))
	if err != nil {
		return fmt.Errorf("build controllers: %w", err)
	}
	defer built.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tracker := status.NewTracker(d.now(), status.Config{
		PollMs:      cfg.PollInterval.Milliseconds(),
		KeepAliveMs: cfg.KeepAlive.Milliseconds(),
		Endpoint:    emit.Redact(cfg.Endpoint),
		HTTPPort:    cfg.HTTP,
	}, built.Group)
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	actuator := actuate.New(built.Group, actuate.WithLogger(log.WithName("actuate")))
	if err := actuator.Sync(ctx, built.Group.Current(d.now())); err != nil {
		log.Error(err, "setting initial output levels")
	}
	opts := []runtime.Option{
		runtime.WithActuation(actuator),
		runtime.WithRetry(cfg.RetryPolicy()),
		runtime.WithKeepAlive(cfg.KeepAlive),
		runtime.WithObserver(tracker),
		runtime.WithMetrics(m),
		runtime.WithLogger(log.WithName("runtime")),
	}

	var (
		remote emit.Closer
		events lifecycle
	)
	if cfg.Endpoint != "" {
		target := emit.Redact(cfg.Endpoint)
		remote, err = d.dial(ctx, cfg.Endpoint, emit.DialConfig{
			MQTT: mqtt.Options{
				ClientID:    cfg.MQTT.ClientID,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				BufferSize:  cfg.MQTT.Buffer,
			},
			RedisStream: cfg.Redis.Stream,
			RedisMaxLen: cfg.Redis.MaxLen,
			Log:         log.WithName("emit"),
		})
		if err != nil {
			return fmt.Errorf("dial %s: %w", target, err)
		}
		opts = append(opts, runtime.WithEmitter(remote, target))
		if l, ok := remote.(lifecycle); ok {
			events = l
			tracker.SetConnectionStatus(l)
		}
		log.Info("emitter connected", "endpoint", target)
	}

	if events != nil {
		publishEvent(ctx, log, events, tracker, d.now(), mqtt.EventStartup, "")
	}

	rt, err := runtime.New(built.Group, cfg.PollInterval, opts...)
	if err != nil {
		d.closeRemote(remote)
		return err
	}

	var ln net.Listener
	if cfg.HTTP != "" {
		ln, err = net.Listen("tcp", cfg.HTTP)
		if err != nil {
			d.closeRemote(remote)
			return fmt.Errorf("listen %s: %w", cfg.HTTP, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	running, err := rt.Start(gctx)
	if err != nil {
		if ln != nil {
			ln.Close()
		}
		d.closeRemote(remote)
		return err
	}
	log.Info("started", "controllers", built.Group.Len(), "interval", cfg.PollInterval.String(), "mode", modeName(d.mode))

	var srv *web.Server
	if ln != nil {
		srv = web.New(cfg.HTTP, tracker, reg)
		log.Info("http status server listening", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	reason := ""
	g.Go(func() error {
		select {
		case s := <-sig:
			reason = signalName(s)
			log.Info("received signal, shutting down", "signal", reason)
		case <-gctx.Done():
		}
		running.Shutdown()
		err := running.Wait()
		if srv != nil {
			shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shCtx); serr != nil {
				log.Error(serr, "http server shutdown")
			}
		}
		return err
	})
	runErr := g.Wait()

	shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := actuator.Release(shCtx); err != nil {
		log.Error(err, "releasing outputs")
	}
	if events != nil {
		publishEvent(shCtx, log, events, tracker, d.now(), mqtt.EventShutdown, reason)
	}
	d.closeRemote(remote)

	log.Info("stopped", "ticks", tracker.Snapshot().Ticks)
	return runErr
}

func (d daemon) closeRemote(c emit.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		d.log.Error(err, "closing emitter")
	}
}

// publishEvent sends a retained lifecycle event carrying the current status.
func publishEvent(ctx context.Context, log logr.Logger, events lifecycle, tracker *status.Tracker, now time.Time, event, reason string) {
	err := events.PublishSystem(ctx, mqtt.SystemEvent{
		Timestamp:  now,
		Event:      event,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), event, reason),
		Retained:   true,
	})
	if err != nil {
		log.Error(err, "publishing system event", "event", event)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func modeName(m config.Mode) string {
	switch m {
	case config.ModeDryRun:
		return "dry-run"
	case config.ModeValidate:
		return "validate"
	default:
		return "live"
	}
}
