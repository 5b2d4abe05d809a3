// Package daemon serves the monitor over HTTP on a unix socket.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/metrics"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/provider"
)

// DefaultSocketPath is where the daemon listens.
const DefaultSocketPath = "/var/run/isbattery.sock"

// Daemon wires the monitor to its subscribers and the HTTP API.
type Daemon struct {
	conf    *config.File
	cascade *detect.Cascade
	hub     *events.Hub
	loop    *monitor.Loop
	router  *gin.Engine

	started atomic.Bool
	sinks   chan struct{}
}

// New builds a daemon around p. Nothing runs until Start.
func New(conf *config.File, p provider.Provider, opts ...monitor.Option) *Daemon {
	d := &Daemon{
		conf:    conf,
		cascade: detect.New(p, config.CascadeConfig(conf)),
		hub:     events.NewHub(conf.SubscriberBuffer()),
		sinks:   make(chan struct{}),
	}
	opts = append([]monitor.Option{monitor.WithObserver(metrics.Observer{})}, opts...)
	d.loop = monitor.New(d.cascade, d.hub, config.MonitorSettings(conf), opts...)
	d.router = d.setupRoutes()
	return d
}

// Loop returns the monitor loop.
func (d *Daemon) Loop() *monitor.Loop {
	return d.loop
}

// Hub returns the event hub.
func (d *Daemon) Hub() *events.Hub {
	return d.hub
}

// Handler returns the HTTP API.
func (d *Daemon) Handler() http.Handler {
	return d.router
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", d.getStatus)
	router.GET("/config", d.getConfig)
	router.PUT("/check-interval", d.setCheckInterval)
	router.PUT("/low-battery-threshold", d.setLowBatteryThreshold)
	router.POST("/pause", d.pause)
	router.POST("/resume", d.resume)
	router.POST("/refresh", d.refresh)
	router.GET("/detailed-query", d.getDetailedQuery)
	router.GET("/events", d.streamEvents)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/version", getVersion)

	return router
}

// Start runs the subscribers and the monitor loop until ctx is done or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		logrus.Warn("daemon already started")
		return
	}

	logSub := d.hub.Subscribe("log")
	metricsSub := d.hub.Subscribe("metrics")

	go func() {
		defer close(d.sinks)
		done := make(chan struct{})
		go func() {
			metrics.Consume(metricsSub)
			close(done)
		}()
		logEvents(logSub)
		<-done
	}()

	go func() {
		logrus.Debug("monitor loop starts")
		d.loop.Run(ctx)
	}()
}

// Stop ends the monitor loop and every subscription. Without a prior Start
// it only closes the hub.
func (d *Daemon) Stop() {
	if !d.started.Load() {
		d.hub.Close()
		return
	}
	d.loop.Stop()
	<-d.loop.Done()
	d.hub.Close()
	<-d.sinks
}

// Reload re-reads the config file and applies it to the running monitor.
// The provider is not rebuilt.
func (d *Daemon) Reload() error {
	if err := d.conf.Load(); err != nil {
		return err
	}
	d.apply()
	logrus.WithFields(d.conf.LogrusFields()).Info("config reloaded")
	return nil
}

func (d *Daemon) apply() {
	d.cascade.SetConfig(config.CascadeConfig(d.conf))
	d.loop.SetSettings(config.MonitorSettings(d.conf))
	d.hub.SetBuffer(d.conf.SubscriberBuffer())
}

// Run loads the config, opens the configured provider and serves until
// SIGINT or SIGTERM.
func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	p, err := provider.New(conf.Provider())
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open provider %q", conf.Provider())
	}
	defer func() {
		logrus.Info("closing power provider")
		if err := p.Close(); err != nil {
			logrus.Errorf("failed to close power provider: %v", err)
		}
	}()

	d := New(conf, p)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := d.Reload(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
			}
		}
	}()

	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// A stale socket from a previous run blocks Listen.
	if _, err := os.Stat(unixSocketPath); err == nil {
		logrus.Warnf("removing stale socket %s", unixSocketPath)
		_ = os.Remove(unixSocketPath)
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			return pkgerrors.Wrapf(err, "failed to chmod %s", unixSocketPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("stopping monitor loop")
	d.Stop()

	logrus.Info("exiting")
	return nil
}
