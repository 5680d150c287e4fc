package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_nav/internal/command/omnidrive"
	"github.com/Speshl/gorrc_nav/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_nav/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/metrics"
	"github.com/Speshl/gorrc_nav/internal/robot"
	"github.com/Speshl/gorrc_nav/internal/telemetry"
	"github.com/Speshl/gorrc_nav/internal/vehicle"
	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 2 * time.Second

type App struct {
	cfg   config.Config
	log   *zap.Logger
	runId uuid.UUID

	robot     *robot.Client
	base      *omni.Base
	navigator *Navigator
	publisher *telemetry.Publisher

	registry      *prometheus.Registry
	metricsServer *http.Server
}

func NewApp(cfg config.Config, log *zap.Logger) (*App, error) {
	runId := uuid.New()
	log = log.With(zap.Stringer("run_id", runId))

	robotClient := robot.NewClient(robot.Config{
		Address:     cfg.RobotCfg.Address,
		Port:        cfg.RobotCfg.Port,
		Timeout:     cfg.RobotCfg.Timeout.Duration,
		DialTimeout: cfg.RobotCfg.DialTimeout.Duration,
		KeepAlive:   robot.DefaultConfig().KeepAlive,
	}, log.Named("robot"))

	driver, err := newCommandDriver(cfg, robotClient, log.Named("command"))
	if err != nil {
		return nil, err
	}

	base, err := omni.NewBase(cfg.CommandCfg.Omni(), driver, log.Named("base"))
	if err != nil {
		return nil, fmt.Errorf("failed creating drive base: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	navMetrics := metrics.NewCollectors(registry)

	a := &App{
		cfg:      cfg,
		log:      log,
		runId:    runId,
		robot:    robotClient,
		base:     base,
		registry: registry,
	}

	deps := NavigatorDeps{
		Robot:   robotClient,
		Base:    base,
		Metrics: navMetrics,
	}

	if cfg.TelemetryCfg.Enabled {
		client, err := telemetry.NewSocketClient(cfg.TelemetryCfg.Server)
		if err != nil {
			return nil, err
		}
		a.publisher = telemetry.NewPublisher(telemetry.Config{
			Key:          cfg.TelemetryCfg.Key,
			Password:     cfg.TelemetryCfg.Password,
			HudPeriod:    cfg.TelemetryCfg.HudPeriod.Duration,
			HealthPeriod: cfg.TelemetryCfg.HealthPeriod.Duration,
		}, client, runId, telemetry.NetStats(cfg.TelemetryCfg.NetInterface), log.Named("telemetry"))
		deps.Publisher = a.publisher
	}

	a.navigator, err = NewNavigator(cfg.LoopCfg, cfg.NavCfg.Navigation(), deps, log.Named("navigator"))
	if err != nil {
		return nil, err
	}

	if cfg.MetricsCfg.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		a.metricsServer = &http.Server{
			Addr:              cfg.MetricsCfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a, nil
}

func newCommandDriver(cfg config.Config, robotClient *robot.Client, log *zap.Logger) (vehicle.CommandDriverIFace, error) {
	switch cfg.CommandCfg.CommandDriver {
	case "omnidrive":
		if cfg.CommandCfg.Mix != omni.MixBody {
			return nil, fmt.Errorf("omnidrive driver only supports the %q mix, got %q", omni.MixBody, cfg.CommandCfg.Mix)
		}
		return omnidrive.NewCommandDriver(robotClient, cfg.RobotCfg.Timeout.Duration, log), nil
	case "pca9685":
		return pca9685.NewCommandDriver(cfg.CommandCfg, log), nil
	case "pipwm":
		return pipwm.NewCommandDriver(cfg.CommandCfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported command driver %q", cfg.CommandCfg.CommandDriver)
	}
}

func (a *App) Navigator() *Navigator { return a.navigator }

// Start runs until the target is reached, a signal arrives or ctx is done.
// Reaching the target and cancellation are both clean exits.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	a.log.Info("starting...")

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.log.Info("received signal", zap.Stringer("signal", sig))
			cancel()
			return nil
		case <-groupCtx.Done():
			a.log.Debug("closing signal goroutine")
			return nil
		}
	})

	group.Go(func() error {
		defer cancel()
		return a.navigator.Run(groupCtx)
	})

	if a.publisher != nil {
		group.Go(func() error {
			err := a.publisher.Start(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("telemetry stopped", zap.Error(err))
			}
			return nil
		})
	}

	if a.metricsServer != nil {
		group.Go(func() error {
			a.log.Info("serving metrics", zap.String("address", a.metricsServer.Addr))
			err := a.metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed - %w", err)
			}
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer shutdownCancel()
			return a.metricsServer.Shutdown(shutdownCtx)
		})
	}

	err := group.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			a.log.Info("context was cancelled")
			return nil
		}
		return fmt.Errorf("navigator stopping due to error - %w", err)
	}

	a.log.Info("shutting down")
	return nil
}
