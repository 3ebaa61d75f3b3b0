package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"github.com/computefleet/fleetd/pkg/api"
	"github.com/computefleet/fleetd/pkg/logging"
	"github.com/computefleet/fleetd/pkg/metrics"
	"github.com/computefleet/fleetd/pkg/models"
	"github.com/computefleet/fleetd/pkg/probe"
	"github.com/computefleet/fleetd/pkg/scheduler"
	"github.com/computefleet/fleetd/pkg/shutdown"
	"github.com/computefleet/fleetd/pkg/store"
)

func main() {
	port := flag.String("port", "8080", "API listen port")
	metricsPort := flag.String("metrics-port", "9090", "Prometheus metrics port")
	enableMetrics := flag.Bool("metrics", true, "Enable Prometheus metrics endpoint")
	configPath := flag.String("config", "", "Scheduler options file (YAML)")
	checkpointDB := flag.String("checkpoint-db", "", "SQLite checkpoint database path (empty disables persistence)")
	inventoryPath := flag.String("inventory", "", "Static node inventory file (YAML), probed alongside simulated discovery")
	discoveryInterval := flag.Duration("discovery-interval", scheduler.DefaultDiscoveryInterval, "Node discovery interval")
	telemetryInterval := flag.Duration("telemetry-interval", scheduler.DefaultTelemetryInterval, "Telemetry refresh interval")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "Emit logs as JSON")
	flag.Parse()

	logger := logging.NewLogger(logging.ParseLevel(*logLevel), *logJSON)
	logger.Info("Starting fleetd compute scheduler")

	opts, err := loadOptions(*configPath)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to load options: %v", err))
	}

	var nodeProbe probe.NodeProbe
	probes := probe.Multi{probe.NewSimulatedProbe(probe.DefaultSimulatedProbeConfig(), nil)}
	if *inventoryPath != "" {
		staticProbe, err := probe.NewStaticProbe(*inventoryPath)
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to load inventory %s: %v", *inventoryPath, err))
		}
		probes = append(probes, staticProbe)
		logger.Info(fmt.Sprintf("Static inventory loaded: %s", *inventoryPath))
	}
	nodeProbe = probes

	var checkpoints store.Store
	if *checkpointDB != "" {
		sqliteStore, err := store.NewSQLiteStore(*checkpointDB)
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to open checkpoint database: %v", err))
		}
		checkpoints = sqliteStore
		logger.Info(fmt.Sprintf("Checkpoint persistence enabled: %s", *checkpointDB))
	} else {
		logger.Warn("Checkpoint persistence disabled, state will not survive restarts")
	}

	sched, err := scheduler.New(scheduler.Config{
		Options:           opts,
		DiscoveryInterval: *discoveryInterval,
		TelemetryInterval: *telemetryInterval,
		Probe:             nodeProbe,
		Checkpoints:       checkpoints,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to create scheduler: %v", err))
	}

	mgr := shutdown.New(30*time.Second, logger)

	sched.Start()
	mgr.Register("scheduler", func(context.Context) error {
		sched.Shutdown()
		return nil
	})

	router := mux.NewRouter()
	handler := api.NewHandler(sched, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info(fmt.Sprintf("API listening on :%s", *port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(fmt.Sprintf("API server error: %v", err))
		}
	}()
	mgr.Register("api server", shutdown.StopHTTPServer(srv))

	if *enableMetrics {
		exporter := metrics.NewFleetExporter(sched)
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", exporter).Methods("GET")

		metricsSrv := &http.Server{
			Addr:         ":" + *metricsPort,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info(fmt.Sprintf("Metrics listening on :%s", *metricsPort))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(fmt.Sprintf("Metrics server error: %v", err))
			}
		}()
		mgr.Register("metrics server", shutdown.StopHTTPServer(metricsSrv))
	}

	if checkpoints != nil {
		mgr.Register("checkpoint store", shutdown.CloseResource(checkpoints))
	}

	mgr.Wait()
	os.Exit(0)
}

// loadOptions reads scheduler options from a YAML file via viper,
// falling back to defaults for anything unset. FLEETD_* environment
// variables override file values.
func loadOptions(path string) (models.SchedulerOptions, error) {
	opts := models.DefaultSchedulerOptions()

	v := viper.New()
	v.SetEnvPrefix("FLEETD")
	v.AutomaticEnv()

	v.SetDefault("auto_discovery", opts.AutoDiscovery)
	v.SetDefault("max_concurrent_tasks", opts.MaxConcurrentTasks)
	v.SetDefault("task_timeout_sec", opts.TaskTimeoutSec)
	v.SetDefault("priority_boost", opts.PriorityBoost)
	v.SetDefault("load_balancing", string(opts.LoadBalancing))
	v.SetDefault("retry_failed", opts.RetryFailed)
	v.SetDefault("max_retries", opts.MaxRetries)
	v.SetDefault("checkpoint_interval_sec", opts.CheckpointIntervalSec)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return opts, err
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		return opts, err
	}
	if !opts.LoadBalancing.Valid() {
		return opts, fmt.Errorf("unknown load balancing policy: %s", opts.LoadBalancing)
	}
	return opts, nil
}
