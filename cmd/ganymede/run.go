package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/hosting"
	"mercator-hq/ganymede/pkg/maintenance"
	"mercator-hq/ganymede/pkg/nginx"
	"mercator-hq/ganymede/pkg/redirect"
	"mercator-hq/ganymede/pkg/server"
	"mercator-hq/ganymede/pkg/supervisor"
	"mercator-hq/ganymede/pkg/telemetry/health"
	"mercator-hq/ganymede/pkg/telemetry/logging"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede controller",
	Long: `Start the Ganymede controller with the specified configuration.

The controller launches the supervised proxy on an empty configuration,
serves the management API, and keeps the proxy configuration in step
with the provisioned state.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override the management API listen address
  ganymede run --listen 127.0.0.1:7070

  # Validate config without starting
  ganymede run --dry-run`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override management API listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

// routeSyncGenerator regenerates the artifact and keeps the resolver's
// static routes in step with it. Routes are refreshed on generation, so
// a reload that later rolls back leaves the resolver one step ahead
// until the next successful apply; the redirect table is unaffected.
type routeSyncGenerator struct {
	inner    *nginx.Generator
	resolver *redirect.Resolver
}

func (g *routeSyncGenerator) Generate(sessions []*hosting.ProvisioningSession, certFiles map[string]string) ([]byte, error) {
	artifact, err := g.inner.Generate(sessions, certFiles)
	if err != nil {
		return nil, err
	}
	g.resolver.SetRoutes(nginx.StaticRoutes(sessions))
	return artifact, nil
}

func runController(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector("ganymede", nil)
	}

	table := redirect.NewTable(cfg.Redirect.TTL)
	resolver := redirect.NewResolver(table, nil)

	generator := &routeSyncGenerator{
		inner:    nginx.NewGenerator(generatorConfig(cfg)),
		resolver: resolver,
	}
	controller := nginx.NewController(nginx.ControllerConfig{
		Binary:      cfg.Proxy.Binary,
		CacheDir:    cfg.Proxy.CacheDir,
		HealthURL:   fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Proxy.StatusPort),
		StopTimeout: cfg.Supervisor.StopTimeout,
	}, logger)
	sup := supervisor.New(supervisor.Config{
		ArtifactDir:    cfg.Supervisor.ArtifactDir,
		StartAttempts:  cfg.Supervisor.StartAttempts,
		RetryBackoff:   cfg.Supervisor.RetryBackoff,
		HealthTimeout:  cfg.Supervisor.HealthTimeout,
		HealthInterval: cfg.Supervisor.HealthInterval,
	}, controller, logger, collector)

	store := hosting.NewStore(hosting.StoreConfig{
		CertificateDir: cfg.Proxy.CertificateDir,
	}, generator, sup, controller, table, logger, collector)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Bring the proxy up on the state already present on disk:
	// certificates dropped into the cache directory survive restarts,
	// provisioning state does not.
	if _, err := store.ReloadCertificates(ctx); err != nil {
		logger.Warn("initial certificate load failed", "error", err)
	}
	artifact, err := generator.Generate(nil, nil)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := sup.Apply(ctx, artifact); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to start proxy: %w", err))
	}
	defer func() {
		if err := sup.Stop(context.Background()); err != nil {
			logger.Error("proxy shutdown failed", "error", err)
		}
	}()

	if cfg.Maintenance.CertificateWatch {
		watcher, err := hosting.NewCertificateWatcher(store, cfg.Maintenance.CertificateDebounce, logger)
		if err != nil {
			logger.Warn("certificate watcher unavailable", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("certificate watcher exited", "error", err)
				}
			}()
		}
	}

	sched := maintenance.NewScheduler(cfg.Maintenance, table, sup, collector, logger)
	if err := sched.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sched.Stop()

	readiness := health.New(cfg.Supervisor.HealthTimeout)
	readiness.RegisterCheck("proxy", func(ctx context.Context) error {
		if err := sup.HealthCheck(ctx); err != nil {
			return err
		}
		if state := sup.State(); state != supervisor.StateRunning {
			return fmt.Errorf("proxy is %s", state)
		}
		return nil
	})

	handlers := server.NewHandlers(store, table, resolver, collector, logger)
	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, handlers, logger)
	srv.SetReadinessChecker(readiness)

	logger.Info("controller started",
		"management_address", cfg.Server.ListenAddress,
		"proxy_binary", cfg.Proxy.Binary,
	)

	// Blocks until a shutdown signal or server failure.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// generatorConfig maps the loaded configuration onto the artifact
// generator's settings.
func generatorConfig(cfg *config.Config) nginx.GeneratorConfig {
	return nginx.GeneratorConfig{
		ListenAddress:    cfg.Proxy.ListenAddress,
		HTTPPort:         cfg.Proxy.HTTPPort,
		HTTPSPort:        cfg.Proxy.HTTPSPort,
		StatusPort:       cfg.Proxy.StatusPort,
		AccessLog:        cfg.Proxy.AccessLog,
		ErrorLog:         cfg.Proxy.ErrorLog,
		PIDPath:          cfg.Proxy.PIDPath,
		CacheDir:         cfg.Proxy.CacheDir,
		ClientBodyTemp:   filepath.Join(cfg.Proxy.TempDir, "client-body"),
		ProxyTemp:        filepath.Join(cfg.Proxy.TempDir, "proxy"),
		FastCGITemp:      filepath.Join(cfg.Proxy.TempDir, "fastcgi"),
		UWSGITemp:        filepath.Join(cfg.Proxy.TempDir, "uwsgi"),
		SCGITemp:         filepath.Join(cfg.Proxy.TempDir, "scgi"),
		RedirectZoneName: cfg.Redirect.ZoneName,
		RedirectZoneSize: cfg.Redirect.ZoneSize,
		RedirectTTL:      cfg.Redirect.TTL,
	}
}
