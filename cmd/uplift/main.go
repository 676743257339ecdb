// Command uplift runs the experiment orchestration service: the REST API,
// the pipeline workers, and the telemetry stream, all in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/uplift/pkg/ai"
	"github.com/odvcencio/uplift/pkg/api"
	"github.com/odvcencio/uplift/pkg/browser"
	"github.com/odvcencio/uplift/pkg/bus"
	"github.com/odvcencio/uplift/pkg/codeagent"
	"github.com/odvcencio/uplift/pkg/config"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/observe"
	"github.com/odvcencio/uplift/pkg/orchestrator"
	"github.com/odvcencio/uplift/pkg/sandbox"
	"github.com/odvcencio/uplift/pkg/storage"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

// Version information - set via ldflags during build
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	bindFlag := flag.String("bind", "", "address to bind the HTTP server (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("uplift %s (%s)\n", version, commit)
		return
	}

	if err := run(*configPath, *bindFlag); err != nil {
		fmt.Fprintf(os.Stderr, "uplift: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, bindOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bindOverride != "" {
		cfg.Server.Bind = bindOverride
	}

	logger := logging.NewNopLogger()
	if cfg.Logging.Dir != "" {
		logger, err = logging.NewLogger(cfg.Logging.Dir)
		if err != nil {
			return err
		}
		logger.SetMinLevel(logging.Level(cfg.Logging.Level))
		defer logger.Close()
	}

	db, err := storage.New(cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	messageBus, err := bus.New(busConfig(cfg))
	if err != nil {
		return err
	}
	defer messageBus.Close()

	recorder, err := observe.NewRecorder(cfg.Observe)
	if err != nil {
		return err
	}

	store := experiment.NewStore(db.DB())
	hub := telemetry.NewHub()
	defer hub.Close()

	sandboxClient := sandbox.NewClient(cfg.Sandbox.APIKey, cfg.Sandbox.BaseURL)
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Options{
		Store:       store,
		Steps:       orchestrator.NewStepStore(db.DB()),
		Provisioner: sandbox.NewProvisioner(sandboxClient, cfg.Sandbox, logger),
		Browser:     browser.NewDriver(cfg.Browser),
		AI:          ai.NewService(provider, recorder, logger),
		Spawner:     codeagent.NewSpawner(sandboxClient, cfg.CodeAgent, cfg.Sandbox.WorkDir, logger),
		Monitor:     codeagent.NewMonitor(store, cfg.CodeAgent),
		Bus:         messageBus,
		Hub:         hub,
		Logger:      logger,
		Config:      cfg,
	})

	server := api.NewServer(api.ServerConfig{
		Store:     store,
		Submitter: orch,
		Hub:       hub,
		Logger:    logger,
		Config:    cfg.Server,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := telemetry.NewRelay(hub, messageBus, uuid.NewString(), logger)
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn(logging.CategoryBus, "relay_stopped", err.Error(), nil)
		}
	}()

	orch.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info(logging.CategoryAPI, "server_started", cfg.Server.Bind, map[string]any{
		"version": version,
	})

	select {
	case err := <-serveErr:
		stop()
		orch.Wait()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(logging.CategoryAPI, "shutdown", err.Error(), nil)
	}
	orch.Wait()

	if recorder != nil {
		if err := recorder.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logging.CategoryAI, "observe_shutdown", err.Error(), nil)
		}
	}
	return nil
}

func busConfig(cfg *config.Config) bus.Config {
	busCfg := bus.DefaultConfig()
	if cfg.Bus.InMemory {
		busCfg.URL = ""
	} else {
		busCfg.URL = cfg.Bus.URL
	}
	busCfg.Token = cfg.Bus.EventKey
	return busCfg
}
