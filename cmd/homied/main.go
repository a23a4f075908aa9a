// Command homied runs the service dispatch daemon: the HTTP edge, the
// adapter factory, and the transport dispatcher, against an in-memory
// service store seeded from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TOoSmOotH/homie-sub000/adapter"
	"github.com/TOoSmOotH/homie-sub000/config"
	"github.com/TOoSmOotH/homie-sub000/dispatch"
	"github.com/TOoSmOotH/homie-sub000/logger"
	"github.com/TOoSmOotH/homie-sub000/resilience"
	"github.com/TOoSmOotH/homie-sub000/server"
	"github.com/TOoSmOotH/homie-sub000/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "homied:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile   = flag.String("config", "", "path to config.yml")
		envFile      = flag.String("env", "", "path to .env file")
		servicesFile = flag.String("services", "", "path to a JSON file of installed services")
	)
	flag.Parse()

	var loaderOpts []config.LoaderOption
	if *configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(*envFile))
	}

	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return err
	}

	logger.Init(cfg.Log)
	log := logger.Get("homied")

	mem := store.NewMemory()
	if *servicesFile != "" {
		n, err := seedServices(mem, *servicesFile)
		if err != nil {
			return err
		}
		log.Info("services loaded", map[string]interface{}{"count": n, "file": *servicesFile})
	}

	manager := resilience.NewManager(cfg.Resilience.ManagerConfig(), logger.Get("resilience"))
	factory := adapter.NewFactory(adapter.WithResilience(manager))
	discovery := adapter.NewDiscovery(cfg.Adapters.DiscoveryTimeout())
	dispatcher := dispatch.NewDispatcher(mem, cfg.Docker.SocketPath, dispatch.WithStatusWriter(mem))

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout(),
	}, dispatcher, factory, discovery, mem, logger.Get("server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepIdleAdapters(ctx, factory, cfg.Adapters.SweepInterval(), cfg.Adapters.MaxIdle())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// sweepIdleAdapters evicts idle adapters on a timer until the context ends.
func sweepIdleAdapters(ctx context.Context, factory *adapter.Factory, interval, maxIdle time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			factory.CleanupIdle(maxIdle)
		}
	}
}

// seedServices loads installed service records from a JSON array.
func seedServices(mem *store.Memory, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read services file: %w", err)
	}
	var services []*store.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return 0, fmt.Errorf("decode services file: %w", err)
	}
	for _, svc := range services {
		if svc.ID == "" {
			return 0, fmt.Errorf("services file: record without id")
		}
		mem.Put(svc)
	}
	return len(services), nil
}
