package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	apictx "github.com/dtroode/authgate/internal/api/context"
	grpcRouter "github.com/dtroode/authgate/internal/api/grpc/router"
	grpcServer "github.com/dtroode/authgate/internal/api/grpc/server"
	httpRouter "github.com/dtroode/authgate/internal/api/http/router"
	httpServer "github.com/dtroode/authgate/internal/api/http/server"
	"github.com/dtroode/authgate/internal/config"
	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/password"
	"github.com/dtroode/authgate/internal/rbac"
	"github.com/dtroode/authgate/internal/repository/memory"
	"github.com/dtroode/authgate/internal/repository/postgres"
	"github.com/dtroode/authgate/internal/repository/redis"
	"github.com/dtroode/authgate/internal/repository/sqlite"
	"github.com/dtroode/authgate/internal/server"
	"github.com/dtroode/authgate/internal/service"
	storage "github.com/dtroode/authgate/internal/storage/minio"
	"github.com/dtroode/authgate/internal/token"
	"github.com/dtroode/authgate/internal/worker"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFile(cfg.Log.Level, cfg.Log.File)

	logAppVersion()

	users, sessions, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err, "driver", cfg.Database.Driver)
	}
	defer closeStores()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokenManager := token.NewJWT(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	tokenService := service.NewTokenService(tokenManager, sessions, logger, service.WithMetrics(m))
	authService := service.NewAuth(users, password.NewBcrypt(cfg.Password.BcryptCost), tokenService, logger)

	registry, reloader, err := loadPolicy(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to load role policy", "error", err)
	}

	g := gate.New(tokenService, registry, gate.WithMetrics(m))
	ctxMgr := apictx.NewManager()

	sl := server.NewSecurityLayer(cfg.TLS.Enable, cfg.TLS.CertFileName, cfg.TLS.PrivateKeyFileName)

	var servers []model.Server
	if cfg.HTTP.Addr != "" {
		r := httpRouter.New(authService, tokenService, g, registry, ctxMgr, m, reg, logger)
		servers = append(servers, httpServer.NewHTTPServer(r.Register(), cfg.HTTP.Addr))
	}
	if cfg.GRPC.Addr != "" {
		r := grpcRouter.New(authService, tokenService, g, ctxMgr, logger)
		servers = append(servers, grpcServer.NewGRPCServer(r.Register(), cfg.GRPC.Addr))
	}

	var wg sync.WaitGroup

	if reloader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reloader.Run(ctx)
		}()
	}

	sweeper := worker.NewSweeper(tokenService, cfg.Session.SweepInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

// openStores builds the user store from the configured driver. Sessions go
// to Redis when an address is configured and to the same database otherwise.
func openStores(ctx context.Context, cfg *config.Config) (model.UserStore, model.SessionStore, func(), error) {
	var (
		users    model.UserStore
		sessions model.SessionStore
		closers  []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		users = postgres.NewUserRepository(db)
		sessions = postgres.NewSessionRepository(db)
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		users = sqlite.NewUserRepository(db)
		sessions = sqlite.NewSessionRepository(db)
	default:
		users = memory.NewUserRepository()
		sessions = memory.NewSessionRepository()
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { client.Close() })
		sessions = redis.NewSessionRepository(client, cfg.Redis.Prefix)
	}

	return users, sessions, closeAll, nil
}

// loadPolicy installs the configured role policy. The returned reloader is
// nil when the built-in policy is used.
func loadPolicy(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*rbac.Registry, *rbac.Reloader, error) {
	var src rbac.Source
	switch {
	case cfg.Policy.File != "":
		src = rbac.FileSource{Path: cfg.Policy.File}
	case cfg.Policy.ObjectKey != "":
		mc, err := storage.Dial(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
		if err != nil {
			return nil, nil, err
		}
		objects, err := storage.NewClient(ctx, mc, cfg.Storage.Bucket)
		if err != nil {
			return nil, nil, err
		}
		src = rbac.ObjectSource{Storage: objects, Key: cfg.Policy.ObjectKey}
	default:
		logger.Info("Policy: using built-in roles")
		return rbac.NewRegistry(nil), nil, nil
	}

	registry := rbac.NewRegistry(nil)
	reloader := rbac.NewReloader(registry, src, cfg.Policy.ReloadInterval, logger)
	if _, err := reloader.Reload(ctx); err != nil {
		return nil, nil, err
	}

	return registry, reloader, nil
}
