package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/cache"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	"github.com/joseph-ayodele/contracts-tracker/internal/metrics"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/schema"
	svc "github.com/joseph-ayodele/contracts-tracker/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.InitLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)
	jobsRepo := repo.NewExtractJobRepository(db, logger)
	remindersRepo := repo.NewNotificationRepository(db, logger)

	redisClient, err := cache.Open(ctx, cfg.Cache.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	resultCache := cache.New(redisClient, cfg.Cache.TTL, logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	pipe, modelVersion, err := svc.BuildPipeline(cfg, logger, m)
	if err != nil {
		logger.Error("failed to load entity model", "error", err)
		os.Exit(1)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("failed to compile result schema", "error", err)
		os.Exit(1)
	}

	opts := []core.Option{
		core.WithModelVersion(modelVersion),
		core.WithValidator(validator),
		core.WithJobs(jobsRepo),
		core.WithReminders(remindersRepo, cfg.Reminder.LeadDays),
		core.WithMetrics(m),
	}
	if resultCache != nil {
		opts = append(opts, core.WithCache(resultCache))
	}
	processor := core.NewProcessor(logger, pipe, opts...)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithMetrics(m),
	)

	service := svc.NewExtractionService(processor, queue, jobsRepo, logger)
	ingestor := ingest.NewFSIngestor(service, logger, int64(cfg.Server.MaxUploadMB)<<20)

	healthCheck := func(ctx context.Context) error {
		if err := db.HealthCheck(ctx, 2*time.Second); err != nil {
			return err
		}
		return resultCache.Health(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	// gRPC
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryInterceptor(logger)))
	healthServer := health.NewServer()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		svc.NewGRPCServer(service, logger).Register(grpcServer)
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(svc.ExtractionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		logger.Info("gRPC listening", "addr", cfg.Server.GRPCAddr)
		g.Go(func() error { return grpcServer.Serve(lis) })
	}

	// HTTP
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		var metricsHandler http.Handler
		if cfg.Server.ExposeMetrics {
			metricsHandler = promhttp.Handler()
		}
		router := svc.NewRouter(svc.RouterConfig{
			Service:        service,
			Ingestor:       ingestor,
			IngestRoot:     cfg.Server.InboxDir,
			Exporter:       export.NewService(jobsRepo, logger),
			Metrics:        metricsHandler,
			Health:         healthCheck,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			RateLimit:      cfg.Server.RateLimit,
			Logger:         logger,
		})
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("HTTP listening", "addr", cfg.Server.HTTPAddr)
		g.Go(func() error {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Inbox watcher
	if cfg.Server.InboxDir != "" {
		g.Go(func() error {
			err := ingest.WatchAndIngest(gctx, ingest.WatchConfig{
				Roots:       []string{cfg.Server.InboxDir},
				InitialScan: true,
				Debounce:    750 * time.Millisecond,
				SkipHidden:  true,
				Logger:      logger,
			}, ingestor)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	logger.Info("contractsd started", "model", modelVersion, "cache", resultCache != nil)

	<-gctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
