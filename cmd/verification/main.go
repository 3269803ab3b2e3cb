package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	limitapp "github.com/SamGorr/tscmf-system/internal/limits/application"
	limitdomain "github.com/SamGorr/tscmf-system/internal/limits/domain"
	limitinfra "github.com/SamGorr/tscmf-system/internal/limits/infrastructure"
	limithttp "github.com/SamGorr/tscmf-system/internal/limits/interfaces/http"
	screendomain "github.com/SamGorr/tscmf-system/internal/screening/domain"
	screeninfra "github.com/SamGorr/tscmf-system/internal/screening/infrastructure"
	screenhttp "github.com/SamGorr/tscmf-system/internal/screening/interfaces/http"
	txapp "github.com/SamGorr/tscmf-system/internal/transaction/application"
	txinfra "github.com/SamGorr/tscmf-system/internal/transaction/infrastructure"
	"github.com/SamGorr/tscmf-system/internal/transaction/infrastructure/messaging"
	txhttp "github.com/SamGorr/tscmf-system/internal/transaction/interfaces/http"
	"github.com/SamGorr/tscmf-system/pkg/config"
	"github.com/SamGorr/tscmf-system/pkg/db"
	"github.com/SamGorr/tscmf-system/pkg/logger"
	"github.com/SamGorr/tscmf-system/pkg/metrics"
	"github.com/SamGorr/tscmf-system/pkg/middleware"
	"github.com/SamGorr/tscmf-system/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/verification/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
	if err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	slog.SetDefault(log)

	// 3. Database
	gdb, err := db.Open(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}
	if err := gdb.AutoMigrate(
		&txinfra.TransactionPO{},
		&txinfra.EventPO{},
		&limitinfra.EntityPO{},
		&limitinfra.EntityLimitPO{},
		&messaging.OutboxMessage{},
	); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 4. Metrics
	m := metrics.New("verification")
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		panic(fmt.Sprintf("register metrics failed: %v", err))
	}

	// 5. Infrastructure & Domain
	watchlist, err := screeninfra.NewFileWatchlistRepository(cfg.Watchlist.Path)
	if err != nil {
		panic(fmt.Sprintf("load watchlist failed: %v", err))
	}
	screenEngine := screendomain.NewEngine(watchlist)

	programCeiling, err := cfg.ProgramCeiling()
	if err != nil {
		panic(fmt.Sprintf("invalid program ceiling: %v", err))
	}
	countryCeilings, err := cfg.CountryCeilings()
	if err != nil {
		panic(fmt.Sprintf("invalid country ceilings: %v", err))
	}

	entityRepo := limitinfra.NewGormEntityRepository(gdb)
	limitRepo := limitinfra.NewGormEntityLimitRepository(gdb)
	limitEngine := limitdomain.NewEngine(limitRepo, limitdomain.Ceilings{
		Program: programCeiling,
		Country: countryCeilings,
	})

	txRepo := txinfra.NewGormTransactionRepository(gdb)
	publisher := messaging.NewOutboxEventPublisher(gdb)
	uow := db.NewUnitOfWork(gdb)

	// 6. Application
	policy := txapp.NewStaticPolicy(cfg.Checks)
	verification := txapp.NewVerificationService(
		txRepo, screenEngine, limitEngine, limitRepo, policy, uow, publisher, m, log)
	entities := limitapp.NewEntityService(entityRepo, limitRepo, uow, log)

	// 7. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log), middleware.Metrics(m), middleware.CORS())

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) {
			sqlDB, err := gdb.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "READY"})
		})
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	root := r.Group("")
	txhttp.NewTransactionHandler(verification, log).RegisterRoutes(root)
	limithttp.NewEntityHandler(entities, log).RegisterRoutes(root)
	screenhttp.NewScreeningHandler(screenEngine, watchlist, log).RegisterRoutes(root)

	// 8. Start
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(rootCtx)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Outbox relay
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			panic(fmt.Sprintf("create kafka producer failed: %v", err))
		}
		defer producer.Close()

		relay := messaging.NewOutboxRelay(gdb, producer, m, log, time.Second, 100)
		g.Go(func() error {
			err := relay.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	} else {
		slog.Warn("kafka brokers not configured, outbox relay disabled")
	}

	// 9. Graceful Shutdown
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("server exited with error", "error", err)
	}
}
