package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	"github.com/Leganyst/care-gateway/internal/config"
	"github.com/Leganyst/care-gateway/internal/db"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/platform/logging"
	"github.com/Leganyst/care-gateway/internal/platform/mq"
	"github.com/Leganyst/care-gateway/internal/platform/obs"
	"github.com/Leganyst/care-gateway/internal/repository"
	"github.com/Leganyst/care-gateway/internal/service"
	"github.com/Leganyst/care-gateway/internal/transport/grpcserver"
	"github.com/Leganyst/care-gateway/internal/transport/httpapi"
	"github.com/Leganyst/care-gateway/internal/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("gateway failed")
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Care booking gateway: provider availability and fulfillment scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP, gRPC health and the order status consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			gormDB, err := db.NewGormDB(cfg.DB)
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			if err := model.AutoMigrate(gormDB); err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.DB.Driver).Msg("schema migrated")
			return nil
		},
	}
}

func runServe() error {
	// 1. Конфиг и логгер.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Трассировка.
	if cfg.OTelEnabled {
		shutdown, err := obs.InitTracer(ctx, cfg.OTelEndpoint, cfg.Env)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn().Err(err).Msg("tracer shutdown")
			}
		}()
	}

	// 3. БД и миграции.
	gormDB, err := db.NewGormDB(cfg.DB)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)
	if err := model.AutoMigrate(gormDB); err != nil {
		return err
	}
	ping := func(ctx context.Context) error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	// 4. Брокер: без AMQP_URL события не публикуются, статусы не читаются.
	var publisher interface {
		service.EventPublisher
		Close() error
	} = mq.NopPublisher{}
	var consumer *mq.Consumer
	if cfg.AMQPURL != "" {
		p, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		publisher = p
		consumer, err = mq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPStatusQueue, []string{mq.KeyOrderOnStatus})
		if err != nil {
			_ = p.Close()
			return err
		}
		defer consumer.Close()
	} else {
		logger.Warn().Msg("AMQP_URL is empty, events are not published")
	}
	defer publisher.Close()

	// 5. Репозитории и сервисы.
	defaults, err := cfg.DefaultWorkingHours()
	if err != nil {
		return err
	}
	events := repository.NewGormEventRepository(gormDB)
	providers, err := service.NewProviderService(repository.NewGormProviderRepository(gormDB), defaults, cfg.CalendarCacheSize, logger)
	if err != nil {
		return err
	}
	fulfillments := service.NewFulfillmentService(providers, repository.NewGormFulfillmentRepository(gormDB), events, publisher, cfg.ConflictRetries, logger)
	orders := service.NewOrderService(repository.NewGormOrderRepository(gormDB), providers, fulfillments, events, publisher, cfg.ConflictRetries, logger)

	// 6. Транспорт.
	e := httpapi.NewServer(httpapi.NewHandler(providers, fulfillments, orders, ping), logger)
	grpcSrv := grpcserver.New(ping, logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server listening")
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		grpcSrv.Watch(gctx, 15*time.Second)
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			deliveries, err := consumer.Deliveries(gctx)
			if err != nil {
				return err
			}
			return worker.NewStatusConsumer(orders, logger).Run(gctx, deliveries)
		})
	}

	// 7. Грейсфул-шатдаун по сигналу или падению любого из компонентов.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.Stop()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("gateway stopped")
	return nil
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
