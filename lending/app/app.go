package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/lending-service/lending/config"
	"github.com/Astemirdum/lending-service/lending/internal/events"
	"github.com/Astemirdum/lending-service/lending/internal/handler"
	"github.com/Astemirdum/lending-service/lending/internal/repository"
	"github.com/Astemirdum/lending-service/lending/internal/server"
	"github.com/Astemirdum/lending-service/lending/internal/service"
	"github.com/Astemirdum/lending-service/lending/migrations"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
	"github.com/Astemirdum/lending-service/pkg/postgres"
	"github.com/Astemirdum/lending-service/pkg/tracing"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "lending")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal("tracing.NewProvider", zap.Error(err))
	}
	tracing.Install(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("tracer provider shutdown", zap.Error(err))
		}
	}()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log, repository.WithLockTimeout(cfg.Lending.LockTimeout))
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	opts := []service.Option{
		service.WithBorrowLimit(cfg.Lending.BorrowLimit),
		service.WithLoanPeriod(cfg.Lending.LoanPeriod),
		service.WithStrictBorrowLimit(cfg.Lending.StrictBorrowLimit),
		service.WithTracerProvider(tp),
	}
	if cfg.Lending.PublishEvents {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("producer close", zap.Error(err))
			}
		}()
		opts = append(opts, service.WithPublisher(events.NewPublisher(producer, kafka.LendingTopic, log)))
	}
	svc := service.NewService(repo, log, opts...)

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr",
				net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})

	if cfg.Lending.ConsumeCatalog {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.LendingConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		g.Go(func() error {
			return kafka.Consume(gCtx, consumer, handler.NewConsumer(svc.AdjustCopies, log), kafka.CatalogTopic)
		})
		g.Go(func() error {
			<-gCtx.Done()
			return consumer.Close()
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown", zap.Error(context.Cause(gCtx)))

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("lending stopped", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}
