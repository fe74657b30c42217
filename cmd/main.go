package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.ozon.dev/qwestard/storefront/internal/audit"
	"gitlab.ozon.dev/qwestard/storefront/internal/config"
	"gitlab.ozon.dev/qwestard/storefront/internal/db"
	"gitlab.ozon.dev/qwestard/storefront/internal/kafka"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/push"
	"gitlab.ozon.dev/qwestard/storefront/internal/realtime"
	"gitlab.ozon.dev/qwestard/storefront/internal/repository"
	"gitlab.ozon.dev/qwestard/storefront/internal/server"
	"gitlab.ozon.dev/qwestard/storefront/internal/service"
	"gitlab.ozon.dev/qwestard/storefront/internal/taskprocessor"
)

func main() {
	cfg := config.LoadConfig()

	database, err := db.NewDB(cfg.DSN, cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("Error in connection to db: %v", err)
	}
	defer database.Close()

	orderRepo := repository.NewOrderRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)
	userRepo := repository.NewUserRepository(database)
	productRepo := repository.NewProductRepository(database)
	taskRepo := repository.NewPostgresTaskRepository(database)

	mt := metrics.New(prometheus.DefaultRegisterer)
	hub := realtime.NewHub()
	pushClient := push.NewClient(cfg.PushURL, cfg.PushTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditPool := audit.NewWorkerPool(
		audit.PoolConfig{BatchSize: 10, Timeout: 2 * time.Second, ChannelSize: 256},
		&audit.DBProcessor{DB: database},
		&audit.OutboxProcessor{Tasks: taskRepo},
	)
	auditPool.Start(2, ctx)

	producer, err := kafka.NewSaramaProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Fatalf("Error creating kafka producer: %v", err)
	}
	defer producer.Close()

	processor := taskprocessor.NewTaskProcessor(taskRepo, producer, cfg.KafkaTopic, 2*time.Second, 50)
	go processor.Start(ctx)

	notifier := service.NewNotifier(notificationRepo, userRepo, hub, pushClient, mt)
	orders := service.NewOrderService(orderRepo, productRepo, notifier, auditPool, mt,
		cfg.ConfirmDelay, cfg.CancelWindow)

	sweeper := service.NewConfirmSweeper(orderRepo, notifier, auditPool, mt, cfg.SweepInterval)
	// Catch up on confirmations that came due while the process was down.
	sweeper.Sweep(ctx)
	go sweeper.Start(ctx)

	srv := server.NewServer(orders, notifier, hub, userRepo, cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
