package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"boxoffice/clients"
	"boxoffice/config"
	"boxoffice/message"
	"boxoffice/postgres"
	"boxoffice/service"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	log.Init(logrus.InfoLevel)
	logger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	if err := run(config.Load(), logger); err != nil {
		logger.Error("failed to run", err, nil)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger watermill.LoggerAdapter) error {
	c, err := clients.New(cfg.GatewayAddr)
	if err != nil {
		return fmt.Errorf("creating gateway client: %w", err)
	}

	checkout, err := clients.NewHostedCheckout(cfg.CheckoutURL)
	if err != nil {
		return fmt.Errorf("creating hosted checkout: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis connection", err, nil)
		}
	}()

	dbConn, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close db connection", err, nil)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := postgres.InitialiseSchema(ctx, dbConn); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}

	if err := message.InitialiseOutbox(dbConn, logger); err != nil {
		return fmt.Errorf("initialising outbox: %w", err)
	}

	svc, err := service.New(service.Deps{
		Config:      cfg,
		Logger:      logger,
		DB:          dbConn,
		RedisClient: rdb,

		PaymentGateway: checkout,
		DocumentStore:  clients.NewFilesClient(c),
		Receipts:       clients.NewReceiptsClient(c),
		Spreadsheets:   clients.NewSpreadsheetsClient(c),
		Payments:       clients.NewPaymentsClient(c),
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	return svc.Run(ctx)
}
