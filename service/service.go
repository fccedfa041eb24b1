package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/cache"
	"boxoffice/catalog"
	"boxoffice/clients"
	"boxoffice/config"
	"boxoffice/http"
	"boxoffice/message"
	"boxoffice/message/command"
	"boxoffice/message/event"
	"boxoffice/postgres"
	"boxoffice/reservation"
	"boxoffice/waitinglist"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Deps struct {
	Config      config.Config
	Logger      watermill.LoggerAdapter
	DB          *sqlx.DB
	RedisClient *redis.Client

	PaymentGateway reservation.PaymentGateway
	DocumentStore  event.DocumentStore
	Receipts       event.ReceiptIssuer
	Spreadsheets   event.SpreadsheetAppender
	Payments       command.PaymentRefunder
}

type Service struct {
	msgRouter  *message.Router
	forwarder  *message.Forwarder
	httpRouter *echo.Echo
	reaper     reservation.Reaper
	httpAddr   string
}

func New(deps Deps) (*Service, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: deps.RedisClient,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}
	decoratedPublisher := log.CorrelationPublisherDecorator{Publisher: publisher}

	commandBus, err := command.NewBus(decoratedPublisher, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating command bus: %w", err)
	}

	store := postgres.NewStore(deps.DB, deps.Logger)

	manager, err := reservation.NewManager(reservation.Deps{
		Store:       store.Reservations(),
		Gateway:     deps.PaymentGateway,
		DefaultHold: deps.Config.ReservationHold,
	})
	if err != nil {
		return nil, fmt.Errorf("creating reservation manager: %w", err)
	}

	catalogService := catalog.NewService(store.Catalog(), nil)
	waitingList := waitinglist.NewService(store.WaitingList(), manager, deps.Config.WaitingListOffer, nil)
	availability := cache.NewAvailability(deps.RedisClient, catalogService, deps.Config.AvailabilityCacheTTL)

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Logger:      deps.Logger,
		RedisClient: deps.RedisClient,
		EventHandler: event.NewHandler(event.Deps{
			Documents:     store,
			DocumentStore: deps.DocumentStore,
			Receipts:      deps.Receipts,
			Spreadsheets:  deps.Spreadsheets,
			Notifier:      clients.NewNotifier(deps.Spreadsheets),
			Availability:  availability,
			WaitingList:   waitingList,
			CommandBus:    commandBus,
		}),
		CommandHandler: command.NewHandler(deps.Payments),
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	forwarder, err := message.NewForwarder(deps.DB, deps.RedisClient, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating outbox forwarder: %w", err)
	}

	httpRouter := http.NewRouter(http.RouterDeps{
		Reservations: manager,
		Catalog:      catalogService,
		WaitingList:  waitingList,
		Availability: availability,
	})

	return &Service{
		msgRouter:  msgRouter,
		forwarder:  forwarder,
		httpRouter: httpRouter,
		reaper:     reservation.NewReaper(manager, deps.Config.ReaperInterval),
		httpAddr:   deps.Config.HTTPAddr,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running outbox forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return s.reaper.Run(runCtx)
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.WithField("addr", s.httpAddr).Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}
