package http

import (
	"context"
	"net/http"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/reservation"
	"boxoffice/summary"
	"boxoffice/waitinglist"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrServerClosed = http.ErrServerClosed

type Reservations interface {
	Reserve(ctx context.Context, req reservation.ReserveRequest) (string, error)
	Reservation(ctx context.Context, id string) (entity.Reservation, error)
	Summary(ctx context.Context, id string) (summary.OrderSummary, error)
	Checkout(ctx context.Context, id string, form reservation.CheckoutForm) error
	Pay(ctx context.Context, id string) (reservation.PaymentOutcome, error)
	ConfirmPayment(ctx context.Context, transactionRef string, amountCts int64) error
	ConfirmOfflinePayment(ctx context.Context, id string) error
	Cancel(ctx context.Context, id, reason string) error
	CreditTickets(ctx context.Context, id string, ticketUUIDs []string) error
}

type Catalog interface {
	CreateEvent(ctx context.Context, req catalog.EventRequest) (catalog.CreatedEvent, error)
	UpdateCategoryPrice(ctx context.Context, eventID string, categoryID int64, priceCts int64) error
	CreatePromoCode(ctx context.Context, req catalog.PromoCodeRequest) (entity.PromoCode, error)
	CreateAdditionalService(ctx context.Context, req catalog.AdditionalServiceRequest) (entity.AdditionalService, error)
}

type WaitingList interface {
	Subscribe(ctx context.Context, req waitinglist.SubscribeRequest) (entity.WaitingListEntry, error)
}

type Availability interface {
	Get(ctx context.Context, eventID string) (entity.Availability, error)
}

type RouterDeps struct {
	Reservations Reservations
	Catalog      Catalog
	WaitingList  WaitingList
	Availability Availability
}

func NewRouter(deps RouterDeps) *echo.Echo {
	server := commonHTTP.NewEcho()
	server.Use(correlationIDMiddleware)

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := handler{
		reservations: deps.Reservations,
		catalog:      deps.Catalog,
		waitingList:  deps.WaitingList,
		availability: deps.Availability,
	}

	server.GET("/events/:eventId/availability", handler.GetAvailability)
	server.POST("/events/:eventId/reservations", handler.CreateReservation)
	server.POST("/events/:eventId/waiting-list", handler.SubscribeToWaitingList)

	server.GET("/reservations/:id", handler.GetReservation)
	server.GET("/reservations/:id/summary", handler.GetSummary)
	server.POST("/reservations/:id/checkout", handler.Checkout)
	server.POST("/reservations/:id/payment", handler.Pay)
	server.POST("/reservations/:id/cancel", handler.Cancel)

	server.POST("/payments/webhook", handler.PaymentWebhook)

	admin := server.Group("/admin")
	admin.POST("/events", handler.CreateEvent)
	admin.PUT("/events/:eventId/categories/:categoryId/price", handler.UpdateCategoryPrice)
	admin.POST("/events/:eventId/promo-codes", handler.CreatePromoCode)
	admin.POST("/events/:eventId/additional-services", handler.CreateAdditionalService)
	admin.POST("/reservations/:id/confirm-offline-payment", handler.ConfirmOfflinePayment)
	admin.POST("/reservations/:id/credit", handler.CreditTickets)

	return server
}
