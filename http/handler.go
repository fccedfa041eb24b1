package http

import (
	"net/http"
	"strconv"

	"boxoffice/catalog"
	"boxoffice/reservation"
	"boxoffice/waitinglist"

	"github.com/labstack/echo/v4"
)

type handler struct {
	reservations Reservations
	catalog      Catalog
	waitingList  WaitingList
	availability Availability
}

type reservationCreatedResponse struct {
	ReservationID string `json:"reservation_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type paymentWebhookRequest struct {
	TransactionRef string `json:"transaction_ref"`
	AmountCts      int64  `json:"amount_cts"`
}

type creditRequest struct {
	TicketUUIDs []string `json:"ticket_uuids"`
}

type priceRequest struct {
	PriceCts int64 `json:"price_cts"`
}

func (h handler) GetAvailability(c echo.Context) error {
	a, err := h.availability.Get(c.Request().Context(), c.Param("eventId"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, a)
}

func (h handler) CreateReservation(c echo.Context) error {
	var request reservation.ReserveRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}
	request.EventID = c.Param("eventId")

	id, err := h.reservations.Reserve(c.Request().Context(), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, reservationCreatedResponse{ReservationID: id})
}

func (h handler) GetReservation(c echo.Context) error {
	r, err := h.reservations.Reservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, r)
}

func (h handler) GetSummary(c echo.Context) error {
	s, err := h.reservations.Summary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	s.Rows = s.DisplayRows()
	return c.JSON(http.StatusOK, s)
}

func (h handler) Checkout(c echo.Context) error {
	var form reservation.CheckoutForm
	if err := c.Bind(&form); err != nil {
		return badRequest(err)
	}

	if err := h.reservations.Checkout(c.Request().Context(), c.Param("id"), form); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h handler) Pay(c echo.Context) error {
	outcome, err := h.reservations.Pay(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, outcome)
}

func (h handler) Cancel(c echo.Context) error {
	var request cancelRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}

	if err := h.reservations.Cancel(c.Request().Context(), c.Param("id"), request.Reason); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// PaymentWebhook receives the asynchronous confirmation of a hosted payment.
func (h handler) PaymentWebhook(c echo.Context) error {
	var request paymentWebhookRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}

	err := h.reservations.ConfirmPayment(c.Request().Context(), request.TransactionRef, request.AmountCts)
	if err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusOK)
}

func (h handler) SubscribeToWaitingList(c echo.Context) error {
	var request waitinglist.SubscribeRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}
	request.EventID = c.Param("eventId")

	entry, err := h.waitingList.Subscribe(c.Request().Context(), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, entry)
}

func (h handler) CreateEvent(c echo.Context) error {
	var request catalog.EventRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}

	created, err := h.catalog.CreateEvent(c.Request().Context(), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, created)
}

func (h handler) UpdateCategoryPrice(c echo.Context) error {
	categoryID, err := strconv.ParseInt(c.Param("categoryId"), 10, 64)
	if err != nil {
		return badRequest(err)
	}

	var request priceRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}

	err = h.catalog.UpdateCategoryPrice(c.Request().Context(), c.Param("eventId"), categoryID, request.PriceCts)
	if err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h handler) CreatePromoCode(c echo.Context) error {
	var request catalog.PromoCodeRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}
	request.EventID = c.Param("eventId")

	p, err := h.catalog.CreatePromoCode(c.Request().Context(), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}

func (h handler) CreateAdditionalService(c echo.Context) error {
	var request catalog.AdditionalServiceRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}
	request.EventID = c.Param("eventId")

	s, err := h.catalog.CreateAdditionalService(c.Request().Context(), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, s)
}

func (h handler) ConfirmOfflinePayment(c echo.Context) error {
	if err := h.reservations.ConfirmOfflinePayment(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h handler) CreditTickets(c echo.Context) error {
	var request creditRequest
	if err := c.Bind(&request); err != nil {
		return badRequest(err)
	}

	if err := h.reservations.CreditTickets(c.Request().Context(), c.Param("id"), request.TicketUUIDs); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
