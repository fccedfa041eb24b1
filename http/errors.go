package http

import (
	"errors"
	"fmt"
	"net/http"

	"boxoffice/entity"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []entity.FieldError `json:"fields,omitempty"`

	CategoryID int64 `json:"category_id,omitempty"`
	Requested  int   `json:"requested,omitempty"`
	Available  *int  `json:"available,omitempty"`
}

func badRequest(err error) error {
	return &echo.HTTPError{
		Code:     http.StatusBadRequest,
		Message:  "failed to parse request",
		Internal: fmt.Errorf("failed to bind request: %w", err),
	}
}

// respondError writes the domain errors callers can act on and hands anything
// else to the echo error handler as an internal error.
func respondError(c echo.Context, err error) error {
	var (
		validation   entity.ValidationError
		insufficient entity.InsufficientInventoryError
		config       entity.ConfigurationError
	)

	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:  entity.ErrValidationFailed.Error(),
			Fields: validation.Fields,
		})
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusConflict, errorResponse{
			Error:      entity.ErrInsufficientInventory.Error(),
			CategoryID: insufficient.CategoryID,
			Requested:  insufficient.Requested,
			Available:  &insufficient.Available,
		})
	case errors.Is(err, entity.ErrInsufficientInventory):
		return c.JSON(http.StatusConflict, errorResponse{Error: entity.ErrInsufficientInventory.Error()})
	case errors.Is(err, entity.ErrStateConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: entity.ErrStateConflict.Error()})
	case errors.Is(err, entity.ErrCategoryNotOnSale):
		return fieldError(c, "category_id", "not_on_sale", err)
	case errors.Is(err, entity.ErrInvalidAccessToken):
		return fieldError(c, "access_token", "invalid", err)
	case errors.Is(err, entity.ErrPromoCodeNotFound):
		return fieldError(c, "promo_code", "not_found", err)
	case errors.Is(err, entity.ErrPromoCodeExpired):
		return fieldError(c, "promo_code", "expired", err)
	case errors.Is(err, entity.ErrPromoCodeNotYetValid):
		return fieldError(c, "promo_code", "not_yet_valid", err)
	case errors.Is(err, entity.ErrPromoCodeNotApplicable):
		return fieldError(c, "promo_code", "not_applicable", err)
	case errors.Is(err, entity.ErrPromoCodeExhausted):
		return fieldError(c, "promo_code", "exhausted", err)
	case errors.Is(err, entity.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, errorResponse{Error: entity.ErrPaymentFailed.Error()})
	case errors.As(err, &config):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: config.Error()})
	case errors.Is(err, entity.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: entity.ErrNotFound.Error()})
	}

	return &echo.HTTPError{
		Code:     http.StatusInternalServerError,
		Message:  http.StatusText(http.StatusInternalServerError),
		Internal: err,
	}
}

func fieldError(c echo.Context, field, code string, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, errorResponse{
		Error:  err.Error(),
		Fields: []entity.FieldError{{Field: field, Code: code}},
	})
}
