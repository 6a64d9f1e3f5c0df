package handlers

import (
	"errors"

	"storefront/internal/commerce"
	"storefront/internal/response"
)

// commerceError maps business rule failures onto API errors. Anything it
// does not recognise is returned as is.
func commerceError(err error) error {
	var stock commerce.InsufficientStockError
	var missing commerce.ProductNotFoundError
	var minCart commerce.MinCartValueError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &stock):
		return response.BadRequest(stock.Error())
	case errors.As(err, &missing):
		return response.NotFound("product not found or unavailable")
	case errors.As(err, &minCart):
		return response.BadRequest(minCart.Error())
	case errors.Is(err, commerce.ErrItemNotInCart):
		return response.NotFound(err.Error())
	case errors.Is(err, commerce.ErrCouponExhausted), errors.Is(err, commerce.ErrCouponUserLimit):
		return response.Conflict(err.Error())
	case errors.Is(err, commerce.ErrInvalidQuantity),
		errors.Is(err, commerce.ErrEmptyOrder),
		errors.Is(err, commerce.ErrCouponInactive),
		errors.Is(err, commerce.ErrCouponNotStarted),
		errors.Is(err, commerce.ErrCouponExpired),
		errors.Is(err, commerce.ErrCouponNotApplicable):
		return response.BadRequest(err.Error())
	}
	return err
}
