package commerce

import (
	"time"

	"storefront/internal/models"
)

var orderStatuses = map[models.OrderStatus]struct{}{
	models.OrderStatusPending:    {},
	models.OrderStatusProcessing: {},
	models.OrderStatusShipped:    {},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
	models.OrderStatusReturned:   {},
}

func ValidOrderStatus(s string) bool {
	_, ok := orderStatuses[models.OrderStatus(s)]
	return ok
}

// CanCancel reports whether a shopper may still cancel the order.
func CanCancel(status models.OrderStatus) bool {
	return status == models.OrderStatusPending || status == models.OrderStatusProcessing
}

// AppendStatus returns a new history with one entry added; the input is not modified.
func AppendStatus(history []models.StatusEntry, status models.OrderStatus, note string, at time.Time) []models.StatusEntry {
	out := make([]models.StatusEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, models.StatusEntry{Status: status, Timestamp: at, Note: note})
}

// StatusChange lists the field updates that moving an order to a new status implies.
type StatusChange struct {
	Status        models.OrderStatus
	History       []models.StatusEntry
	PaymentStatus models.PaymentStatus
	PaidAt        *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	// RestoreStock is set when the move puts the order's units back on the shelf.
	RestoreStock bool
	// ReclaimStock is set when a released order goes back into fulfilment and
	// its units must be taken off the shelf again.
	ReclaimStock bool
	// StockReleased is the order's release flag after the move.
	StockReleased bool
}

func releasesStock(status models.OrderStatus) bool {
	return status == models.OrderStatusCancelled || status == models.OrderStatusReturned
}

// ApplyStatus computes the effects of moving order to next. No transition
// table is enforced here; callers decide who may request which status.
func ApplyStatus(order models.Order, next models.OrderStatus, note string, at time.Time) StatusChange {
	change := StatusChange{
		Status:        next,
		History:       AppendStatus(order.StatusHistory, next, note, at),
		PaymentStatus: order.PaymentStatus,
		PaidAt:        order.PaidAt,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
		StockReleased: order.StockReleased,
	}

	switch next {
	case models.OrderStatusDelivered:
		change.DeliveredAt = &at
		if order.PaymentMethod == models.PaymentMethodCOD && order.PaymentStatus != models.PaymentStatusPaid {
			change.PaymentStatus = models.PaymentStatusPaid
			change.PaidAt = &at
		}
	case models.OrderStatusCancelled, models.OrderStatusReturned:
		if next == models.OrderStatusCancelled {
			change.CancelledAt = &at
		}
		// Cancelling a shipped or delivered order leaves the units with the
		// carrier or customer; only a return brings them back.
		restock := next == models.OrderStatusReturned || CanCancel(order.OrderStatus)
		if restock && !order.StockReleased {
			change.RestoreStock = true
			change.StockReleased = true
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			change.PaymentStatus = models.PaymentStatusRefunded
		}
	}

	if !releasesStock(next) && order.StockReleased {
		change.ReclaimStock = true
		change.StockReleased = false
	}
	return change
}
