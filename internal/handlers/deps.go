package handlers

import (
	"context"
	"io"

	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/storage"
)

// Notifier sends the transactional emails.
type Notifier interface {
	SendVerification(name, email, rawToken string) error
	SendPasswordReset(name, email, rawToken string) error
	SendOrderConfirmation(name, email string, order models.Order) error
}

type ImageStore interface {
	Upload(ctx context.Context, filename string, size int64, body io.Reader) (storage.Image, error)
	Delete(ctx context.Context, key string) error
}

type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*payment.Order, error)
}
