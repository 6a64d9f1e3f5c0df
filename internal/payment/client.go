package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Client talks to the payment gateway's REST API.
type Client struct {
	rest  *resty.Client
	keyID string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, keySecret).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest, keyID: keyID}
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers amount (in rupees) with the gateway and returns the
// gateway's order.
func (c *Client) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*Order, error) {
	var out Order
	var failure gatewayError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createOrderRequest{
			Amount:   ToSubunits(amount),
			Currency: "INR",
			Receipt:  receipt,
			Notes:    notes,
		}).
		SetResult(&out).
		SetError(&failure).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	if resp.IsError() {
		if failure.Error.Description != "" {
			return nil, fmt.Errorf("gateway create order failed with status %d: %s", resp.StatusCode(), failure.Error.Description)
		}
		return nil, fmt.Errorf("gateway create order failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway create order: empty order id")
	}
	return &out, nil
}

// ToSubunits converts rupees to paise.
func ToSubunits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
