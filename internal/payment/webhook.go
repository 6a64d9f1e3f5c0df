package payment

import "encoding/json"

const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
)

// WebhookEvent is the subset of the gateway's webhook body the API reads.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func ParseWebhook(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}

// GatewayOrderID prefers the payment entity's order id and falls back to the
// order entity.
func (e WebhookEvent) GatewayOrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

func (e WebhookEvent) PaymentID() string {
	return e.Payload.Payment.Entity.ID
}
