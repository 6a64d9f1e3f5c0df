package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

// OrderItem is a snapshot of the product taken at purchase time. Later catalog
// edits never touch it.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Subtotal float64            `bson:"subtotal" json:"subtotal"`
}

// ShippingAddress is an embedded copy of an address at order time.
type ShippingAddress struct {
	FullName     string `bson:"fullName" json:"fullName" binding:"required"`
	Phone        string `bson:"phone" json:"phone" binding:"required"`
	AddressLine1 string `bson:"addressLine1" json:"addressLine1" binding:"required"`
	AddressLine2 string `bson:"addressLine2,omitempty" json:"addressLine2,omitempty"`
	City         string `bson:"city" json:"city" binding:"required"`
	State        string `bson:"state" json:"state" binding:"required"`
	PostalCode   string `bson:"postalCode" json:"postalCode" binding:"required"`
	Country      string `bson:"country" json:"country"`
}

type StatusEntry struct {
	Status    OrderStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
}

// GatewayPayment holds the identifiers exchanged with the payment gateway.
type GatewayPayment struct {
	OrderID   string `bson:"orderId,omitempty" json:"orderId,omitempty"`
	PaymentID string `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Signature string `bson:"signature,omitempty" json:"-"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber     string             `bson:"orderNumber" json:"orderNumber"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	BillingAddress  *ShippingAddress   `bson:"billingAddress,omitempty" json:"billingAddress,omitempty"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	StatusHistory   []StatusEntry      `bson:"statusHistory" json:"statusHistory"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	DiscountAmount  float64            `bson:"discountAmount" json:"discountAmount"`
	TaxAmount       float64            `bson:"taxAmount" json:"taxAmount"`
	ShippingCharges float64            `bson:"shippingCharges" json:"shippingCharges"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	CouponCode      string             `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Gateway         GatewayPayment     `bson:"gateway" json:"gateway"`
	TrackingNumber  string             `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CancelReason    string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	StockReleased   bool               `bson:"stockReleased" json:"-"`
	PaidAt          *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	DeliveredAt     *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
