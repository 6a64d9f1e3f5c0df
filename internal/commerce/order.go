package commerce

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

const (
	TaxRate               = 0.18
	FreeShippingThreshold = 999.0
	ShippingCharge        = 59.0
)

var ErrEmptyOrder = errors.New("at least one item is required")

type ProductNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID.Hex())
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discountAmount"`
	Tax      float64 `json:"taxAmount"`
	Shipping float64 `json:"shippingCharges"`
	Total    float64 `json:"totalAmount"`
}

// ComputeTotals applies tax to the discounted subtotal and the shipping rule
// to the undiscounted one.
func ComputeTotals(subtotal, discount float64) Totals {
	sub := decimal.NewFromFloat(subtotal)
	disc := decimal.NewFromFloat(discount)
	if disc.GreaterThan(sub) {
		disc = sub
	}

	tax := sub.Sub(disc).Mul(decimal.NewFromFloat(TaxRate)).Round(2)

	shipping := decimal.NewFromFloat(ShippingCharge)
	if subtotal > FreeShippingThreshold {
		shipping = decimal.Zero
	}

	total := sub.Sub(disc).Add(tax).Add(shipping).Round(2)
	return Totals{
		Subtotal: sub.Round(2).InexactFloat64(),
		Discount: disc.Round(2).InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

type LineRequest struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// MergeLines folds repeated products into one line, keeping first-seen order.
func MergeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	index := make(map[primitive.ObjectID]int, len(lines))
	merged := make([]LineRequest, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}

// SnapshotItems copies the live product data into permanent order lines and
// returns their subtotal. Missing or inactive products and short stock abort.
func SnapshotItems(lines []LineRequest, products map[primitive.ObjectID]models.Product) ([]models.OrderItem, float64, error) {
	if len(lines) == 0 {
		return nil, 0, ErrEmptyOrder
	}

	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok || !p.IsActive {
			return nil, 0, ProductNotFoundError{ProductID: line.ProductID}
		}
		if p.Stock < line.Quantity {
			return nil, 0, InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: line.Quantity,
			}
		}

		price := UnitPrice(p)
		lineTotal := mulQty(price, line.Quantity).Round(2)
		image := p.Thumbnail
		if image == "" && len(p.Images) > 0 {
			image = p.Images[0].URL
		}

		items = append(items, models.OrderItem{
			Product:  p.ID,
			Name:     p.Name,
			Image:    image,
			Price:    price,
			Quantity: line.Quantity,
			Subtotal: lineTotal.InexactFloat64(),
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal.Round(2).InexactFloat64(), nil
}

// StockAdjustment is the signed change applied to one product's counters.
type StockAdjustment struct {
	Product primitive.ObjectID
	Stock   int
	Sold    int
}

// PlacementAdjustments takes stock out and counts it as sold.
func PlacementAdjustments(items []models.OrderItem) []StockAdjustment {
	out := make([]StockAdjustment, 0, len(items))
	for _, item := range items {
		out = append(out, StockAdjustment{Product: item.Product, Stock: -item.Quantity, Sold: item.Quantity})
	}
	return out
}

// RestoreAdjustments is the exact inverse of PlacementAdjustments.
func RestoreAdjustments(items []models.OrderItem) []StockAdjustment {
	out := PlacementAdjustments(items)
	for i := range out {
		out[i].Stock = -out[i].Stock
		out[i].Sold = -out[i].Sold
	}
	return out
}

// NewOrderNumber returns "ORD-" followed by ten zero padded random digits.
func NewOrderNumber(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, big.NewInt(10_000_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%010d", n.Int64()), nil
}
