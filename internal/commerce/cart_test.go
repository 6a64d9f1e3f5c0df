package commerce

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func TestAddItemMergesLinesAndRecalculates(t *testing.T) {
	p1 := primitive.NewObjectID()
	p2 := primitive.NewObjectID()

	cart, err := AddItem(models.Cart{}, p1, 2, 49.99, 10)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	cart, err = AddItem(cart, p2, 1, 100, 5)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	cart, err = AddItem(cart, p1, 3, 45, 10)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 || cart.Items[0].Price != 45 {
		t.Fatalf("expected merged line qty=5 price=45, got qty=%d price=%v", cart.Items[0].Quantity, cart.Items[0].Price)
	}
	if cart.TotalItems != 6 {
		t.Fatalf("expected totalItems=6, got %d", cart.TotalItems)
	}
	if cart.TotalAmount != 325 {
		t.Fatalf("expected totalAmount=325, got %v", cart.TotalAmount)
	}
}

func TestAddItemRejectsQuantityAboveStockAndLeavesCartUnchanged(t *testing.T) {
	p := primitive.NewObjectID()
	cart, err := AddItem(models.Cart{}, p, 3, 10, 4)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	next, err := AddItem(cart, p, 2, 10, 4)
	var stockErr InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 4 || stockErr.Requested != 5 {
		t.Fatalf("unexpected stock error details: %+v", stockErr)
	}
	if next.Items[0].Quantity != 3 || next.TotalItems != 3 || next.TotalAmount != 30 {
		t.Fatalf("expected cart to stay unchanged, got %+v", next)
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	if _, err := AddItem(models.Cart{}, primitive.NewObjectID(), 0, 10, 5); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestAddItemDoesNotMutateInput(t *testing.T) {
	p := primitive.NewObjectID()
	original, _ := AddItem(models.Cart{}, p, 1, 10, 5)
	if _, err := AddItem(original, p, 1, 12, 5); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if original.Items[0].Quantity != 1 || original.Items[0].Price != 10 {
		t.Fatalf("input cart was modified: %+v", original.Items[0])
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	p := primitive.NewObjectID()
	cart, _ := AddItem(models.Cart{}, p, 2, 10, 5)

	cart, err := SetQuantity(cart, p, 0, 5)
	if err != nil {
		t.Fatalf("SetQuantity returned error: %v", err)
	}
	if len(cart.Items) != 0 || cart.TotalItems != 0 || cart.TotalAmount != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestSetQuantityUnknownProduct(t *testing.T) {
	cart, _ := AddItem(models.Cart{}, primitive.NewObjectID(), 1, 10, 5)
	if _, err := SetQuantity(cart, primitive.NewObjectID(), 2, 5); !errors.Is(err, ErrItemNotInCart) {
		t.Fatalf("expected ErrItemNotInCart, got %v", err)
	}
}

func TestSetQuantityRespectsStock(t *testing.T) {
	p := primitive.NewObjectID()
	cart, _ := AddItem(models.Cart{}, p, 1, 10, 5)
	if _, err := SetQuantity(cart, p, 6, 5); err == nil {
		t.Fatal("expected stock error")
	}
}

func TestClearEmptiesCart(t *testing.T) {
	cart, _ := AddItem(models.Cart{}, primitive.NewObjectID(), 2, 10, 5)
	cart = Clear(cart)
	if cart.Items == nil || len(cart.Items) != 0 {
		t.Fatalf("expected non-nil empty items, got %#v", cart.Items)
	}
	if cart.TotalItems != 0 || cart.TotalAmount != 0 {
		t.Fatalf("expected zero totals, got %d / %v", cart.TotalItems, cart.TotalAmount)
	}
}

func TestRecalculateRoundsToCents(t *testing.T) {
	cart := Recalculate(models.Cart{Items: []models.CartItem{
		{Product: primitive.NewObjectID(), Quantity: 3, Price: 0.1},
		{Product: primitive.NewObjectID(), Quantity: 1, Price: 0.2},
	}})
	if cart.TotalAmount != 0.5 {
		t.Fatalf("expected 0.5, got %v", cart.TotalAmount)
	}
}
