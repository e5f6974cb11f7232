package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/money"
)

// cartService implements the CartService interface. Product data placed in
// the cart always comes from the catalog, never from the client.
type cartService struct {
	store    cart.Store
	products ProductService
	logger   *zap.Logger
}

// NewCartService creates a new CartService instance.
func NewCartService(store cart.Store, products ProductService, logger *zap.Logger) CartService {
	return &cartService{store: store, products: products, logger: logger}
}

func (s *cartService) Get(ctx context.Context, uid string) (*cart.Cart, error) {
	c, err := s.store.Load(ctx, uid)
	if err != nil {
		s.logger.Error("loadCart failed", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error loading cart", err)
	}
	return c, nil
}

// Add puts one unit of productID in the cart. Out-of-stock products are
// rejected; a product already in the cart is left unchanged.
func (s *cartService) Add(ctx context.Context, uid, productID string) (*cart.Cart, error) {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, FailedPrecondition("Product is out of stock")
	}

	stock := p.Stock
	return s.modify(ctx, uid, func(c *cart.Cart) error {
		c.Add(cart.Item{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price,
			Image: p.ImageURL,
			Stock: &stock,
		})
		return nil
	})
}

// UpdateQuantity sets the quantity of a line. A quantity <= 0 removes it.
func (s *cartService) UpdateQuantity(ctx context.Context, uid, productID string, quantity int) (*cart.Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, uid, productID)
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.modify(ctx, uid, func(c *cart.Cart) error {
		c.SetStock(productID, p.Stock)
		return c.UpdateQuantity(productID, quantity)
	})
}

func (s *cartService) Remove(ctx context.Context, uid, productID string) (*cart.Cart, error) {
	return s.modify(ctx, uid, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *cartService) modify(ctx context.Context, uid string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	c, err := s.store.Modify(ctx, uid, fn)
	if err != nil {
		if errors.Is(err, cart.ErrExceedsStock) {
			return nil, InvalidArgument("Quantity exceeds available stock")
		}
		s.logger.Error("modifyCart failed", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error updating cart", err)
	}
	return c, nil
}

// Checkout reserves stock for every line and empties the cart. The summary is
// priced at the catalog prices read during the reservation, not at the prices
// captured when the lines were added. No payment is taken.
func (s *cartService) Checkout(ctx context.Context, uid string) (*models.CheckoutSummary, error) {
	c, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, FailedPrecondition("Cart is empty")
	}

	qty := make(map[string]int, c.Len())
	for _, it := range c.Items {
		qty[it.ID] = it.Quantity
	}
	prices, err := s.products.Reserve(ctx, qty)
	if err != nil {
		return nil, err
	}

	summary := &models.CheckoutSummary{
		Items:      make([]models.CheckoutLine, 0, c.Len()),
		TotalItems: c.TotalItems(),
		Currency:   money.Currency,
	}
	for _, it := range c.Items {
		unit, ok := prices[it.ID]
		if !ok {
			unit = it.Price
		}
		line := unit * int64(it.Quantity)
		summary.Items = append(summary.Items, models.CheckoutLine{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: unit,
			LineTotal: line,
		})
		summary.TotalPrice += line
	}
	summary.TotalFormatted = money.Format(summary.TotalPrice)

	if err := s.store.Clear(ctx, uid); err != nil {
		s.logger.Error("checkout: stock reserved but cart not cleared", zap.String("uid", uid), zap.Error(err))
	}
	return summary, nil
}
