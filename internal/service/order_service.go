package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/repository"
)

// OrderService defines the interface for order business logic
type OrderService interface {
	Place(ctx context.Context, vendorID, productID int64, quantity decimal.Decimal) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, orderID int64, caller domain.Caller, newStatus string) (*domain.Order, error)
	Get(ctx context.Context, orderID int64, caller domain.Caller) (*domain.Order, error)
	ListForVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error)
	ListForSupplier(ctx context.Context, supplierID int64) ([]*domain.Order, error)
}

type orderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	tx       repository.Transactor
	logger   *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	tx repository.Transactor,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:   orders,
		products: products,
		tx:       tx,
		logger:   logger,
	}
}

// Place records a pending order priced at the product's current price
func (s *orderService) Place(ctx context.Context, vendorID, productID int64, quantity decimal.Decimal) (*domain.Order, error) {
	quantity, ok := domain.ValidQuantity(quantity)
	if !ok {
		return nil, fmt.Errorf("%w: quantity must be positive with at most %d decimal places", ErrValidation, domain.QuantityScale)
	}

	var order *domain.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		total := domain.OrderTotal(quantity, product.Price)
		if total.GreaterThan(domain.MaxOrderTotal) {
			return fmt.Errorf("%w: order total exceeds %s", ErrValidation, domain.MaxOrderTotal.StringFixed(2))
		}

		order = &domain.Order{
			VendorID:   vendorID,
			ProductID:  product.ID,
			Quantity:   quantity,
			UnitPrice:  product.Price,
			TotalPrice: total,
			Status:     domain.OrderStatusPending,
		}
		return s.orders.Create(ctx, order)
	})
	if err != nil {
		return nil, orderError("failed to place order", err)
	}

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("vendor_id", vendorID),
		zap.Int64("product_id", productID),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)

	return order, nil
}

// AdvanceStatus moves an order one step along pending, approved, delivered.
// Only the owner of the ordered product may do so.
func (s *orderService) AdvanceStatus(ctx context.Context, orderID int64, caller domain.Caller, newStatus string) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		product, err := s.products.FindByID(ctx, found.ProductID)
		if err != nil {
			return err
		}
		if product.OwnerID != caller.AccountID {
			return ErrForbidden
		}

		next, ok := domain.ParseOrderStatus(newStatus)
		if !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
		}
		if !found.Status.CanAdvanceTo(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, found.Status, next)
		}

		found.Status = next
		if err := s.orders.UpdateStatus(ctx, found); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, orderError("failed to update order status", err)
	}

	s.logger.Info("Order status advanced",
		zap.Int64("order_id", order.ID),
		zap.String("status", order.Status.String()),
	)

	return order, nil
}

// Get returns an order visible to its vendor and to the product owner
func (s *orderService) Get(ctx context.Context, orderID int64, caller domain.Caller) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderError("failed to get order", err)
	}
	if order.VendorID == caller.AccountID {
		return order, nil
	}

	product, err := s.products.FindByID(ctx, order.ProductID)
	if err != nil {
		return nil, orderError("failed to get order", err)
	}
	if product.OwnerID != caller.AccountID {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListForVendor returns the orders a vendor placed, newest first
func (s *orderService) ListForVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	orders, err := s.orders.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor orders: %w", err)
	}
	return orders, nil
}

// ListForSupplier returns the orders placed against a supplier's products, newest first
func (s *orderService) ListForSupplier(ctx context.Context, supplierID int64) ([]*domain.Order, error) {
	orders, err := s.orders.ListByProductOwner(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier orders: %w", err)
	}
	return orders, nil
}

func orderError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrProductNotFound):
		return ErrNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrValidation):
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
