package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"streetbasket/internal/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, order *domain.Order) error
	ListByVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error)
	ListByProductOwner(ctx context.Context, ownerID int64) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `o.id, o.vendor_id, o.product_id, o.quantity, o.unit_price, o.total_price, o.status, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.VendorID,
		&order.ProductID,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalPrice,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Create inserts a new order. The creation timestamp is assigned by the database.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (vendor_id, product_id, quantity, unit_price, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		order.VendorID,
		order.ProductID,
		order.Quantity,
		order.UnitPrice,
		order.TotalPrice,
		string(order.Status),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.findByID(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
}

// FindByIDForUpdate retrieves an order and locks its row
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.findByID(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) findByID(ctx context.Context, query string, id int64) (*domain.Order, error) {
	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// UpdateStatus persists a status change. Prices are never rewritten.
func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2
		WHERE id = $1
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, order.ID, string(order.Status)).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

// ListByVendor retrieves the orders a vendor placed, newest first
func (r *orderRepository) ListByVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.vendor_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`
	return r.list(ctx, query, vendorID)
}

// ListByProductOwner retrieves orders placed against products owned by ownerID, newest first
func (r *orderRepository) ListByProductOwner(ctx context.Context, ownerID int64) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN products p ON p.id = o.product_id
		WHERE p.owner_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`
	return r.list(ctx, query, ownerID)
}

func (r *orderRepository) list(ctx context.Context, query string, id int64) ([]*domain.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
