package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ domain.OrderRepository = (*PostgresOrderRepository)(nil)

// PostgresOrderRepository implements domain.OrderRepository using PostgreSQL
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// postgresOrder represents an order row
type postgresOrder struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Status          string     `db:"status"`
	TotalAmount     int64      `db:"total_amount"`
	Currency        string     `db:"currency"`
	PaymentMethod   string     `db:"payment_method"`
	ShippingAddress []byte     `db:"shipping_address"`
	Notes           *string    `db:"notes"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"`
	Version         int        `db:"version"`
}

// postgresOrderItem represents an order_items row
type postgresOrderItem struct {
	ID        string    `db:"id"`
	OrderID   string    `db:"order_id"`
	ProductID string    `db:"product_id"`
	Quantity  int       `db:"quantity"`
	UnitPrice int64     `db:"unit_price"`
	Currency  string    `db:"currency"`
	CreatedAt time.Time `db:"created_at"`
}

// postgresStatusChange represents an order_status_history row
type postgresStatusChange struct {
	ID        string    `db:"id"`
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	ChangedBy string    `db:"changed_by"`
	Notes     string    `db:"notes"`
	CreatedAt time.Time `db:"created_at"`
}

// Save persists an order. Creation events insert the order and its
// items; later lifecycle events update the order row with optimistic
// locking.
func (r *PostgresOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	for _, event := range order.Events() {
		switch event.EventType {
		case events.OrderCreatedEvent:
			return r.insertOrder(ctx, order)
		case events.OrderConfirmedEvent, events.OrderFailedEvent,
			events.OrderCancelledEvent, events.OrderStatusUpdatedEvent:
			return r.updateOrder(ctx, order)
		}
	}
	return nil
}

func (r *PostgresOrderRepository) insertOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	pgOrder, err := r.toPostgres(order)
	if err != nil {
		return err
	}

	orderQuery := `
		INSERT INTO orders (
			id, user_id, status, total_amount, currency, payment_method,
			shipping_address, notes, created_at, updated_at, version
		) VALUES (
			:id, :user_id, :status, :total_amount, :currency, :payment_method,
			:shipping_address, :notes, :created_at, :updated_at, :version
		)`

	if _, err := tx.NamedExecContext(ctx, orderQuery, pgOrder); err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, currency, created_at)
		VALUES (:id, :order_id, :product_id, :quantity, :unit_price, :currency, :created_at)`

	for _, item := range order.Items {
		pgItem := postgresOrderItem{
			ID:        item.ID.String(),
			OrderID:   order.ID.String(),
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount,
			Currency:  item.UnitPrice.Currency,
			CreatedAt: order.Timestamps.CreatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, itemQuery, pgItem); err != nil {
			return errors.Wrap(err, "failed to insert order item")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit order insert")
}

func (r *PostgresOrderRepository) updateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = :status, updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          order.ID.String(),
		"status":      string(order.Status),
		"updated_at":  order.Timestamps.UpdatedAt,
		"version":     order.Version.Value,
		"old_version": order.Version.Value - 1, // optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return errors.New("order version conflict")
	}

	return nil
}

// FindByID loads an order and its items
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	var pgOrder postgresOrder
	err := r.db.GetContext(ctx, &pgOrder,
		`SELECT * FROM orders WHERE id = $1 AND deleted_at IS NULL`, id.String())
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query order")
	}

	var pgItems []postgresOrderItem
	err = r.db.SelectContext(ctx, &pgItems,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at`, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query order items")
	}

	return r.toDomain(pgOrder, pgItems)
}

// FindAll lists orders with pagination and an optional status filter
func (r *PostgresOrderRepository) FindAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	query := `SELECT * FROM orders WHERE deleted_at IS NULL`
	countQuery := `SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL`
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
		countQuery += ` AND status = $1`
	}

	query += ` ORDER BY created_at DESC`
	query += limitOffsetClause(len(args))
	args = append(args, filter.Limit, filter.Offset)

	return r.queryOrders(ctx, query, countQuery, args)
}

// FindByUserID lists a user's orders with pagination
func (r *PostgresOrderRepository) FindByUserID(ctx context.Context, userID models.ID, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	query := `SELECT * FROM orders WHERE deleted_at IS NULL AND user_id = $1 ORDER BY created_at DESC` +
		limitOffsetClause(1)
	countQuery := `SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL AND user_id = $1`

	return r.queryOrders(ctx, query, countQuery, []interface{}{userID.String(), filter.Limit, filter.Offset})
}

func limitOffsetClause(argCount int) string {
	if argCount == 0 {
		return ` LIMIT $1 OFFSET $2`
	}
	return ` LIMIT $2 OFFSET $3`
}

func (r *PostgresOrderRepository) queryOrders(ctx context.Context, query, countQuery string, args []interface{}) ([]*domain.Order, int, error) {
	var pgOrders []postgresOrder
	if err := r.db.SelectContext(ctx, &pgOrders, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to query orders")
	}

	var total int
	// The count query only takes the filter args, not limit/offset.
	countArgs := args[:len(args)-2]
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count orders")
	}

	orders := make([]*domain.Order, 0, len(pgOrders))
	for _, pgOrder := range pgOrders {
		order, err := r.toDomain(pgOrder, nil)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}

	return orders, total, nil
}

// AppendStatusChange records one status history entry
func (r *PostgresOrderRepository) AppendStatusChange(ctx context.Context, change domain.StatusChange) error {
	query := `
		INSERT INTO order_status_history (id, order_id, status, changed_by, notes, created_at)
		VALUES (:id, :order_id, :status, :changed_by, :notes, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, postgresStatusChange{
		ID:        change.ID.String(),
		OrderID:   change.OrderID.String(),
		Status:    string(change.Status),
		ChangedBy: change.ChangedBy,
		Notes:     change.Notes,
		CreatedAt: change.CreatedAt,
	})
	return errors.Wrap(err, "failed to insert status change")
}

// StatusHistory returns the status history of an order, newest first
func (r *PostgresOrderRepository) StatusHistory(ctx context.Context, orderID models.ID) ([]domain.StatusChange, error) {
	var pgChanges []postgresStatusChange
	err := r.db.SelectContext(ctx, &pgChanges,
		`SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY created_at DESC`, orderID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query status history")
	}

	changes := make([]domain.StatusChange, 0, len(pgChanges))
	for _, pg := range pgChanges {
		changes = append(changes, domain.StatusChange{
			ID:        models.ID(pg.ID),
			OrderID:   models.ID(pg.OrderID),
			Status:    domain.OrderStatus(pg.Status),
			ChangedBy: pg.ChangedBy,
			Notes:     pg.Notes,
			CreatedAt: pg.CreatedAt,
		})
	}

	return changes, nil
}

func (r *PostgresOrderRepository) toPostgres(order *domain.Order) (postgresOrder, error) {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return postgresOrder{}, errors.Wrap(err, "failed to marshal shipping address")
	}

	var notes *string
	if order.Notes != "" {
		notes = &order.Notes
	}

	return postgresOrder{
		ID:              order.ID.String(),
		UserID:          order.UserID.String(),
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount.Amount,
		Currency:        order.TotalAmount.Currency,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: address,
		Notes:           notes,
		CreatedAt:       order.Timestamps.CreatedAt,
		UpdatedAt:       order.Timestamps.UpdatedAt,
		DeletedAt:       order.Timestamps.DeletedAt,
		Version:         order.Version.Value,
	}, nil
}

func (r *PostgresOrderRepository) toDomain(pgOrder postgresOrder, pgItems []postgresOrderItem) (*domain.Order, error) {
	var address domain.Address
	if len(pgOrder.ShippingAddress) > 0 {
		if err := json.Unmarshal(pgOrder.ShippingAddress, &address); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal shipping address")
		}
	}

	items := make([]domain.OrderItem, 0, len(pgItems))
	for _, pg := range pgItems {
		items = append(items, domain.OrderItem{
			ID:        models.ID(pg.ID),
			ProductID: models.ID(pg.ProductID),
			Quantity:  pg.Quantity,
			UnitPrice: models.NewMoney(pg.UnitPrice, pg.Currency),
		})
	}

	var notes string
	if pgOrder.Notes != nil {
		notes = *pgOrder.Notes
	}

	return &domain.Order{
		ID:              models.ID(pgOrder.ID),
		UserID:          models.ID(pgOrder.UserID),
		Items:           items,
		TotalAmount:     models.NewMoney(pgOrder.TotalAmount, pgOrder.Currency),
		PaymentMethod:   pgOrder.PaymentMethod,
		ShippingAddress: address,
		Notes:           notes,
		Status:          domain.OrderStatus(pgOrder.Status),
		Timestamps: models.Timestamps{
			CreatedAt: pgOrder.CreatedAt,
			UpdatedAt: pgOrder.UpdatedAt,
			DeletedAt: pgOrder.DeletedAt,
		},
		Version: models.Version{Value: pgOrder.Version},
	}, nil
}
