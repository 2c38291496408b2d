package domain

import (
	"context"
	"time"

	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
)

// ErrOrderNotFound is returned by repositories when no order matches
var ErrOrderNotFound = errors.New("order not found")

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

// terminalStatuses cannot be cancelled or transitioned out of
var terminalStatuses = map[OrderStatus]bool{
	OrderStatusShipped:   true,
	OrderStatusDelivered: true,
	OrderStatusCancelled: true,
	OrderStatusRefunded:  true,
}

// IsTerminal reports whether the status blocks cancellation
func (s OrderStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// OrderItem is a single line of an order
type OrderItem struct {
	ID        models.ID
	ProductID models.ID
	Quantity  int
	UnitPrice models.Money
}

// Subtotal returns quantity times unit price
func (i OrderItem) Subtotal() models.Money {
	return i.UnitPrice.Multiply(i.Quantity)
}

// Address is the shipping destination of an order
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// StatusChange is one entry of an order's status history
type StatusChange struct {
	ID        models.ID
	OrderID   models.ID
	Status    OrderStatus
	ChangedBy string
	Notes     string
	CreatedAt time.Time
}

// Order aggregate root
type Order struct {
	ID              models.ID
	UserID          models.ID
	Items           []OrderItem
	TotalAmount     models.Money
	PaymentMethod   string
	ShippingAddress Address
	Notes           string
	Status          OrderStatus
	Timestamps      models.Timestamps
	Version         models.Version

	events []*events.Event
}

// OrderCreatedData is the payload of OrderCreatedEvent
type OrderCreatedData struct {
	OrderID       models.ID    `json:"order_id"`
	UserID        models.ID    `json:"user_id"`
	TotalAmount   models.Money `json:"total_amount"`
	PaymentMethod string       `json:"payment_method"`
	ItemCount     int          `json:"item_count"`
}

// OrderStatusData is the payload of lifecycle events after creation
type OrderStatusData struct {
	OrderID   models.ID   `json:"order_id"`
	UserID    models.ID   `json:"user_id"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// CreateOrder factory method. The total is computed from the items;
// the order starts pending until the creation saga confirms it.
func CreateOrder(userID models.ID, items []OrderItem, paymentMethod string, shippingAddress Address, notes string) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	if paymentMethod == "" {
		return nil, errors.New("payment method is required")
	}

	total := models.NewMoney(0, items[0].UnitPrice.Currency)
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.New("item quantity must be positive")
		}
		if !item.UnitPrice.IsPositive() {
			return nil, errors.New("item price must be positive")
		}

		var err error
		total, err = total.Add(item.Subtotal())
		if err != nil {
			return nil, errors.Wrap(err, "failed to compute order total")
		}
	}

	order := &Order{
		ID:              models.GenerateUUID(),
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		PaymentMethod:   paymentMethod,
		ShippingAddress: shippingAddress,
		Notes:           notes,
		Status:          OrderStatusPending,
		Timestamps:      models.NewTimestamps(),
		Version:         models.NewVersion(),
	}

	order.recordEvent(events.NewEvent(order.ID, events.OrderCreatedEvent, OrderCreatedData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     len(order.Items),
	}))

	return order, nil
}

// Confirm marks the order confirmed after a successful creation saga
func (o *Order) Confirm(confirmedAt time.Time) error {
	if o.Status != OrderStatusPending {
		return errors.Errorf("order can only be confirmed from pending status, got %s", o.Status)
	}

	o.Status = OrderStatusConfirmed
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	o.recordEvent(events.NewEvent(o.ID, events.OrderConfirmedEvent, OrderStatusData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		ChangedAt: confirmedAt,
	}))

	return nil
}

// Fail marks the order failed after an unsuccessful creation saga
func (o *Order) Fail(reason string) error {
	if o.Status != OrderStatusPending {
		return errors.Errorf("order can only fail from pending status, got %s", o.Status)
	}

	o.Status = OrderStatusFailed
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	o.recordEvent(events.NewEvent(o.ID, events.OrderFailedEvent, OrderStatusData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Reason:    reason,
		ChangedAt: time.Now(),
	}))

	return nil
}

// Cancel cancels the order unless it has reached a terminal status
func (o *Order) Cancel(reason string) error {
	if o.Status.IsTerminal() {
		return errors.Errorf("cannot cancel order with status %s", o.Status)
	}

	o.Status = OrderStatusCancelled
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	o.recordEvent(events.NewEvent(o.ID, events.OrderCancelledEvent, OrderStatusData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Reason:    reason,
		ChangedAt: time.Now(),
	}))

	return nil
}

// UpdateStatus applies an externally driven status transition, such as
// a shipment update from the logistics service
func (o *Order) UpdateStatus(status OrderStatus, reason string) error {
	if o.Status == OrderStatusCancelled || o.Status == OrderStatusRefunded || o.Status == OrderStatusFailed {
		return errors.Errorf("cannot update order with status %s", o.Status)
	}

	o.Status = status
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()

	o.recordEvent(events.NewEvent(o.ID, events.OrderStatusUpdatedEvent, OrderStatusData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Reason:    reason,
		ChangedAt: time.Now(),
	}))

	return nil
}

// Events returns the recorded domain events
func (o *Order) Events() []*events.Event {
	return o.events
}

// ClearEvents clears recorded events after they have been published
func (o *Order) ClearEvents() {
	o.events = nil
}

func (o *Order) recordEvent(event *events.Event) {
	o.events = append(o.events, event)
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// OrderRepository persists orders, their items and status history
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]*Order, int, error)
	FindByUserID(ctx context.Context, userID models.ID, filter OrderFilter) ([]*Order, int, error)
	AppendStatusChange(ctx context.Context, change StatusChange) error
	StatusHistory(ctx context.Context, orderID models.ID) ([]StatusChange, error)
}
