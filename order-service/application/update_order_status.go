package application

import (
	"context"
	"log"
	"time"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/agrimarket/order-system/shared/telemetry"
	"github.com/pkg/errors"
)

// UpdateOrderStatusCommand represents a status transition request
type UpdateOrderStatusCommand struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by"`
	Notes     string `json:"notes,omitempty"`
}

var allowedStatusUpdates = map[domain.OrderStatus]bool{
	domain.OrderStatusProcessing: true,
	domain.OrderStatusShipped:    true,
	domain.OrderStatusDelivered:  true,
	domain.OrderStatusRefunded:   true,
}

// UpdateOrderStatus use case applies an externally driven status
// transition and records it in the order's history
type UpdateOrderStatus struct {
	orderRepository domain.OrderRepository
	orderCache      OrderCache
	eventPublisher  events.Publisher
}

// NewUpdateOrderStatus creates a new UpdateOrderStatus use case
func NewUpdateOrderStatus(
	orderRepository domain.OrderRepository,
	orderCache OrderCache,
	eventPublisher events.Publisher,
) *UpdateOrderStatus {
	return &UpdateOrderStatus{
		orderRepository: orderRepository,
		orderCache:      orderCache,
		eventPublisher:  eventPublisher,
	}
}

// Execute executes the update order status use case
func (uc *UpdateOrderStatus) Execute(ctx context.Context, cmd *UpdateOrderStatusCommand) (*domain.Order, error) {
	id, err := models.NewID(cmd.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	status := domain.OrderStatus(cmd.Status)
	if !allowedStatusUpdates[status] {
		return nil, errors.Errorf("unsupported status transition: %s", cmd.Status)
	}

	order, err := uc.orderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := order.UpdateStatus(status, cmd.Notes); err != nil {
		return nil, err
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	change := domain.StatusChange{
		ID:        models.GenerateUUID(),
		OrderID:   order.ID,
		Status:    status,
		ChangedBy: cmd.ChangedBy,
		Notes:     cmd.Notes,
		CreatedAt: time.Now(),
	}
	if err := uc.orderRepository.AppendStatusChange(ctx, change); err != nil {
		return nil, errors.Wrap(err, "failed to record status change")
	}

	if err := uc.orderCache.Invalidate(ctx, order.ID); err != nil {
		log.Printf("failed to invalidate cached order %s: %v", order.ID, err)
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish events")
	}
	order.ClearEvents()

	if status == domain.OrderStatusDelivered {
		telemetry.RecordCounter(ctx, "orders_completed_total", "Orders delivered to the buyer", 1)
	}

	return order, nil
}
