package application

import (
	"context"
	"log"
	"time"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
)

// CancelOrderCommand represents a cancellation request
type CancelOrderCommand struct {
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// CancelOrder use case cancels an order unless it already reached a
// terminal status
type CancelOrder struct {
	orderRepository domain.OrderRepository
	orderCache      OrderCache
	eventPublisher  events.Publisher
}

// NewCancelOrder creates a new CancelOrder use case
func NewCancelOrder(
	orderRepository domain.OrderRepository,
	orderCache OrderCache,
	eventPublisher events.Publisher,
) *CancelOrder {
	return &CancelOrder{
		orderRepository: orderRepository,
		orderCache:      orderCache,
		eventPublisher:  eventPublisher,
	}
}

// Execute executes the cancel order use case
func (uc *CancelOrder) Execute(ctx context.Context, cmd *CancelOrderCommand) (*domain.Order, error) {
	id, err := models.NewID(cmd.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	order, err := uc.orderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(cmd.Reason); err != nil {
		return nil, err
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	change := domain.StatusChange{
		ID:        models.GenerateUUID(),
		OrderID:   order.ID,
		Status:    domain.OrderStatusCancelled,
		ChangedBy: cmd.RequestedBy,
		Notes:     cmd.Reason,
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

	return order, nil
}
