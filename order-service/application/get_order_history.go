package application

import (
	"context"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrderHistory use case returns an order's status history
type GetOrderHistory struct {
	orderRepository domain.OrderRepository
}

// NewGetOrderHistory creates a new GetOrderHistory use case
func NewGetOrderHistory(orderRepository domain.OrderRepository) *GetOrderHistory {
	return &GetOrderHistory{orderRepository: orderRepository}
}

// Execute returns the status history of the order, newest first
func (uc *GetOrderHistory) Execute(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	id, err := models.NewID(orderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	// Ensure the order exists so missing orders surface as 404s
	// instead of empty histories.
	if _, err := uc.orderRepository.FindByID(ctx, id); err != nil {
		return nil, err
	}

	return uc.orderRepository.StatusHistory(ctx, id)
}
