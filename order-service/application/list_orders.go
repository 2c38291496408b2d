package application

import (
	"context"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOrdersQuery narrows and paginates order listings
type ListOrdersQuery struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// ListOrdersResponse carries one page of orders
type ListOrdersResponse struct {
	Orders []*domain.Order
	Total  int
	Limit  int
	Offset int
}

// ListOrders use case lists orders, optionally scoped to one user
type ListOrders struct {
	orderRepository domain.OrderRepository
}

// NewListOrders creates a new ListOrders use case
func NewListOrders(orderRepository domain.OrderRepository) *ListOrders {
	return &ListOrders{orderRepository: orderRepository}
}

// Execute returns the requested page of orders
func (uc *ListOrders) Execute(ctx context.Context, query ListOrdersQuery) (*ListOrdersResponse, error) {
	filter := domain.OrderFilter{
		Status: domain.OrderStatus(query.Status),
		Limit:  normalizeLimit(query.Limit),
		Offset: query.Offset,
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		orders []*domain.Order
		total  int
		err    error
	)

	if query.UserID != "" {
		userID, idErr := models.NewID(query.UserID)
		if idErr != nil {
			return nil, errors.Wrap(idErr, "invalid user ID")
		}
		orders, total, err = uc.orderRepository.FindByUserID(ctx, userID, filter)
	} else {
		orders, total, err = uc.orderRepository.FindAll(ctx, filter)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}

	return &ListOrdersResponse{
		Orders: orders,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
