// Package mocks provides testify mocks for the order service ports.
package mocks

import (
	"context"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/order-service/workflow"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock of domain.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) FindByUserID(ctx context.Context, userID models.ID, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) AppendStatusChange(ctx context.Context, change domain.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockOrderRepository) StatusHistory(ctx context.Context, orderID models.ID) ([]domain.StatusChange, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatusChange), args.Error(1)
}

// MockOrderCache is a mock of application.OrderCache
type MockOrderCache struct {
	mock.Mock
}

func (m *MockOrderCache) Get(ctx context.Context, id models.ID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderCache) Set(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderCache) Invalidate(ctx context.Context, id models.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher is a mock of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// MockInventoryClient is a mock of workflow.InventoryClient
type MockInventoryClient struct {
	mock.Mock
}

func (m *MockInventoryClient) Validate(ctx context.Context, items []workflow.OrderItem) (*workflow.ValidateResult, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ValidateResult), args.Error(1)
}

func (m *MockInventoryClient) Reserve(ctx context.Context, orderID string, items []workflow.OrderItem) (*workflow.ReserveResult, error) {
	args := m.Called(ctx, orderID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ReserveResult), args.Error(1)
}

func (m *MockInventoryClient) Release(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// MockPaymentClient is a mock of workflow.PaymentClient
type MockPaymentClient struct {
	mock.Mock
}

func (m *MockPaymentClient) Charge(ctx context.Context, req workflow.ChargeRequest) (*workflow.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.ChargeResult), args.Error(1)
}

func (m *MockPaymentClient) Refund(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// MockNotificationClient is a mock of workflow.NotificationClient
type MockNotificationClient struct {
	mock.Mock
}

func (m *MockNotificationClient) Send(ctx context.Context, req workflow.NotificationRequest) (*workflow.SendResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.SendResult), args.Error(1)
}
