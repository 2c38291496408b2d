package application

import (
	"context"
	"testing"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/order-service/mocks"
	"github.com/agrimarket/order-system/order-service/workflow"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validCreateCommand() *CreateOrderCommand {
	return &CreateOrderCommand{
		UserID: "550e8400-e29b-41d4-a716-446655440010",
		Items: []OrderItemInput{
			{ProductID: "550e8400-e29b-41d4-a716-446655440001", Quantity: 2, UnitPrice: 500, Currency: "USD"},
		},
		PaymentMethod: "credit_card",
		ShippingAddress: domain.Address{
			Line1:      "12 Market Road",
			City:       "Nakuru",
			PostalCode: "20100",
			Country:    "KE",
		},
	}
}

type createOrderDeps struct {
	repo         *mocks.MockOrderRepository
	cache        *mocks.MockOrderCache
	publisher    *mocks.MockPublisher
	inventory    *mocks.MockInventoryClient
	payment      *mocks.MockPaymentClient
	notification *mocks.MockNotificationClient
}

func newCreateOrder(policies workflow.Policies) (*CreateOrder, *createOrderDeps) {
	deps := &createOrderDeps{
		repo:         &mocks.MockOrderRepository{},
		cache:        &mocks.MockOrderCache{},
		publisher:    &mocks.MockPublisher{},
		inventory:    &mocks.MockInventoryClient{},
		payment:      &mocks.MockPaymentClient{},
		notification: &mocks.MockNotificationClient{},
	}

	uc := NewCreateOrder(deps.repo, deps.cache, deps.publisher, workflow.Collaborators{
		Inventory:    deps.inventory,
		Payment:      deps.payment,
		Notification: deps.notification,
	}, policies)

	return uc, deps
}

func (d *createOrderDeps) healthyCollaborators() {
	d.inventory.On("Validate", mock.Anything, mock.Anything).
		Return(&workflow.ValidateResult{Available: true}, nil)
	d.inventory.On("Reserve", mock.Anything, mock.Anything, mock.Anything).
		Return(&workflow.ReserveResult{Reserved: true, ReservationID: "res-1"}, nil)
	d.payment.On("Charge", mock.Anything, mock.Anything).
		Return(&workflow.ChargeResult{Success: true, PaymentID: "pay-1", Status: "captured"}, nil)
	d.notification.On("Send", mock.Anything, mock.Anything).
		Return(&workflow.SendResult{Sent: true}, nil)
}

func TestCreateOrder_Success(t *testing.T) {
	uc, deps := newCreateOrder(workflow.DefaultPolicies())
	deps.healthyCollaborators()

	deps.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Twice()
	deps.cache.On("Set", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evts []*events.Event) bool {
		return len(evts) == 1 && evts[0].EventType == events.OrderCreatedEvent
	})).Return(nil).Once()
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evts []*events.Event) bool {
		return len(evts) == 1 && evts[0].EventType == events.OrderConfirmedEvent
	})).Return(nil).Once()

	resp, err := uc.Execute(context.Background(), validCreateCommand())

	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusConfirmed), resp.Status)
	assert.Equal(t, int64(1000), resp.TotalAmount)
	assert.Equal(t, []string{
		workflow.StepValidateInventory,
		workflow.StepReserveInventory,
		workflow.StepProcessPayment,
		workflow.StepCreateOrderRecord,
		workflow.StepSendNotification,
	}, resp.Steps)

	deps.repo.AssertExpectations(t)
	deps.cache.AssertExpectations(t)
	deps.publisher.AssertExpectations(t)
}

func TestCreateOrder_PaymentDeclineFailsOrderAndReleasesInventory(t *testing.T) {
	uc, deps := newCreateOrder(workflow.DefaultPolicies())

	deps.inventory.On("Validate", mock.Anything, mock.Anything).
		Return(&workflow.ValidateResult{Available: true}, nil)
	deps.inventory.On("Reserve", mock.Anything, mock.Anything, mock.Anything).
		Return(&workflow.ReserveResult{Reserved: true, ReservationID: "res-1"}, nil)
	deps.payment.On("Charge", mock.Anything, mock.Anything).
		Return(nil, &workflow.BusinessError{Service: "payment", Code: "DECLINED", Reason: "insufficient funds"})
	deps.inventory.On("Release", mock.Anything, mock.Anything).Return(nil).Once()

	deps.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Twice()
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evts []*events.Event) bool {
		return len(evts) == 1 && evts[0].EventType == events.OrderCreatedEvent
	})).Return(nil).Once()
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evts []*events.Event) bool {
		return len(evts) == 1 && evts[0].EventType == events.OrderFailedEvent
	})).Return(nil).Once()

	resp, err := uc.Execute(context.Background(), validCreateCommand())

	require.Nil(t, resp)
	var failed *OrderCreationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, workflow.StepProcessPayment, failed.FailedStep)
	assert.True(t, workflow.IsBusiness(failed.Err))

	deps.inventory.AssertExpectations(t)
	deps.notification.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	deps.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	deps.repo.AssertExpectations(t)
	deps.publisher.AssertExpectations(t)
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*CreateOrderCommand)
		expectedError string
	}{
		{
			name:          "missing user ID",
			mutate:        func(cmd *CreateOrderCommand) { cmd.UserID = "" },
			expectedError: "user ID is required",
		},
		{
			name:          "malformed user ID",
			mutate:        func(cmd *CreateOrderCommand) { cmd.UserID = "not-a-uuid" },
			expectedError: "invalid user ID",
		},
		{
			name:          "no items",
			mutate:        func(cmd *CreateOrderCommand) { cmd.Items = nil },
			expectedError: "at least one item is required",
		},
		{
			name:          "missing payment method",
			mutate:        func(cmd *CreateOrderCommand) { cmd.PaymentMethod = "" },
			expectedError: "payment method is required",
		},
		{
			name:          "zero quantity",
			mutate:        func(cmd *CreateOrderCommand) { cmd.Items[0].Quantity = 0 },
			expectedError: "item quantity must be positive",
		},
		{
			name:          "negative price",
			mutate:        func(cmd *CreateOrderCommand) { cmd.Items[0].UnitPrice = -100 },
			expectedError: "item price must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, deps := newCreateOrder(workflow.DefaultPolicies())

			cmd := validCreateCommand()
			tt.mutate(cmd)

			resp, err := uc.Execute(context.Background(), cmd)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.Nil(t, resp)
			deps.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_UnreachableInventoryStillConfirms(t *testing.T) {
	uc, deps := newCreateOrder(workflow.DefaultPolicies())

	connErr := &workflow.ConnectivityError{Service: "inventory", Err: errors.New("connection refused")}
	deps.inventory.On("Validate", mock.Anything, mock.Anything).Return(nil, connErr)
	deps.inventory.On("Reserve", mock.Anything, mock.Anything, mock.Anything).Return(nil, connErr)
	deps.payment.On("Charge", mock.Anything, mock.Anything).
		Return(&workflow.ChargeResult{Success: true, PaymentID: "pay-1", Status: "captured"}, nil)
	deps.notification.On("Send", mock.Anything, mock.Anything).
		Return(&workflow.SendResult{Sent: true}, nil)

	deps.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Twice()
	deps.cache.On("Set", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
	deps.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

	resp, err := uc.Execute(context.Background(), validCreateCommand())

	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusConfirmed), resp.Status)
}
