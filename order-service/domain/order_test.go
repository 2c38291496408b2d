package domain

import (
	"testing"
	"time"

	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []OrderItem {
	return []OrderItem{
		{
			ID:        models.GenerateUUID(),
			ProductID: models.GenerateUUID(),
			Quantity:  2,
			UnitPrice: models.NewMoney(500, "USD"),
		},
		{
			ID:        models.GenerateUUID(),
			ProductID: models.GenerateUUID(),
			Quantity:  1,
			UnitPrice: models.NewMoney(250, "USD"),
		},
	}
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		items         []OrderItem
		paymentMethod string
		expectedError string
		expectedTotal int64
	}{
		{
			name:          "computes total from items",
			items:         testItems(),
			paymentMethod: "card",
			expectedTotal: 1250,
		},
		{
			name:          "rejects empty item list",
			items:         nil,
			paymentMethod: "card",
			expectedError: "at least one item",
		},
		{
			name: "rejects non-positive quantity",
			items: []OrderItem{
				{ProductID: models.GenerateUUID(), Quantity: 0, UnitPrice: models.NewMoney(100, "USD")},
			},
			paymentMethod: "card",
			expectedError: "quantity must be positive",
		},
		{
			name:          "rejects missing payment method",
			items:         testItems(),
			paymentMethod: "",
			expectedError: "payment method is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := CreateOrder(models.GenerateUUID(), tt.items, tt.paymentMethod, Address{City: "Nairobi"}, "")

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, OrderStatusPending, order.Status)
			assert.Equal(t, tt.expectedTotal, order.TotalAmount.Amount)
			require.Len(t, order.Events(), 1)
			assert.Equal(t, events.OrderCreatedEvent, order.Events()[0].EventType)
		})
	}
}

func TestOrder_ConfirmAndFail(t *testing.T) {
	order, err := CreateOrder(models.GenerateUUID(), testItems(), "card", Address{}, "")
	require.NoError(t, err)

	require.NoError(t, order.Confirm(time.Now()))
	assert.Equal(t, OrderStatusConfirmed, order.Status)

	// Confirm and Fail are only valid from pending.
	assert.Error(t, order.Confirm(time.Now()))
	assert.Error(t, order.Fail("too late"))
}

func TestOrder_CancelGuardsTerminalStatuses(t *testing.T) {
	tests := []struct {
		status    OrderStatus
		cancelErr bool
	}{
		{OrderStatusPending, false},
		{OrderStatusConfirmed, false},
		{OrderStatusProcessing, false},
		{OrderStatusShipped, true},
		{OrderStatusDelivered, true},
		{OrderStatusCancelled, true},
		{OrderStatusRefunded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order, err := CreateOrder(models.GenerateUUID(), testItems(), "card", Address{}, "")
			require.NoError(t, err)
			order.Status = tt.status

			err = order.Cancel("customer request")
			if tt.cancelErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, OrderStatusCancelled, order.Status)
			}
		})
	}
}

func TestOrder_UpdateStatus(t *testing.T) {
	order, err := CreateOrder(models.GenerateUUID(), testItems(), "card", Address{}, "")
	require.NoError(t, err)
	require.NoError(t, order.Confirm(time.Now()))

	require.NoError(t, order.UpdateStatus(OrderStatusShipped, "carrier picked up"))
	assert.Equal(t, OrderStatusShipped, order.Status)

	order.Status = OrderStatusCancelled
	assert.Error(t, order.UpdateStatus(OrderStatusDelivered, ""))
}
