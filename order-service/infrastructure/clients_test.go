package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrimarket/order-system/order-service/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPInventoryClient_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		closed         bool
		isConnectivity bool
		isBusiness     bool
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"available": true}`))
			},
		},
		{
			name:           "connection refused",
			closed:         true,
			isConnectivity: true,
		},
		{
			name: "gateway error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			isConnectivity: true,
		},
		{
			name: "explicit rejection",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"error": "insufficient stock", "code": "OUT_OF_STOCK"}`))
			},
			isBusiness: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			if tt.closed {
				server.Close()
			} else {
				defer server.Close()
			}

			client := NewHTTPInventoryClient(server.URL, time.Second)
			result, err := client.Validate(context.Background(), []workflow.OrderItem{{ProductID: "P-1", Quantity: 1, Price: 100}})

			switch {
			case tt.isConnectivity:
				require.Error(t, err)
				assert.True(t, workflow.IsConnectivity(err))
			case tt.isBusiness:
				require.Error(t, err)
				assert.True(t, workflow.IsBusiness(err))
			default:
				require.NoError(t, err)
				assert.True(t, result.Available)
			}
		})
	}
}

func TestHTTPPaymentClient_DeclineIsBusinessError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "card declined", "code": "DECLINED"}`))
	}))
	defer server.Close()

	client := NewHTTPPaymentClient(server.URL, time.Second)
	_, err := client.Charge(context.Background(), workflow.ChargeRequest{OrderID: "ORD-1", Amount: 1000, Currency: "USD"})

	require.Error(t, err)
	assert.True(t, workflow.IsBusiness(err))
	assert.False(t, workflow.IsConnectivity(err))
	assert.Contains(t, err.Error(), "card declined")
}

func TestHTTPPaymentClient_ChargeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/charge", r.URL.Path)
		w.Write([]byte(`{"success": true, "payment_id": "PAY-9", "status": "captured"}`))
	}))
	defer server.Close()

	client := NewHTTPPaymentClient(server.URL, time.Second)
	result, err := client.Charge(context.Background(), workflow.ChargeRequest{OrderID: "ORD-1", Amount: 1000, Currency: "USD"})

	require.NoError(t, err)
	assert.Equal(t, "PAY-9", result.PaymentID)
	assert.Equal(t, "captured", result.Status)
}
