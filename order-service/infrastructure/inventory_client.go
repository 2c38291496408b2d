package infrastructure

import (
	"context"
	"time"

	"github.com/agrimarket/order-system/order-service/workflow"
)

var _ workflow.InventoryClient = (*HTTPInventoryClient)(nil)

// HTTPInventoryClient talks to the inventory service. Inventory calls
// carry a short deadline: they sit on the critical path of every order.
type HTTPInventoryClient struct {
	httpCollaborator
}

// NewHTTPInventoryClient creates an inventory client for the given base URL
func NewHTTPInventoryClient(baseURL string, timeout time.Duration) *HTTPInventoryClient {
	return &HTTPInventoryClient{
		httpCollaborator: newHTTPCollaborator("inventory", baseURL, timeout),
	}
}

type validateRequest struct {
	Items []workflow.OrderItem `json:"items"`
}

type reserveRequest struct {
	OrderID string               `json:"order_id"`
	Items   []workflow.OrderItem `json:"items"`
}

type releaseRequest struct {
	OrderID string `json:"order_id"`
}

// Validate asks whether the requested items are available
func (c *HTTPInventoryClient) Validate(ctx context.Context, items []workflow.OrderItem) (*workflow.ValidateResult, error) {
	var result workflow.ValidateResult
	if err := c.postJSON(ctx, "/api/inventory/validate", validateRequest{Items: items}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reserve places a hold keyed by the order id
func (c *HTTPInventoryClient) Reserve(ctx context.Context, orderID string, items []workflow.OrderItem) (*workflow.ReserveResult, error) {
	var result workflow.ReserveResult
	if err := c.postJSON(ctx, "/api/inventory/reserve", reserveRequest{OrderID: orderID, Items: items}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Release releases the hold for the order id
func (c *HTTPInventoryClient) Release(ctx context.Context, orderID string) error {
	return c.postJSON(ctx, "/api/inventory/release", releaseRequest{OrderID: orderID}, nil)
}
