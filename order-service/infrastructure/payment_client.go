package infrastructure

import (
	"context"
	"time"

	"github.com/agrimarket/order-system/order-service/workflow"
)

var _ workflow.PaymentClient = (*HTTPPaymentClient)(nil)

// HTTPPaymentClient talks to the payment service. Payment calls carry
// a longer deadline than inventory: gateway captures are slow.
type HTTPPaymentClient struct {
	httpCollaborator
}

// NewHTTPPaymentClient creates a payment client for the given base URL
func NewHTTPPaymentClient(baseURL string, timeout time.Duration) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		httpCollaborator: newHTTPCollaborator("payment", baseURL, timeout),
	}
}

type chargeResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

type refundRequest struct {
	OrderID string `json:"order_id"`
}

// Charge captures the buyer's payment for the order total
func (c *HTTPPaymentClient) Charge(ctx context.Context, req workflow.ChargeRequest) (*workflow.ChargeResult, error) {
	var resp chargeResponse
	if err := c.postJSON(ctx, "/api/payments/charge", req, &resp); err != nil {
		return nil, err
	}

	// An explicit decline arrives as a 200 with success=false.
	if !resp.Success {
		return nil, &workflow.BusinessError{
			Service: "payment",
			Code:    orCode(resp.Code, "DECLINED"),
			Reason:  orReason(resp.Error, "payment declined"),
		}
	}

	return &workflow.ChargeResult{
		Success:   resp.Success,
		PaymentID: resp.PaymentID,
		Status:    resp.Status,
	}, nil
}

// Refund reverses the charge for the order
func (c *HTTPPaymentClient) Refund(ctx context.Context, orderID string) error {
	return c.postJSON(ctx, "/api/payments/refund", refundRequest{OrderID: orderID}, nil)
}

func orReason(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
