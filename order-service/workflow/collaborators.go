package workflow

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ConnectivityError marks a collaborator call that failed because the
// service was unreachable (connection refused, timeout, gateway
// errors). Steps may convert it to a degraded success depending on
// their policy.
type ConnectivityError struct {
	Service string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s service unreachable: %v", e.Service, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// BusinessError marks an explicit rejection from a collaborator, such
// as unavailable stock or a declined payment. Business errors always
// abort the saga.
type BusinessError struct {
	Service string
	Code    string
	Reason  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s rejected request (%s): %s", e.Service, e.Code, e.Reason)
}

// IsConnectivity reports whether err is (or wraps) a ConnectivityError
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// IsBusiness reports whether err is (or wraps) a BusinessError
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// OrderItem is a line item as seen by the collaborators
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// ValidateResult is the inventory validation response
type ValidateResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ReserveResult is the inventory reservation response
type ReserveResult struct {
	Reserved      bool   `json:"reserved"`
	ReservationID string `json:"reservation_id"`
}

// ChargeRequest asks the payment collaborator to charge the buyer
type ChargeRequest struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

// ChargeResult is the payment capture response
type ChargeResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// NotificationRequest asks the notification collaborator to inform a user
type NotificationRequest struct {
	Type   string                 `json:"type"`
	UserID string                 `json:"user_id"`
	Data   map[string]interface{} `json:"data"`
}

// SendResult is the notification response
type SendResult struct {
	Sent bool `json:"sent"`
}

// InventoryClient is the inventory collaborator boundary
type InventoryClient interface {
	Validate(ctx context.Context, items []OrderItem) (*ValidateResult, error)
	Reserve(ctx context.Context, orderID string, items []OrderItem) (*ReserveResult, error)
	Release(ctx context.Context, orderID string) error
}

// PaymentClient is the payment collaborator boundary
type PaymentClient interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, orderID string) error
}

// NotificationClient is the notification collaborator boundary
type NotificationClient interface {
	Send(ctx context.Context, req NotificationRequest) (*SendResult, error)
}

// Collaborators bundles the downstream service boundaries the
// order-creation workflow talks to
type Collaborators struct {
	Inventory    InventoryClient
	Payment      PaymentClient
	Notification NotificationClient
}
