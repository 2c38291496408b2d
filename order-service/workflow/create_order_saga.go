package workflow

import (
	"context"
	"time"

	"github.com/agrimarket/order-system/shared/saga"
	"github.com/pkg/errors"
)

// Step names of the order-creation saga, in execution order.
const (
	StepValidateInventory = "validate_inventory"
	StepReserveInventory  = "reserve_inventory"
	StepProcessPayment    = "process_payment"
	StepCreateOrderRecord = "create_order_record"
	StepSendNotification  = "send_notification"
)

// StepPolicy decides how a step treats an unreachable collaborator.
type StepPolicy int

const (
	// PolicyHardFail propagates connectivity errors and aborts the saga.
	PolicyHardFail StepPolicy = iota
	// PolicyDegrade converts connectivity errors into a synthetic
	// success flagged Simulated, trading consistency for availability.
	PolicyDegrade
	// PolicyBestEffort swallows every failure; the step can never
	// abort the saga.
	PolicyBestEffort
)

// Policies configures the degraded-mode behavior per remote step.
type Policies struct {
	ValidateInventory StepPolicy
	ReserveInventory  StepPolicy
	ProcessPayment    StepPolicy
	SendNotification  StepPolicy
}

// DefaultPolicies degrades inventory steps when the service is down
// but hard-fails payment: confirming an order without a real charge is
// not acceptable by default.
func DefaultPolicies() Policies {
	return Policies{
		ValidateInventory: PolicyDegrade,
		ReserveInventory:  PolicyDegrade,
		ProcessPayment:    PolicyHardFail,
		SendNotification:  PolicyBestEffort,
	}
}

// LegacyPolicies reproduces the historical behavior where an
// unreachable payment service was also simulated. Kept for parity
// with deployments that relied on it.
func LegacyPolicies() Policies {
	p := DefaultPolicies()
	p.ProcessPayment = PolicyDegrade
	return p
}

// OrderData is the input of the order-creation saga.
type OrderData struct {
	OrderID         string
	UserID          string
	Items           []OrderItem
	PaymentMethod   string
	TotalAmount     int64
	Currency        string
	ShippingAddress string
}

// Step outcomes. Simulated marks a synthetic success produced by the
// degraded-mode policy instead of a real collaborator response.

type ValidateOutcome struct {
	Available bool `json:"available"`
	Simulated bool `json:"simulated"`
}

type ReserveOutcome struct {
	Reserved      bool   `json:"reserved"`
	ReservationID string `json:"reservation_id"`
	Simulated     bool   `json:"simulated"`
}

type PaymentOutcome struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Simulated bool   `json:"simulated"`
}

type RecordOutcome struct {
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type NotifyOutcome struct {
	Sent      bool `json:"sent"`
	Simulated bool `json:"simulated"`
}

// OrderCreationWorkflow assembles the five-step saga for one order.
// A workflow instance belongs to a single order-creation attempt and
// must not be shared across attempts.
type OrderCreationWorkflow struct {
	data     OrderData
	clients  Collaborators
	policies Policies
	listener saga.Listener

	confirmedAt     *time.Time
	cancelRequested bool
}

// WorkflowOption configures an OrderCreationWorkflow.
type WorkflowOption func(*OrderCreationWorkflow)

// WithPolicies overrides the default degraded-mode policies.
func WithPolicies(p Policies) WorkflowOption {
	return func(w *OrderCreationWorkflow) {
		w.policies = p
	}
}

// WithListener attaches a saga lifecycle listener.
func WithListener(l saga.Listener) WorkflowOption {
	return func(w *OrderCreationWorkflow) {
		w.listener = l
	}
}

// NewOrderCreationWorkflow creates a workflow for one order.
func NewOrderCreationWorkflow(data OrderData, clients Collaborators, opts ...WorkflowOption) *OrderCreationWorkflow {
	w := &OrderCreationWorkflow{
		data:     data,
		clients:  clients,
		policies: DefaultPolicies(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// BuildOrderCreationSaga is the convenience entry point: it builds a
// workflow with default policies and returns a ready-to-execute saga.
func BuildOrderCreationSaga(data OrderData, clients Collaborators) *saga.Executor {
	return NewOrderCreationWorkflow(data, clients).BuildSaga()
}

// BuildSaga returns a saga executor loaded with the five order-creation
// steps. It does not execute the saga.
func (w *OrderCreationWorkflow) BuildSaga() *saga.Executor {
	return saga.New([]saga.Step{
		w.validateInventoryStep(),
		w.reserveInventoryStep(),
		w.processPaymentStep(),
		w.createOrderRecordStep(),
		w.sendNotificationStep(),
	}, w.listener)
}

// ConfirmedAt returns the confirmation timestamp recorded by
// create_order_record, or nil if the step never ran.
func (w *OrderCreationWorkflow) ConfirmedAt() *time.Time {
	return w.confirmedAt
}

// CancelRequested reports whether create_order_record was compensated,
// signalling the caller to mark the order cancelled.
func (w *OrderCreationWorkflow) CancelRequested() bool {
	return w.cancelRequested
}

func (w *OrderCreationWorkflow) validateInventoryStep() saga.Step {
	return saga.Step{
		Name: StepValidateInventory,
		Execute: func(ctx context.Context) (interface{}, error) {
			result, err := w.clients.Inventory.Validate(ctx, w.data.Items)
			if err != nil {
				if degraded := w.degrade(w.policies.ValidateInventory, err); degraded {
					return ValidateOutcome{Available: true, Simulated: true}, nil
				}
				return nil, err
			}

			if !result.Available {
				return nil, &BusinessError{
					Service: "inventory",
					Code:    "OUT_OF_STOCK",
					Reason:  orDefault(result.Reason, "requested items are not available"),
				}
			}

			return ValidateOutcome{Available: true}, nil
		},
		// Validation mutates nothing, so there is nothing to undo.
		Compensate: nil,
	}
}

func (w *OrderCreationWorkflow) reserveInventoryStep() saga.Step {
	return saga.Step{
		Name: StepReserveInventory,
		Execute: func(ctx context.Context) (interface{}, error) {
			result, err := w.clients.Inventory.Reserve(ctx, w.data.OrderID, w.data.Items)
			if err != nil {
				if degraded := w.degrade(w.policies.ReserveInventory, err); degraded {
					return ReserveOutcome{Reserved: true, Simulated: true}, nil
				}
				return nil, err
			}

			return ReserveOutcome{Reserved: result.Reserved, ReservationID: result.ReservationID}, nil
		},
		Compensate: func(ctx context.Context) error {
			if err := w.clients.Inventory.Release(ctx, w.data.OrderID); err != nil {
				return errors.Wrap(err, "failed to release inventory hold")
			}
			return nil
		},
	}
}

func (w *OrderCreationWorkflow) processPaymentStep() saga.Step {
	return saga.Step{
		Name: StepProcessPayment,
		Execute: func(ctx context.Context) (interface{}, error) {
			result, err := w.clients.Payment.Charge(ctx, ChargeRequest{
				OrderID:       w.data.OrderID,
				UserID:        w.data.UserID,
				Amount:        w.data.TotalAmount,
				Currency:      w.data.Currency,
				PaymentMethod: w.data.PaymentMethod,
			})
			if err != nil {
				if degraded := w.degrade(w.policies.ProcessPayment, err); degraded {
					return PaymentOutcome{Status: "simulated", Simulated: true}, nil
				}
				return nil, err
			}

			return PaymentOutcome{PaymentID: result.PaymentID, Status: result.Status}, nil
		},
		Compensate: func(ctx context.Context) error {
			if err := w.clients.Payment.Refund(ctx, w.data.OrderID); err != nil {
				return errors.Wrap(err, "failed to refund charge")
			}
			return nil
		},
	}
}

func (w *OrderCreationWorkflow) createOrderRecordStep() saga.Step {
	return saga.Step{
		Name: StepCreateOrderRecord,
		Execute: func(ctx context.Context) (interface{}, error) {
			// Purely local: persistence is the caller's responsibility,
			// this step only records the confirmation intent.
			now := time.Now()
			w.confirmedAt = &now

			return RecordOutcome{
				OrderID:     w.data.OrderID,
				Status:      "confirmed",
				ConfirmedAt: now,
			}, nil
		},
		Compensate: func(ctx context.Context) error {
			w.cancelRequested = true
			return nil
		},
	}
}

func (w *OrderCreationWorkflow) sendNotificationStep() saga.Step {
	return saga.Step{
		Name: StepSendNotification,
		Execute: func(ctx context.Context) (interface{}, error) {
			result, err := w.clients.Notification.Send(ctx, NotificationRequest{
				Type:   "order_confirmation",
				UserID: w.data.UserID,
				Data: map[string]interface{}{
					"order_id":     w.data.OrderID,
					"total_amount": w.data.TotalAmount,
					"currency":     w.data.Currency,
				},
			})
			if err != nil {
				if degraded := w.degrade(w.policies.SendNotification, err); degraded {
					return NotifyOutcome{Sent: false, Simulated: true}, nil
				}
				return nil, err
			}

			return NotifyOutcome{Sent: result.Sent}, nil
		},
		// A sent notification cannot be retracted.
		Compensate: nil,
	}
}

// degrade decides whether an error is converted into a synthetic
// success under the given policy.
func (w *OrderCreationWorkflow) degrade(policy StepPolicy, err error) bool {
	switch policy {
	case PolicyBestEffort:
		return true
	case PolicyDegrade:
		return IsConnectivity(err)
	default:
		return false
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
