package application

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/order-service/workflow"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/agrimarket/order-system/shared/saga"
	"github.com/agrimarket/order-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// CreateOrderCommand represents the command to create an order
type CreateOrderCommand struct {
	UserID          string           `json:"user_id"`
	Items           []OrderItemInput `json:"items"`
	PaymentMethod   string           `json:"payment_method"`
	ShippingAddress domain.Address   `json:"shipping_address"`
	Notes           string           `json:"notes,omitempty"`
}

// OrderItemInput is one requested line item
type OrderItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     string   `json:"order_id"`
	Status      string   `json:"status"`
	TotalAmount int64    `json:"total_amount"`
	Currency    string   `json:"currency"`
	Steps       []string `json:"steps"`
}

// OrderCreationFailedError is returned when the creation workflow
// aborts and compensates. The order is persisted as failed.
type OrderCreationFailedError struct {
	OrderID    string
	FailedStep string
	Err        error
}

func (e *OrderCreationFailedError) Error() string {
	return fmt.Sprintf("order creation failed at %s: %v", e.FailedStep, e.Err)
}

func (e *OrderCreationFailedError) Unwrap() error {
	return e.Err
}

// CreateOrder use case. It persists the order as pending, drives the
// order-creation saga against the collaborator services, and finalizes
// the order as confirmed or failed depending on the outcome.
type CreateOrder struct {
	orderRepository domain.OrderRepository
	orderCache      OrderCache
	eventPublisher  events.Publisher
	collaborators   workflow.Collaborators
	policies        workflow.Policies
}

// NewCreateOrder creates a new CreateOrder use case
func NewCreateOrder(
	orderRepository domain.OrderRepository,
	orderCache OrderCache,
	eventPublisher events.Publisher,
	collaborators workflow.Collaborators,
	policies workflow.Policies,
) *CreateOrder {
	return &CreateOrder{
		orderRepository: orderRepository,
		orderCache:      orderCache,
		eventPublisher:  eventPublisher,
		collaborators:   collaborators,
		policies:        policies,
	}
}

// Execute executes the create order use case
func (uc *CreateOrder) Execute(ctx context.Context, cmd *CreateOrderCommand) (*CreateOrderResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "create_order")
	defer span.End()

	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	userID, err := models.NewID(cmd.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user ID")
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, input := range cmd.Items {
		items = append(items, domain.OrderItem{
			ID:        models.GenerateUUID(),
			ProductID: models.ID(input.ProductID),
			Quantity:  input.Quantity,
			UnitPrice: models.NewMoney(input.UnitPrice, input.Currency),
		})
	}

	order, err := domain.CreateOrder(userID, items, cmd.PaymentMethod, cmd.ShippingAddress, cmd.Notes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish events")
	}
	order.ClearEvents()

	wf := workflow.NewOrderCreationWorkflow(
		uc.orderData(order),
		uc.collaborators,
		workflow.WithPolicies(uc.policies),
		workflow.WithListener(sagaListener(ctx, order.ID.String())),
	)

	result := wf.BuildSaga().Execute(ctx)

	if !result.Success {
		return nil, uc.finalizeFailed(ctx, order, result)
	}

	return uc.finalizeConfirmed(ctx, order, wf, result)
}

func (uc *CreateOrder) finalizeConfirmed(ctx context.Context, order *domain.Order, wf *workflow.OrderCreationWorkflow, result saga.Result) (*CreateOrderResponse, error) {
	confirmedAt := time.Now()
	if at := wf.ConfirmedAt(); at != nil {
		confirmedAt = *at
	}

	if err := order.Confirm(confirmedAt); err != nil {
		return nil, errors.Wrap(err, "failed to confirm order")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save confirmed order")
	}

	if err := uc.orderCache.Set(ctx, order); err != nil {
		log.Printf("failed to cache order %s: %v", order.ID, err)
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish events")
	}
	order.ClearEvents()

	telemetry.RecordCounter(ctx, "orders_created_total", "Orders confirmed through the creation workflow", 1,
		attribute.String("payment_method", order.PaymentMethod))

	return &CreateOrderResponse{
		OrderID:     order.ID.String(),
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount.Amount,
		Currency:    order.TotalAmount.Currency,
		Steps:       result.StepNames(),
	}, nil
}

func (uc *CreateOrder) finalizeFailed(ctx context.Context, order *domain.Order, result saga.Result) error {
	failedStep := ""
	if n := len(result.Steps); n > 0 {
		failedStep = result.Steps[n-1].Name
	}

	if err := order.Fail(result.Err.Error()); err != nil {
		return errors.Wrap(err, "failed to mark order failed")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to save failed order")
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		log.Printf("failed to publish failure events for order %s: %v", order.ID, err)
	}
	order.ClearEvents()

	telemetry.RecordCounter(ctx, "orders_failed_total", "Orders aborted by the creation workflow", 1,
		attribute.String("failed_step", failedStep))

	return &OrderCreationFailedError{
		OrderID:    order.ID.String(),
		FailedStep: failedStep,
		Err:        result.Err,
	}
}

func (uc *CreateOrder) orderData(order *domain.Order) workflow.OrderData {
	items := make([]workflow.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, workflow.OrderItem{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.UnitPrice.Amount,
		})
	}

	return workflow.OrderData{
		OrderID:         order.ID.String(),
		UserID:          order.UserID.String(),
		Items:           items,
		PaymentMethod:   order.PaymentMethod,
		TotalAmount:     order.TotalAmount.Amount,
		Currency:        order.TotalAmount.Currency,
		ShippingAddress: fmt.Sprintf("%s, %s %s", order.ShippingAddress.Line1, order.ShippingAddress.City, order.ShippingAddress.PostalCode),
	}
}

func (uc *CreateOrder) validateCommand(cmd *CreateOrderCommand) error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}

	if len(cmd.Items) == 0 {
		return errors.New("at least one item is required")
	}

	if cmd.PaymentMethod == "" {
		return errors.New("payment method is required")
	}

	for _, item := range cmd.Items {
		if item.ProductID == "" {
			return errors.New("product ID is required")
		}
		if item.Quantity <= 0 {
			return errors.New("item quantity must be positive")
		}
		if item.UnitPrice <= 0 {
			return errors.New("item price must be positive")
		}
		if item.Currency == "" {
			return errors.New("item currency is required")
		}
	}

	return nil
}

// sagaListener wires workflow lifecycle callbacks into logs and metrics
func sagaListener(ctx context.Context, orderID string) saga.Listener {
	return saga.Listener{
		StepStarted: func(name string) {
			log.Printf("order %s: step %s started", orderID, name)
		},
		StepCompleted: func(name string, outcome interface{}) {
			log.Printf("order %s: step %s completed", orderID, name)
			telemetry.RecordCounter(ctx, "saga_steps_completed_total", "Completed order-creation saga steps", 1,
				attribute.String("step", name))
		},
		SagaFailed: func(name string, err error) {
			log.Printf("order %s: step %s failed: %v", orderID, name, err)
		},
		CompensationStarted: func(name string) {
			log.Printf("order %s: compensating %s", orderID, name)
		},
		CompensationFinished: func(name string, err error) {
			if err != nil {
				log.Printf("order %s: compensation for %s failed: %v", orderID, name, err)
				telemetry.RecordCounter(ctx, "saga_compensations_failed_total", "Failed order-creation compensations", 1,
					attribute.String("step", name))
				return
			}
			log.Printf("order %s: compensation for %s finished", orderID, name)
		},
	}
}
