package workflow

import (
	"context"
	"testing"

	"github.com/agrimarket/order-system/shared/saga"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInventory, fakePayment and fakeNotification record their calls
// and fail according to the configured errors.

type fakeInventory struct {
	validateErr  error
	reserveErr   error
	releaseErr   error
	available    bool
	releaseCalls []string
}

func (f *fakeInventory) Validate(ctx context.Context, items []OrderItem) (*ValidateResult, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &ValidateResult{Available: f.available}, nil
}

func (f *fakeInventory) Reserve(ctx context.Context, orderID string, items []OrderItem) (*ReserveResult, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	return &ReserveResult{Reserved: true, ReservationID: "RES-" + orderID}, nil
}

func (f *fakeInventory) Release(ctx context.Context, orderID string) error {
	f.releaseCalls = append(f.releaseCalls, orderID)
	return f.releaseErr
}

type fakePayment struct {
	chargeErr   error
	refundErr   error
	refundCalls []string
}

func (f *fakePayment) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return &ChargeResult{Success: true, PaymentID: "PAY-" + req.OrderID, Status: "captured"}, nil
}

func (f *fakePayment) Refund(ctx context.Context, orderID string) error {
	f.refundCalls = append(f.refundCalls, orderID)
	return f.refundErr
}

type fakeNotification struct {
	sendErr   error
	sendCalls int
}

func (f *fakeNotification) Send(ctx context.Context, req NotificationRequest) (*SendResult, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &SendResult{Sent: true}, nil
}

func testOrderData() OrderData {
	return OrderData{
		OrderID:       "ORD-1",
		UserID:        "U-1",
		Items:         []OrderItem{{ProductID: "P-1", Quantity: 2, Price: 500}},
		PaymentMethod: "card",
		TotalAmount:   1000,
		Currency:      "USD",
	}
}

func healthyClients() (Collaborators, *fakeInventory, *fakePayment, *fakeNotification) {
	inventory := &fakeInventory{available: true}
	payment := &fakePayment{}
	notification := &fakeNotification{}
	return Collaborators{
		Inventory:    inventory,
		Payment:      payment,
		Notification: notification,
	}, inventory, payment, notification
}

func connectivityErr(service string) error {
	return &ConnectivityError{Service: service, Err: errors.New("connection refused")}
}

func TestOrderCreationSaga_AllCollaboratorsHealthy(t *testing.T) {
	clients, inventory, payment, notification := healthyClients()

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	result := wf.BuildSaga().Execute(context.Background())

	require.True(t, result.Success)
	assert.Equal(t, []string{
		StepValidateInventory,
		StepReserveInventory,
		StepProcessPayment,
		StepCreateOrderRecord,
		StepSendNotification,
	}, result.StepNames())

	reserve := result.Steps[1].Outcome.(ReserveOutcome)
	assert.Equal(t, "RES-ORD-1", reserve.ReservationID)
	assert.False(t, reserve.Simulated)

	charge := result.Steps[2].Outcome.(PaymentOutcome)
	assert.Equal(t, "PAY-ORD-1", charge.PaymentID)

	assert.NotNil(t, wf.ConfirmedAt())
	assert.False(t, wf.CancelRequested())
	assert.Equal(t, 1, notification.sendCalls)
	assert.Empty(t, inventory.releaseCalls)
	assert.Empty(t, payment.refundCalls)
}

func TestOrderCreationSaga_PaymentDeclineCompensates(t *testing.T) {
	clients, inventory, payment, _ := healthyClients()
	payment.chargeErr = &BusinessError{Service: "payment", Code: "DECLINED", Reason: "card declined"}

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	result := wf.BuildSaga().Execute(context.Background())

	require.False(t, result.Success)
	require.Error(t, result.Err)
	assert.True(t, IsBusiness(result.Err))

	// Trace stops at the failing step.
	assert.Equal(t, []string{
		StepValidateInventory,
		StepReserveInventory,
		StepProcessPayment,
	}, result.StepNames())

	// The reservation hold is released exactly once; validation has no
	// compensation and nothing later ever ran.
	assert.Equal(t, []string{"ORD-1"}, inventory.releaseCalls)
	assert.Empty(t, payment.refundCalls)
	assert.Nil(t, wf.ConfirmedAt())
	assert.False(t, wf.CancelRequested())
}

func TestOrderCreationSaga_UnreachableInventoryDegrades(t *testing.T) {
	clients, _, _, _ := healthyClients()
	clients.Inventory = &fakeInventory{
		validateErr: connectivityErr("inventory"),
		reserveErr:  connectivityErr("inventory"),
	}

	var started []string
	wf := NewOrderCreationWorkflow(testOrderData(), clients, WithListener(saga.Listener{
		StepStarted: func(name string) { started = append(started, name) },
	}))
	result := wf.BuildSaga().Execute(context.Background())

	require.True(t, result.Success)

	validate := result.Steps[0].Outcome.(ValidateOutcome)
	assert.True(t, validate.Simulated)
	assert.True(t, validate.Available)

	reserve := result.Steps[1].Outcome.(ReserveOutcome)
	assert.True(t, reserve.Simulated)
	assert.Empty(t, reserve.ReservationID)

	// The saga still reaches the payment step.
	assert.Contains(t, started, StepProcessPayment)
}

func TestOrderCreationSaga_UnreachablePaymentHardFailsByDefault(t *testing.T) {
	clients, inventory, _, _ := healthyClients()
	clients.Payment = &fakePayment{chargeErr: connectivityErr("payment")}

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	result := wf.BuildSaga().Execute(context.Background())

	require.False(t, result.Success)
	assert.True(t, IsConnectivity(result.Err))
	assert.Equal(t, []string{"ORD-1"}, inventory.releaseCalls)
}

func TestOrderCreationSaga_UnreachablePaymentSimulatedUnderLegacyPolicy(t *testing.T) {
	clients, _, _, _ := healthyClients()
	clients.Payment = &fakePayment{chargeErr: connectivityErr("payment")}

	wf := NewOrderCreationWorkflow(testOrderData(), clients, WithPolicies(LegacyPolicies()))
	result := wf.BuildSaga().Execute(context.Background())

	require.True(t, result.Success)
	charge := result.Steps[2].Outcome.(PaymentOutcome)
	assert.True(t, charge.Simulated)
	assert.Equal(t, "simulated", charge.Status)
}

func TestOrderCreationSaga_ExplicitlyUnavailableStockAborts(t *testing.T) {
	clients, inventory, payment, notification := healthyClients()
	inventory.available = false

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	result := wf.BuildSaga().Execute(context.Background())

	require.False(t, result.Success)
	assert.True(t, IsBusiness(result.Err))
	assert.Equal(t, []string{StepValidateInventory}, result.StepNames())

	// Nothing to compensate: no hold was placed, no charge attempted.
	assert.Empty(t, inventory.releaseCalls)
	assert.Empty(t, payment.refundCalls)
	assert.Equal(t, 0, notification.sendCalls)
}

func TestOrderCreationSaga_NotificationFailureIsBestEffort(t *testing.T) {
	clients, _, payment, _ := healthyClients()
	clients.Notification = &fakeNotification{sendErr: errors.New("template rendering failed")}

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	result := wf.BuildSaga().Execute(context.Background())

	require.True(t, result.Success)
	notify := result.Steps[4].Outcome.(NotifyOutcome)
	assert.False(t, notify.Sent)
	assert.True(t, notify.Simulated)
	assert.Empty(t, payment.refundCalls)
}

func TestOrderCreationSaga_RefundFailureDoesNotStopCompensation(t *testing.T) {
	clients, inventory, payment, _ := healthyClients()
	payment.refundErr = errors.New("payment unreachable")

	wf := NewOrderCreationWorkflow(testOrderData(), clients)
	executor := wf.BuildSaga()

	// Force a failure after the payment step by appending a step that
	// always fails; the five workflow steps before it all succeed.
	require.NoError(t, executor.AddStep(saga.Step{
		Name: "persist_audit_trail",
		Execute: func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("audit store down")
		},
	}))

	result := executor.Execute(context.Background())

	require.False(t, result.Success)
	// The refund attempt fails, but the walk continues: the earlier
	// reservation hold is still released.
	assert.Equal(t, []string{"ORD-1"}, payment.refundCalls)
	assert.Equal(t, []string{"ORD-1"}, inventory.releaseCalls)
	assert.True(t, wf.CancelRequested())
}
