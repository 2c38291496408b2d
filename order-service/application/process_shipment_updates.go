package application

import (
	"context"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/events"
	"github.com/pkg/errors"
)

// shipmentEventData is the payload published by the logistics service
type shipmentEventData struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	Carrier    string `json:"carrier,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// shipmentStatusByEvent maps logistics events onto order statuses
var shipmentStatusByEvent = map[string]domain.OrderStatus{
	events.ShipmentDispatchedEvent: domain.OrderStatusProcessing,
	events.ShipmentInTransitEvent:  domain.OrderStatusShipped,
	events.ShipmentDeliveredEvent:  domain.OrderStatusDelivered,
}

// ProcessShipmentUpdate use case advances an order's status when the
// logistics service reports shipment progress
type ProcessShipmentUpdate struct {
	updateOrderStatus *UpdateOrderStatus
}

// NewProcessShipmentUpdate creates a new ProcessShipmentUpdate use case
func NewProcessShipmentUpdate(updateOrderStatus *UpdateOrderStatus) *ProcessShipmentUpdate {
	return &ProcessShipmentUpdate{updateOrderStatus: updateOrderStatus}
}

// Execute applies the status transition carried by a shipment event
func (uc *ProcessShipmentUpdate) Execute(ctx context.Context, event *events.Event) error {
	status, ok := shipmentStatusByEvent[event.EventType]
	if !ok {
		return errors.Errorf("unexpected shipment event type: %s", event.EventType)
	}

	var data shipmentEventData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to unmarshal shipment event")
	}
	if data.OrderID == "" {
		return errors.New("shipment event has no order ID")
	}

	_, err := uc.updateOrderStatus.Execute(ctx, &UpdateOrderStatusCommand{
		OrderID:   data.OrderID,
		Status:    string(status),
		ChangedBy: "logistics-service",
		Notes:     data.Notes,
	})
	return err
}
