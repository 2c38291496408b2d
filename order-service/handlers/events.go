package handlers

import (
	"context"
	"log"

	"github.com/agrimarket/order-system/order-service/application"
	"github.com/agrimarket/order-system/shared/events"
)

// OrderEventHandlers routes subscribed events to application use cases
type OrderEventHandlers struct {
	processShipmentUpdate *application.ProcessShipmentUpdate
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(processShipmentUpdate *application.ProcessShipmentUpdate) *OrderEventHandlers {
	return &OrderEventHandlers{processShipmentUpdate: processShipmentUpdate}
}

// Handle implements the events.EventHandler interface
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.ShipmentDispatchedEvent, events.ShipmentInTransitEvent, events.ShipmentDeliveredEvent:
		return h.handleShipmentUpdate(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *OrderEventHandlers) HandlerID() string {
	return "order-service-event-handler"
}

func (h *OrderEventHandlers) handleShipmentUpdate(ctx context.Context, event *events.Event) error {
	if err := h.processShipmentUpdate.Execute(ctx, event); err != nil {
		log.Printf("failed to process shipment update %s: %v", event.ID, err)
		return err
	}
	return nil
}
