package infrastructure

import (
	"context"
	"time"

	"github.com/agrimarket/order-system/order-service/workflow"
)

var _ workflow.NotificationClient = (*HTTPNotificationClient)(nil)

// HTTPNotificationClient talks to the notification service
type HTTPNotificationClient struct {
	httpCollaborator
}

// NewHTTPNotificationClient creates a notification client for the given base URL
func NewHTTPNotificationClient(baseURL string, timeout time.Duration) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		httpCollaborator: newHTTPCollaborator("notification", baseURL, timeout),
	}
}

// Send asks the notification service to inform the user
func (c *HTTPNotificationClient) Send(ctx context.Context, req workflow.NotificationRequest) (*workflow.SendResult, error) {
	var result workflow.SendResult
	if err := c.postJSON(ctx, "/api/notifications/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
