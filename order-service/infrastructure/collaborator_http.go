package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrimarket/order-system/order-service/workflow"
	"github.com/pkg/errors"
)

// httpCollaborator is the common transport for one downstream service.
// Transport-level failures and gateway statuses are classified as
// connectivity errors; explicit 4xx rejections become business errors.
type httpCollaborator struct {
	service string
	baseURL string
	client  *http.Client
}

func newHTTPCollaborator(service, baseURL string, timeout time.Duration) httpCollaborator {
	return httpCollaborator{
		service: service,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c httpCollaborator) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &workflow.ConnectivityError{Service: c.service, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return &workflow.ConnectivityError{
			Service: c.service,
			Err:     errors.Errorf("upstream returned %d", resp.StatusCode),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		var rejection errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&rejection); err != nil {
			rejection.Error = resp.Status
		}
		return &workflow.BusinessError{
			Service: c.service,
			Code:    orCode(rejection.Code, "REJECTED"),
			Reason:  rejection.Error,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", c.service)
	}

	return nil
}

func orCode(code, fallback string) string {
	if code == "" {
		return fallback
	}
	return code
}
