package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"commerce-app/subscription-service/internal/models"
)

// OrderServiceClient talks to the order service that creates and updates
// orders for this platform.
type OrderServiceClient struct {
	URL string
}

func NewOrderClient(url string) *OrderServiceClient {
	return &OrderServiceClient{URL: url}
}

// CreateOrder submits a renewal order built from a subscription's stored
// template and returns the created order with its assigned id.
func (c *OrderServiceClient) CreateOrder(ctx context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error) {
	payload, err := json.Marshal(map[string]interface{}{"order": order})
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("marshal order: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/orders", bytes.NewBuffer(payload))
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("build create-order request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("order service returned status %d", resp.StatusCode)}
	}

	var created models.OrderTemplate
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("decode order response: %w", err)}
	}
	return &created, nil
}

// UpdateOrder pushes an updated order back, used to link created
// subscription ids into the originating order.
func (c *OrderServiceClient) UpdateOrder(ctx context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error) {
	payload, err := json.Marshal(map[string]interface{}{"order": order})
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("marshal order: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.URL+"/orders/"+order.ID.Hex(), bytes.NewBuffer(payload))
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("build update-order request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("order service returned status %d", resp.StatusCode)}
	}

	var updated models.OrderTemplate
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, &models.ExternalCallError{Service: "orders", Err: fmt.Errorf("decode order response: %w", err)}
	}
	return &updated, nil
}
