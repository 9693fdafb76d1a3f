package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"commerce-app/subscription-service/internal/models"
)

// AgreementResult is the payment provider's view of a billing agreement
// after a suspend or reactivate call.
type AgreementResult struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// BillingServiceClient drives the external payment provider's recurring
// billing agreements through the platform's billing gateway.
type BillingServiceClient struct {
	URL string
}

func NewBillingClient(url string) *BillingServiceClient {
	return &BillingServiceClient{URL: url}
}

func (c *BillingServiceClient) SuspendAgreement(ctx context.Context, agreementID string) (*AgreementResult, error) {
	return c.post(ctx, agreementID, "suspend")
}

func (c *BillingServiceClient) ReactivateAgreement(ctx context.Context, agreementID string) (*AgreementResult, error) {
	return c.post(ctx, agreementID, "reactivate")
}

func (c *BillingServiceClient) post(ctx context.Context, agreementID, action string) (*AgreementResult, error) {
	url := fmt.Sprintf("%s/agreements/%s/%s", c.URL, agreementID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, &models.ExternalCallError{Service: "billing", Err: fmt.Errorf("build %s request: %w", action, err)}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &models.ExternalCallError{Service: "billing", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.ExternalCallError{Service: "billing", Err: fmt.Errorf("billing service returned status %d", resp.StatusCode)}
	}

	var result AgreementResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &models.ExternalCallError{Service: "billing", Err: fmt.Errorf("decode agreement response: %w", err)}
	}
	return &result, nil
}
