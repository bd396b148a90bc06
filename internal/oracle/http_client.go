package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient implements Client against the oracle's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTPClient
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type requestRandomnessRequest struct {
	EventID string `json:"eventId"`
}

type requestRandomnessResponse struct {
	RequestID string `json:"requestId"`
}

type pollFulfillmentResponse struct {
	Fulfilled   bool     `json:"fulfilled"`
	RandomWords []string `json:"randomWords"`
}

// RequestRandomness submits a randomness request keyed by eventID
func (c *HTTPClient) RequestRandomness(ctx context.Context, eventID string) (string, error) {
	body, err := json.Marshal(requestRandomnessRequest{EventID: eventID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/randomness", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("oracle request returned status %d", resp.StatusCode)
	}

	var parsed requestRandomnessResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if parsed.RequestID == "" {
		return "", fmt.Errorf("oracle returned an empty request handle for event %s", eventID)
	}
	return parsed.RequestID, nil
}

// PollFulfillment checks whether a randomness request has been fulfilled
func (c *HTTPClient) PollFulfillment(ctx context.Context, requestID string) ([]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/randomness/"+requestID, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("oracle poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("oracle poll returned status %d", resp.StatusCode)
	}

	var parsed pollFulfillmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if !parsed.Fulfilled {
		return nil, false, nil
	}
	return parsed.RandomWords, true, nil
}
