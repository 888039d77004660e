package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payrouter/internal/config"
)

const circleDefaultBaseURL = "https://api.circle.com"

// CircleClient is a minimal Circle API client, used to look up incoming
// transfers on managed wallets.
type CircleClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCircleClient(cfg config.CircleConfig) *CircleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = circleDefaultBaseURL
	}
	return &CircleClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CircleTransfer is the subset of Circle's transfer object we use.
type CircleTransfer struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Destination struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Address string `json:"address"`
		Chain   string `json:"chain"`
	} `json:"destination"`
	TransactionHash string `json:"transactionHash"`
}

// GetTransfer fetches a transfer by id.
func (c *CircleClient) GetTransfer(ctx context.Context, transferID string) (*CircleTransfer, error) {
	reqURL := fmt.Sprintf("%s/v1/transfers/%s", c.baseURL, transferID)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Circle API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var wrapper struct {
		Data CircleTransfer `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &wrapper.Data, nil
}
