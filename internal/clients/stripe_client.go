package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payrouter/internal/config"

	"github.com/shopspring/decimal"
)

const stripeBaseURL = "https://api.stripe.com/v1"

// StripeClient is a minimal Stripe API client covering checkout sessions
// and connected-account payouts.
type StripeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewStripeClient creates the Stripe client. In test mode the test key is
// used even when a live key is configured.
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	apiKey := cfg.LiveAPIKey
	if cfg.TestMode || apiKey == "" {
		apiKey = cfg.APIKey
	}
	return &StripeClient{
		baseURL: stripeBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CheckoutSession is the subset of Stripe's checkout session object we use.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

// CheckoutSessionRequest describes a card payment collected for a transfer.
type CheckoutSessionRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// CreateCheckoutSession opens a hosted card payment page whose funds settle
// to the connected account.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	// Stripe amounts are in the currency's smallest unit.
	unitAmount := req.Amount.Shift(2).Round(0)

	params := url.Values{}
	params.Add("mode", "payment")
	params.Add("line_items[0][quantity]", "1")
	params.Add("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	params.Add("line_items[0][price_data][unit_amount]", unitAmount.String())
	params.Add("line_items[0][price_data][product_data][name]", req.Description)
	params.Add("payment_intent_data[transfer_data][destination]", req.AccountID)
	params.Add("success_url", req.SuccessURL)
	params.Add("cancel_url", req.CancelURL)

	var session CheckoutSession
	if err := c.do(ctx, "POST", "/checkout/sessions", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession fetches an existing checkout session.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, "GET", "/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// StripeAccount is the subset of Stripe's connected account object we use.
type StripeAccount struct {
	ID               string `json:"id"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// GetAccount fetches a connected account.
func (c *StripeClient) GetAccount(ctx context.Context, accountID string) (*StripeAccount, error) {
	var account StripeAccount
	if err := c.do(ctx, "GET", "/accounts/"+accountID, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	var body io.Reader
	reqURL := c.baseURL + path
	if params != nil {
		if method == "GET" {
			reqURL += "?" + params.Encode()
		} else {
			body = strings.NewReader(params.Encode())
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Stripe API error (status %d): %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
