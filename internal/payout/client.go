package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/euras-play/backend/internal/config"
)

// Client talks to the external on-chain payout service: a narrow endpoint
// that moves winnings from the master vault to a player wallet. The transfer
// mechanics (chain, signing) live entirely on the other side of this call.
type Client struct {
	serviceURL string
	authSecret string
	httpClient *http.Client
}

// Default is the package-level default client
var Default *Client

// NewClient creates a payout client, or nil when the service is not
// configured (callers fall back to mock mode).
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || cfg.PayoutServiceURL == "" || cfg.PayoutAuthSecret == "" {
		log.Printf("[PAYOUT] Payout service not configured - skipping initialization")
		return nil
	}

	return &Client{
		serviceURL: strings.TrimRight(cfg.PayoutServiceURL, "/"),
		authSecret: cfg.PayoutAuthSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetDefault sets the package-level default client
func SetDefault(c *Client) {
	Default = c
}

// TransferRequest is the payout order sent to the service.
type TransferRequest struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Secret    string  `json:"secret"`
}

// TransferResponse is the service's reply.
type TransferResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Signature string `json:"signature,omitempty"`
}

// Transfer sends amount to the recipient wallet.
func (c *Client) Transfer(ctx context.Context, recipient string, amount float64) (*TransferResponse, error) {
	if recipient == "" || amount <= 0 {
		return nil, fmt.Errorf("invalid payout parameters: recipient=%q amount=%.4f", recipient, amount)
	}

	payload, err := json.Marshal(TransferRequest{
		Recipient: recipient,
		Amount:    amount,
		Secret:    c.authSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.serviceURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[PAYOUT] Sending %.4f to %s", amount, recipient)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out TransferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payout response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !out.Success {
		log.Printf("[PAYOUT] Transfer rejected: status=%d message=%s", resp.StatusCode, out.Message)
		return &out, fmt.Errorf("payout rejected: %s", out.Message)
	}

	log.Printf("[PAYOUT] Transfer confirmed: signature=%s", out.Signature)
	return &out, nil
}
