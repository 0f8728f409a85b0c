// Package oracle holds the HTTP clients for the external token contract
// service and the native-currency vault. The ledger treats both as
// oracles and sinks; it never reimplements their accounting.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/config"
)

// TokenClient talks to the fungible-token contract service.
type TokenClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTokenClient creates a new token contract client
func NewTokenClient(cfg config.OracleConfig) *TokenClient {
	return &TokenClient{
		baseURL: cfg.TokenURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

type transferRequest struct {
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}

type transferResponse struct {
	Success bool `json:"success"`
}

type mintRequest struct {
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}

// BalanceOf reads the on-hand token balance of an account.
func (c *TokenClient) BalanceOf(ctx context.Context, account string) (uint64, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/balance", c.baseURL, url.PathEscape(account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("token contract returned status %d", resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}

	return body.Balance, nil
}

// Transfer asks the token contract to move amount units to the recipient.
// Anything short of an explicit success is a failed transfer.
func (c *TokenClient) Transfer(ctx context.Context, to string, amount uint64, reference string) error {
	payload, err := json.Marshal(transferRequest{To: to, Amount: amount, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", entities.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token contract returned status %d", entities.ErrTransferFailed, resp.StatusCode)
	}

	var body transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: undecodable transfer response", entities.ErrTransferFailed)
	}
	if !body.Success {
		return fmt.Errorf("%w: token contract rejected transfer", entities.ErrTransferFailed)
	}

	return nil
}

// Mint forwards a privileged mint request to the token contract.
func (c *TokenClient) Mint(ctx context.Context, amount uint64, reference string) error {
	payload, err := json.Marshal(mintRequest{Amount: amount, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to encode mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mint", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token contract returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *TokenClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
