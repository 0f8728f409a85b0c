package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/config"
)

// VaultClient talks to the service holding the colony's native currency.
type VaultClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewVaultClient creates a new native vault client
func NewVaultClient(cfg config.OracleConfig) *VaultClient {
	return &VaultClient{
		baseURL: cfg.VaultURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type paymentRequest struct {
	To        string `json:"to"`
	AmountWei uint64 `json:"amount_wei"`
	Reference string `json:"reference"`
}

type sweepRequest struct {
	To        string `json:"to"`
	Reference string `json:"reference"`
}

type sweepResponse struct {
	AmountWei uint64 `json:"amount_wei"`
}

// Pay moves an exact amount of wei to the recipient.
func (c *VaultClient) Pay(ctx context.Context, to string, amountWei uint64, reference string) error {
	payload, err := json.Marshal(paymentRequest{To: to, AmountWei: amountWei, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
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
		return fmt.Errorf("%w: vault returned status %d", entities.ErrTransferFailed, resp.StatusCode)
	}

	return nil
}

// Sweep drains the vault's full balance to the successor and reports how
// much moved.
func (c *VaultClient) Sweep(ctx context.Context, to string, reference string) (uint64, error) {
	payload, err := json.Marshal(sweepRequest{To: to, Reference: reference})
	if err != nil {
		return 0, fmt.Errorf("failed to encode sweep request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sweeps", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entities.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: vault returned status %d", entities.ErrTransferFailed, resp.StatusCode)
	}

	var body sweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode sweep response: %w", err)
	}

	return body.AmountWei, nil
}

func (c *VaultClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
