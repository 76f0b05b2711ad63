package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/interfaces"
)

const relayAddressesPath = "/api/v1/relayaddresses/"

// RelayClient provisions disposable e-mail masks through the Firefox Relay
// API so each registration gets a fresh inbox address.
type RelayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewRelayClient - builds a client for the relay address API
func NewRelayClient(cfg config.ServicesConfig, log *zap.Logger) *RelayClient {
	return &RelayClient{
		baseURL:    cfg.RelayBaseURL,
		apiKey:     cfg.RelayAPIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.Named("relay"),
	}
}

type relayAddress struct {
	ID          int    `json:"id"`
	FullAddress string `json:"full_address"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

func (a relayAddress) toAddress() interfaces.Address {
	return interfaces.Address{
		ID:      fmt.Sprintf("%d", a.ID),
		Email:   a.FullAddress,
		Enabled: a.Enabled,
	}
}

// CreateAddress provisions a new mask with the given description.
func (c *RelayClient) CreateAddress(ctx context.Context, description string) (interfaces.Address, error) {
	payload, err := json.Marshal(map[string]any{
		"description": description,
		"enabled":     true,
	})
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, relayAddressesPath, bytes.NewReader(payload), http.StatusCreated)
	if err != nil {
		return interfaces.Address{}, err
	}

	var created relayAddress
	if err := json.Unmarshal(body, &created); err != nil {
		return interfaces.Address{}, fmt.Errorf("failed to decode created address: %w", err)
	}

	c.log.Info("relay address created", zap.String("email", created.FullAddress))
	return created.toAddress(), nil
}

// ListAddresses returns every mask on the account.
func (c *RelayClient) ListAddresses(ctx context.Context) ([]interfaces.Address, error) {
	body, err := c.do(ctx, http.MethodGet, relayAddressesPath, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var raw []relayAddress
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode address list: %w", err)
	}

	addresses := make([]interfaces.Address, 0, len(raw))
	for _, a := range raw {
		addresses = append(addresses, a.toAddress())
	}
	return addresses, nil
}

// DeleteAddress removes a mask by ID.
func (c *RelayClient) DeleteAddress(ctx context.Context, id string) error {
	path := fmt.Sprintf("%s%s/", relayAddressesPath, id)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent); err != nil {
		return err
	}
	c.log.Info("relay address deleted", zap.String("id", id))
	return nil
}

func (c *RelayClient) do(ctx context.Context, method, path string, body io.Reader, wantStatus int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("relay API returned status %d for %s %s", resp.StatusCode, method, path)
	}
	return data, nil
}
