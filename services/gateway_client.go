package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// GatewayClient talks to the external payment gateway for
// client-initiated verification and pending-payment requeries.
type GatewayClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

func NewGatewayClient() *GatewayClient {
	baseURL := os.Getenv("GATEWAY_BASE_URL")
	if baseURL == "" {
		log.Fatal("GATEWAY_BASE_URL environment variable not set")
	}
	secret := os.Getenv("GATEWAY_SECRET_KEY")
	if secret == "" {
		log.Fatal("GATEWAY_SECRET_KEY environment variable not set")
	}
	return &GatewayClient{
		BaseURL:   baseURL,
		SecretKey: secret,
		Client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// VerifyTransaction asks the gateway for the authoritative state of one
// reference. The response body is returned raw for the normalizer; when
// the gateway wraps the transaction in a "data" envelope it is
// unwrapped here.
func (c *GatewayClient) VerifyTransaction(ctx context.Context, reference string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/transaction/%s/verify", c.BaseURL, reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		log.Printf("Gateway verify returned %d for %s: %s", resp.StatusCode, reference, string(body))
		return nil, fmt.Errorf("gateway verify failed: %d", resp.StatusCode)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid gateway response: %w", err)
	}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return payload, nil
}
