package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fastflow/nexus/internal/llm"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// Client fetches model configurations from the upstream workflow service.
// The caller's auth token is forwarded on every request; the client holds no
// credentials of its own.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchModelConfig resolves a model configuration by its opaque id.
func (c *Client) FetchModelConfig(ctx context.Context, configID, authToken string) (*llm.ModelConfig, error) {
	url := fmt.Sprintf("%s/api/model-config/%s", c.baseURL, configID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build model config request: %w", err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("model_config_id", configID).Msg("Model config request failed")
		return nil, fmt.Errorf("fetch model config %s: %w", configID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logx.Error().
			Int("status", resp.StatusCode).
			Str("model_config_id", configID).
			Msg("Model config request rejected")
		return nil, fmt.Errorf("fetch model config %s: status %d: %s", configID, resp.StatusCode, string(body))
	}

	var cfg llm.ModelConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode model config %s: %w", configID, err)
	}
	if cfg.ID == "" {
		cfg.ID = configID
	}
	return &cfg, nil
}

var _ llm.ConfigFetcher = (*Client)(nil)
