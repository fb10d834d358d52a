package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/pkg/config"
)

var Provider = wire.NewSet(NewClient, NewGatewayClient)

var _ poweroff.RelayController = (*Client)(nil)

// Client 继电器控制器客户端，自动断电走这里
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建继电器客户端
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Relay.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Relay.Timeout,
		},
		logger: logger,
	}
}

// PowerOff 断开指定控制器端口的电源
func (c *Client) PowerOff(ctx context.Context, controllerID string, port int) error {
	url := fmt.Sprintf("%s/relay/%s/%d/off", c.baseURL, controllerID, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call relay controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("relay controller returned status %d", resp.StatusCode)
	}

	c.logger.Info("relay port powered off",
		zap.String("controller_id", controllerID),
		zap.Int("port", port))

	return nil
}
