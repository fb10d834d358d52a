package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
)

var _ scheduler.GatewayProbe = (*GatewayClient)(nil)

type relayResponse struct {
	RelayID int    `json:"relay_id"`
	Status  string `json:"status"`
}

// GatewayClient 门禁继电器网关客户端
// 开门脉冲和网关唤醒都经过熔断器，坏掉的继电器快速失败而不是堆积超时
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	doorMap    map[int]int // 门继电器ID -> 所属网关继电器ID

	breakerMu sync.RWMutex
	breakers  map[int]*CircuitBreaker
}

// NewGatewayClient 创建网关客户端，门和网关的对应关系来自配置
func NewGatewayClient(cfg *config.Config, logger *zap.Logger) *GatewayClient {
	doorMap := make(map[int]int, len(cfg.Gateway.DoorMap))
	for door, gateway := range cfg.Gateway.DoorMap {
		doorMap[cast.ToInt(door)] = gateway
	}

	return &GatewayClient{
		baseURL: strings.TrimRight(cfg.Gateway.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Gateway.Timeout,
		},
		logger:   logger,
		doorMap:  doorMap,
		breakers: make(map[int]*CircuitBreaker),
	}
}

// OpenDoor 发送开门脉冲
func (c *GatewayClient) OpenDoor(ctx context.Context, doorID int) error {
	breaker := c.getOrCreateBreaker(doorID)

	return breaker.Call(func() error {
		body, err := c.call(ctx, http.MethodPost, fmt.Sprintf("/relays/%d/off", doorID))
		if err != nil {
			return err
		}
		if body.Status == "" {
			return fmt.Errorf("unexpected relay response for door %d", doorID)
		}

		c.logger.Info("door unlocked", zap.Int("door_id", doorID))
		return nil
	})
}

// EnsureGatewayOn 确认门所属网关处于通电状态，关着就拉起来
// 唤醒失败只记日志，不影响开门结果
func (c *GatewayClient) EnsureGatewayOn(ctx context.Context, doorID int) {
	gatewayID, ok := c.GatewayFor(doorID)
	if !ok {
		c.logger.Debug("no gateway mapped for door", zap.Int("door_id", doorID))
		return
	}

	breaker := c.getOrCreateBreaker(gatewayID)
	err := breaker.Call(func() error {
		body, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/relays/%d/status", gatewayID))
		if err != nil {
			return err
		}
		if body.Status != "off" {
			return nil
		}

		c.logger.Info("gateway is off, powering on",
			zap.Int("gateway_id", gatewayID),
			zap.Int("door_id", doorID))
		_, err = c.call(ctx, http.MethodPost, fmt.Sprintf("/relays/%d/on", gatewayID))
		return err
	})
	if err != nil {
		c.logger.Warn("failed to ensure gateway power",
			zap.Int("gateway_id", gatewayID),
			zap.Int("door_id", doorID),
			zap.Error(err))
	}
}

// GatewayFor 查找门所属网关
func (c *GatewayClient) GatewayFor(doorID int) (int, bool) {
	gatewayID, ok := c.doorMap[doorID]
	return gatewayID, ok
}

// Ping 探测网关可达性，健康检查专用，不过熔断器
func (c *GatewayClient) Ping(ctx context.Context, gatewayID int) error {
	_, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/relays/%d/status", gatewayID))
	return err
}

// ResetBreaker 网关恢复后闭合全部熔断器
func (c *GatewayClient) ResetBreaker() {
	c.breakerMu.RLock()
	defer c.breakerMu.RUnlock()
	for _, breaker := range c.breakers {
		breaker.Reset()
	}
}

func (c *GatewayClient) getOrCreateBreaker(relayID int) *CircuitBreaker {
	c.breakerMu.RLock()
	breaker, exists := c.breakers[relayID]
	c.breakerMu.RUnlock()

	if !exists {
		c.breakerMu.Lock()
		breaker, exists = c.breakers[relayID]
		if !exists {
			breaker = NewCircuitBreaker()
			c.breakers[relayID] = breaker
		}
		c.breakerMu.Unlock()
	}

	return breaker
}

func (c *GatewayClient) call(ctx context.Context, method, path string) (*relayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var body relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &body, nil
}
