package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/booking/scheduler/pkg/config"
)

// HealthChecker 网关健康检查器
// 周期性探测所有网关，连续失败达到阈值标记为不可用，
// 连续成功达到阈值恢复并重置对应熔断器
type HealthChecker struct {
	logger   *zap.Logger
	config   config.HealthCheckConfig
	probe    GatewayProbe
	gateways []int

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	failures  map[int]int
	successes map[int]int
	available map[int]bool
}

// NewHealthChecker 创建健康检查器，网关列表来自门禁映射
func NewHealthChecker(cfg *config.Config, probe GatewayProbe, logger *zap.Logger) *HealthChecker {
	gateways := lo.Uniq(lo.Values(cfg.Gateway.DoorMap))
	sort.Ints(gateways)

	available := make(map[int]bool, len(gateways))
	for _, gw := range gateways {
		available[gw] = true
	}

	return &HealthChecker{
		logger:    logger,
		config:    cfg.HealthCheck,
		probe:     probe,
		gateways:  gateways,
		stopCh:    make(chan struct{}),
		failures:  make(map[int]int, len(gateways)),
		successes: make(map[int]int, len(gateways)),
		available: available,
	}
}

// Start 启动检查循环
func (h *HealthChecker) Start() {
	if !h.config.Enabled {
		h.logger.Info("gateway health check disabled")
		return
	}
	if len(h.gateways) == 0 {
		h.logger.Warn("gateway health check enabled but no gateways configured")
		return
	}

	h.wg.Add(1)
	go h.run()

	h.logger.Info("gateway health checker started",
		zap.Ints("gateways", h.gateways),
		zap.Duration("interval", h.config.Interval))
}

// Stop 停止检查循环
func (h *HealthChecker) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *HealthChecker) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.checkAll()

	for {
		select {
		case <-ticker.C:
			h.checkAll()
		case <-h.stopCh:
			return
		}
	}
}

func (h *HealthChecker) checkAll() {
	var wg sync.WaitGroup
	for _, gw := range h.gateways {
		wg.Add(1)
		go func(gatewayID int) {
			defer wg.Done()
			h.checkGateway(gatewayID)
		}(gw)
	}
	wg.Wait()
}

func (h *HealthChecker) checkGateway(gatewayID int) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	err := h.probe.Ping(ctx, gatewayID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err != nil {
		h.successes[gatewayID] = 0
		h.failures[gatewayID]++

		if h.failures[gatewayID] >= h.config.FailureThreshold && h.available[gatewayID] {
			h.available[gatewayID] = false
			h.logger.Warn("gateway marked unavailable",
				zap.Int("gateway_id", gatewayID),
				zap.Int("consecutive_failures", h.failures[gatewayID]),
				zap.Error(err))
		} else {
			h.logger.Debug("gateway health check failed",
				zap.Int("gateway_id", gatewayID),
				zap.Int("consecutive_failures", h.failures[gatewayID]),
				zap.Error(err))
		}
		return
	}

	h.failures[gatewayID] = 0
	h.successes[gatewayID]++

	if !h.available[gatewayID] && h.successes[gatewayID] >= h.config.RecoveryThreshold {
		h.available[gatewayID] = true
		h.probe.ResetBreaker()
		h.logger.Info("gateway recovered",
			zap.Int("gateway_id", gatewayID),
			zap.Int("consecutive_successes", h.successes[gatewayID]))
	}
}

// Snapshot 返回当前各网关可用状态的副本
func (h *HealthChecker) Snapshot() map[int]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make(map[int]bool, len(h.available))
	for gw, ok := range h.available {
		snapshot[gw] = ok
	}
	return snapshot
}
