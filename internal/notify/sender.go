package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/pkg/config"
)

var Provider = wire.NewSet(NewSender)

var _ notification.Sender = (*HTTPSender)(nil)
var _ notification.Sender = (*LogSender)(nil)

// NewSender 根据配置选择投递通道，没配推送端点就退化为日志投递
func NewSender(cfg *config.Config, logger *zap.Logger) notification.Sender {
	if cfg.Notify.Endpoint == "" {
		logger.Warn("notify endpoint not configured, notifications will only be logged")
		return NewLogSender(logger)
	}
	return NewHTTPSender(cfg, logger)
}

// HTTPSender 通过下游推送服务投递通知
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPSender(cfg *config.Config, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		endpoint: cfg.Notify.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Notify.Timeout,
		},
		logger: logger,
	}
}

func (s *HTTPSender) Deliver(ctx context.Context, userRef, title, content string) error {
	payload := map[string]any{
		"user_ref": userRef,
		"title":    title,
		"content":  content,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notify service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify service returned status %d", resp.StatusCode)
	}

	s.logger.Debug("notification delivered",
		zap.String("user_ref", userRef),
		zap.String("title", title))
	return nil
}

// LogSender 只记日志的投递通道，开发环境和未接推送服务时使用
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Deliver(ctx context.Context, userRef, title, content string) error {
	s.logger.Info("notification delivered to log",
		zap.String("user_ref", userRef),
		zap.String("title", title),
		zap.String("content", content))
	return nil
}
