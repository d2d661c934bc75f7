package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/ape-dashboard/internal/httputil"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/models"
	"go.uber.org/zap"
)

const defaultBotName = "APE Trading Bot"

// Sender posts short messages to a Slack or Discord webhook. Without a
// webhook URL messages are only logged.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = defaultBotName
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		log: logger.Named("notify"),
	}
}

func (s *Sender) Send(ctx context.Context, msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info("notification", zap.String("message", formatted))

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		s.log.Error("marshal webhook payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}

// TradeRecorded announces a newly stored trade.
func (s *Sender) TradeRecorded(ctx context.Context, t *models.Trade) {
	s.Send(ctx, FormatTrade(t))
}

// FormatTrade renders e.g. "BUY 1500000 BONK @ $0.00002134 ($32.01)".
func FormatTrade(t *models.Trade) string {
	return fmt.Sprintf("%s %s %s @ $%s ($%s)",
		t.Side, t.Amount.String(), t.Symbol, t.PricePerToken.String(), t.Value.StringFixed(2))
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
