package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// WebhookLabel names webhook failures in logs and classified errors.
const WebhookLabel = "Webhook Export"

// Webhook posts leads as a JSON array to a URL.
type Webhook struct {
	url   string
	http  *http.Client
	retry resilience.RetryConfig
}

// NewWebhook creates a Webhook. A nil client uses a 30s timeout.
func NewWebhook(url string, hc *http.Client, retry resilience.RetryConfig) *Webhook {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{url: url, http: hc, retry: retry.WithLabel(WebhookLabel)}
}

// Send posts leads. Transport failures and 5xx responses are retried.
func (w *Webhook) Send(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	if w.url == "" {
		return eris.New("export: webhook url is not configured")
	}

	body, err := json.Marshal(leads)
	if err != nil {
		return eris.Wrap(err, "export: marshal leads")
	}

	err = resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "export: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "export: post webhook")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &resilience.StatusError{Provider: "webhook", StatusCode: resp.StatusCode, Body: string(b)}
		}
		return nil
	})
	if err != nil {
		return resilience.Classify(err, WebhookLabel)
	}

	zap.L().Info("export: leads sent to webhook", zap.Int("leads", len(leads)))
	return nil
}
