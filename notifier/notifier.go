// Package notifier delivers validated rows to the workflow webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// DeliveryHeader carries a per-delivery id the workflow can log or dedupe on.
const DeliveryHeader = "X-Delivery-ID"

// Notifier POSTs notifications to the configured webhook. Each call runs on
// a clone of one tuned collector so calls share the connection pool.
type Notifier struct {
	url       string
	userAgent string
	collector *colly.Collector
	Metrics   *Metrics
}

// New builds a notifier for cfg.WebhookURL.
func New(cfg *config.Config, metrics *Metrics) (*Notifier, error) {
	parsed, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("webhook url must include a host")
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.WebhookTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.WebhookTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Notifier{
		url:       cfg.WebhookURL,
		userAgent: cfg.UserAgent,
		collector: collector,
		Metrics:   metrics,
	}, nil
}

// SetTransport replaces the HTTP transport used for deliveries.
func (n *Notifier) SetTransport(rt http.RoundTripper) {
	n.collector.WithTransport(rt)
}

// URL is the webhook endpoint.
func (n *Notifier) URL() string {
	return n.url
}

// Notify sends note and waits for the answer. Only HTTP 200 is success; the
// returned error for any other code is an ErrStatus naming it.
func (n *Notifier) Notify(ctx context.Context, note models.Notification) error {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	c := n.collector.Clone()
	c.Context = ctx

	status := 0
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	deliveryID := uuid.NewString()
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("User-Agent", n.userAgent)
	hdr.Set(DeliveryHeader, deliveryID)

	start := time.Now()
	reqErr := c.Request(http.MethodPost, n.url, bytes.NewReader(body), nil, hdr)
	n.Metrics.ObserveDuration(time.Since(start))

	if reqErr == nil && status == http.StatusOK {
		n.Metrics.IncRequest("success")
		slog.Debug("webhook delivered",
			slog.Int("row", note.RowNumber),
			slog.String("delivery_id", deliveryID),
		)
		return nil
	}

	classified := classifyError(reqErr, status)
	category := errorTypeLabel(classified)
	n.Metrics.IncRequest("failure")
	n.Metrics.IncError(category)
	slog.Error("webhook delivery failed",
		slog.Int("row", note.RowNumber),
		slog.String("delivery_id", deliveryID),
		slog.String("category", category),
		slog.Int("status", status),
		slog.Any("error", classified),
	)
	return classified
}

func classifyError(err error, statusCode int) error {
	if err == nil && (statusCode == 0 || statusCode == http.StatusOK) {
		if statusCode == 0 {
			return errors.New("webhook: no response")
		}
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return ErrCanceled{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		return ErrStatus{Code: statusCode, Err: err}
	}
	return fmt.Errorf("webhook: %w", err)
}
