package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testWebhook = "http://workflow.test/webhook/amazon-affiliate"

func newTestNotifier(t *testing.T, responder httpmock.Responder) *Notifier {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WebhookURL = testWebhook

	n, err := New(cfg, NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, testWebhook, responder)
	n.SetTransport(transport)
	return n
}

func sampleNotification() models.Notification {
	return models.Notification{
		ProductURL:    "https://www.amazon.com/dp/B08N5WRWNW",
		AffiliateLink: "https://amzn.to/3xyz",
		RowNumber:     5,
		Timestamp:     "2026-10-18T09:00:00.000Z",
		SheetID:       "tracking",
	}
}

func TestNewRejectsURLWithoutHost(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebhookURL = "/webhook"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for webhook url without host")
	}
}

func TestNotifySendsPayload(t *testing.T) {
	var (
		got     models.Notification
		headers http.Header
	)
	n := newTestNotifier(t, func(req *http.Request) (*http.Response, error) {
		headers = req.Header.Clone()
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
	})

	if err := n.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got != sampleNotification() {
		t.Fatalf("payload = %+v", got)
	}
	if ct := headers.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if headers.Get(DeliveryHeader) == "" {
		t.Fatalf("missing %s header", DeliveryHeader)
	}
	if ua := headers.Get("User-Agent"); ua != config.DefaultConfig().UserAgent {
		t.Fatalf("user agent = %q", ua)
	}
	if v := testutil.ToFloat64(n.Metrics.RequestsTotal.WithLabelValues("success")); v != 1 {
		t.Fatalf("success deliveries = %v, want 1", v)
	}
}

func TestNotifyStatusFailures(t *testing.T) {
	tests := []struct {
		status   int
		category string
	}{
		{status: http.StatusInternalServerError, category: "server_error"},
		{status: http.StatusNotFound, category: "client_error"},
		{status: http.StatusAccepted, category: "unexpected_status"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			n := newTestNotifier(t, httpmock.NewStringResponder(tt.status, ""))

			err := n.Notify(context.Background(), sampleNotification())
			var statusErr ErrStatus
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected ErrStatus, got %v", err)
			}
			if statusErr.Code != tt.status {
				t.Fatalf("code = %d, want %d", statusErr.Code, tt.status)
			}
			if !strings.Contains(err.Error(), "HTTP "+strconv.Itoa(tt.status)) {
				t.Fatalf("error %q does not name the code", err)
			}
			if got := errorTypeLabel(err); got != tt.category {
				t.Fatalf("category = %q, want %q", got, tt.category)
			}
			if v := testutil.ToFloat64(n.Metrics.ErrorsTotal.WithLabelValues(tt.category)); v != 1 {
				t.Fatalf("errors{%s} = %v, want 1", tt.category, v)
			}
		})
	}
}

func TestNotifyTransportFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "other", err: errors.New("tls: bad certificate"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotifier(t, httpmock.NewErrorResponder(tt.err))

			err := n.Notify(context.Background(), sampleNotification())
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("category = %q, want %q (%v)", got, tt.expected, err)
			}
		})
	}
}

func TestNotifyCanceledContext(t *testing.T) {
	n := newTestNotifier(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, sampleNotification())
	var canceled ErrCanceled
	if !errors.As(err, &canceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "no response", err: nil, statusCode: 0, expected: "other"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "bad gateway", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "server_error"},
		{name: "created", err: nil, statusCode: http.StatusCreated, expected: "unexpected_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}

	if err := classifyError(nil, http.StatusOK); err != nil {
		t.Fatalf("200 should not be an error, got %v", err)
	}
}
