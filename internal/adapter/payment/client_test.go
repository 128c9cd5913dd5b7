package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storefront/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(srv.URL, "xnd_secret", testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.backoff = time.Millisecond
	return client
}

func sampleRequest() model.InvoiceRequest {
	return model.InvoiceRequest{
		ExternalID:  "ref-1",
		OrderNumber: "ORD-240701-ABCDEF12",
		Amount:      decimal.NewFromInt(45000),
		Discount:    decimal.NewFromInt(10000),
		Currency:    "IDR",
		Duration:    2 * time.Hour,
		Customer: model.InvoiceCustomer{
			Email:      "alice@example.com",
			GivenNames: "Alice",
			Phone:      "+628123",
			Address:    model.Address{StreetLine1: "Jl. Merdeka 1", City: "Jakarta"},
		},
		Items: []model.InvoiceItem{{Name: "MUG", Price: decimal.NewFromInt(27500), Quantity: 2}},
	}
}

func TestNewHTTPClientValidatesURL(t *testing.T) {
	if _, err := NewHTTPClient("://bad-url", "key", testLogger()); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := NewHTTPClient("/relative", "key", testLogger()); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestCreateInvoice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/invoices" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "xnd_secret" || pass != "" {
			t.Errorf("expected basic auth with secret key, got %q %q %v", user, pass, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"inv-1","external_id":"ref-1","status":"PENDING","invoice_url":"https://checkout.test/inv-1","amount":45000,"expiry_date":"2024-07-02T12:00:00Z"}`)
	}))
	defer srv.Close()

	invoice, err := newTestClient(t, srv).CreateInvoice(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invoice.ID != "inv-1" || invoice.URL != "https://checkout.test/inv-1" || invoice.Status != model.InvoiceStatusPending {
		t.Fatalf("unexpected invoice %+v", invoice)
	}
	if !invoice.Amount.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("unexpected amount %s", invoice.Amount)
	}
	if !invoice.ExpiresAt.Equal(time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", invoice.ExpiresAt)
	}

	if got["external_id"] != "ref-1" || got["currency"] != "IDR" || got["description"] != "Order #ORD-240701-ABCDEF12" {
		t.Fatalf("unexpected request body %v", got)
	}
	if got["amount"] != float64(45000) || got["invoice_duration"] != float64(7200) {
		t.Fatalf("expected numeric amount and duration in seconds, got %v %v", got["amount"], got["invoice_duration"])
	}
	fees, _ := got["fees"].([]any)
	if len(fees) != 1 || fees[0].(map[string]any)["value"] != float64(-10000) {
		t.Fatalf("expected negative discount fee, got %v", got["fees"])
	}
	items, _ := got["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["price"] != float64(27500) {
		t.Fatalf("unexpected items %v", got["items"])
	}
	customer, _ := got["customer"].(map[string]any)
	if customer["email"] != "alice@example.com" || customer["mobile_number"] != "+628123" {
		t.Fatalf("unexpected customer %v", customer)
	}
}

func TestCreateInvoiceRetriesOnlyWhenRateLimited(t *testing.T) {
	t.Run("rate limited then accepted", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = io.WriteString(w, `{"id":"inv-2","external_id":"ref-1","status":"PENDING","amount":45000}`)
		}))
		defer srv.Close()

		invoice, err := newTestClient(t, srv).CreateInvoice(context.Background(), sampleRequest())
		if err != nil || invoice.ID != "inv-2" {
			t.Fatalf("expected invoice after retry, got %+v / %v", invoice, err)
		}
		if calls.Load() != 2 {
			t.Fatalf("expected 2 calls, got %d", calls.Load())
		}
	})

	t.Run("server error is not repeated", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv).CreateInvoice(context.Background(), sampleRequest())
		var status StatusError
		if !errors.As(err, &status) || status.Code != http.StatusBadGateway {
			t.Fatalf("expected StatusError 502, got %v", err)
		}
		if calls.Load() != 1 {
			t.Fatalf("expected a single call, got %d", calls.Load())
		}
	})
}

func TestGetInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v2/invoices/inv-9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":"inv-9","external_id":"ref-9","status":"SETTLED","amount":"12500.50"}`)
	}))
	defer srv.Close()

	invoice, err := newTestClient(t, srv).GetInvoice(context.Background(), "inv-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invoice.ExternalID != "ref-9" || !invoice.Status.IsPaid() {
		t.Fatalf("unexpected invoice %+v", invoice)
	}
	if invoice.Amount.String() != "12500.5" {
		t.Fatalf("unexpected amount %s", invoice.Amount)
	}
}

func TestGetInvoiceRetriesTransientFailures(t *testing.T) {
	cases := []struct {
		name      string
		failures  int32
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "recovers after 5xx", failures: 2, status: http.StatusServiceUnavailable, wantCalls: 3},
		{name: "gives up after three attempts", failures: 5, status: http.StatusInternalServerError, wantCalls: 3, wantErr: true},
		{name: "client error is final", failures: 5, status: http.StatusUnauthorized, wantCalls: 1, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tc.failures {
					w.WriteHeader(tc.status)
					return
				}
				_, _ = io.WriteString(w, `{"id":"inv-1","external_id":"ref-1","status":"PAID","amount":1}`)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).GetInvoice(context.Background(), "inv-1")
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if calls.Load() != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, calls.Load())
			}
		})
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv).GetInvoice(context.Background(), "missing"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(t, srv).GetInvoice(ctx, "inv-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("retry wait ignored context cancellation")
	}
}

func TestErrorResponsesAreLogged(t *testing.T) {
	called := make(chan struct{}, 1)
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && a.Value.Any() == slog.LevelError {
			select {
			case called <- struct{}{}:
			default:
			}
		}
		return a
	}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, "bad", slog.New(handler))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.CreateInvoice(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error from server")
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("expected error log to be written")
	}
}

func TestNewInvoiceRequestDefaults(t *testing.T) {
	req := sampleRequest()
	req.Duration = 0
	req.Discount = decimal.Zero
	req.Customer.Address = model.Address{}

	out := newInvoiceRequest(req)
	if out.InvoiceDuration != 86400 {
		t.Fatalf("expected default duration of one day, got %d", out.InvoiceDuration)
	}
	if len(out.Fees) != 0 || len(out.Customer.Addresses) != 0 {
		t.Fatalf("expected no fees or addresses, got %+v", out)
	}
}

func TestParseRetryAfter(t *testing.T) {
	httpTime := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)

	cases := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 5 * time.Second},
		{name: "seconds", header: "7", want: 7 * time.Second},
		{name: "http date", header: httpTime},
		{name: "fallback", header: "bad", want: 5 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseRetryAfter(tc.header)
			if tc.header == httpTime {
				if got <= time.Second || got > 4*time.Second {
					t.Fatalf("unexpected retry duration %v", got)
				}
			} else if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
