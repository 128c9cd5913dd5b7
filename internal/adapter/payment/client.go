package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
)

// ErrInvoiceNotFound indicates the gateway doesn't know the invoice.
var ErrInvoiceNotFound = domainErrors.ErrInvoiceNotFound

// TooManyRequestsError represents rate limiting signal from the gateway.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// StatusError reports an unexpected gateway response.
type StatusError struct {
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("payment gateway error: %d %s", e.Code, http.StatusText(e.Code))
}

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxRetryWait       = 10 * time.Second
)

// HTTPClient talks to a Xendit compatible invoice API.
type HTTPClient struct {
	baseURL     *url.URL
	secretKey   string
	httpClient  *http.Client
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type invoiceRequest struct {
	ExternalID      string          `json:"external_id"`
	Amount          json.Number     `json:"amount"`
	PayerEmail      string          `json:"payer_email,omitempty"`
	Description     string          `json:"description"`
	InvoiceDuration int64           `json:"invoice_duration"`
	Currency        string          `json:"currency"`
	Customer        invoiceCustomer `json:"customer"`
	Items           []invoiceItem   `json:"items,omitempty"`
	Fees            []invoiceFee    `json:"fees,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

type invoiceCustomer struct {
	GivenNames   string           `json:"given_names,omitempty"`
	Email        string           `json:"email,omitempty"`
	MobileNumber string           `json:"mobile_number,omitempty"`
	Addresses    []invoiceAddress `json:"addresses,omitempty"`
}

type invoiceAddress struct {
	StreetLine1 string `json:"street_line1,omitempty"`
	StreetLine2 string `json:"street_line2,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country"`
}

type invoiceItem struct {
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

type invoiceFee struct {
	Type  string      `json:"type"`
	Value json.Number `json:"value"`
}

// invoiceResponse mirrors the invoice JSON returned by the gateway.
type invoiceResponse struct {
	ID         string      `json:"id"`
	ExternalID string      `json:"external_id"`
	Status     string      `json:"status"`
	InvoiceURL string      `json:"invoice_url"`
	Amount     json.Number `json:"amount"`
	ExpiryDate time.Time   `json:"expiry_date"`
}

// NewHTTPClient creates a gateway client with default timeout.
func NewHTTPClient(baseURL, secretKey string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("payment gateway url must be absolute")
	}
	return &HTTPClient{
		baseURL:     parsed,
		secretKey:   secretKey,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// CreateInvoice requests a hosted invoice. Only rate limited attempts are repeated
// since any other failure may already have created the invoice.
func (c *HTTPClient) CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error) {
	body, err := json.Marshal(newInvoiceRequest(req))
	if err != nil {
		return nil, err
	}
	return c.withRetry(ctx, isRateLimited, func() (*model.Invoice, error) {
		return c.do(ctx, http.MethodPost, "/v2/invoices", body)
	})
}

// GetInvoice fetches the current invoice state by gateway id.
func (c *HTTPClient) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return c.withRetry(ctx, isTransient, func() (*model.Invoice, error) {
		return c.do(ctx, http.MethodGet, "/v2/invoices/"+url.PathEscape(id), nil)
	})
}

func (c *HTTPClient) withRetry(ctx context.Context, retryable func(error) bool, call func() (*model.Invoice, error)) (*model.Invoice, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		invoice, err := call()
		if err == nil {
			return invoice, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		wait := c.backoff * time.Duration(attempt)
		var tooMany TooManyRequestsError
		if errors.As(err, &tooMany) {
			wait = min(tooMany.RetryAfter, maxRetryWait)
		}
		c.logger.Warn("payment gateway call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) do(ctx context.Context, method, route string, body []byte) (*model.Invoice, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, route)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var data invoiceResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return data.toModel()
	case http.StatusNotFound:
		return nil, ErrInvoiceNotFound
	case http.StatusTooManyRequests:
		return nil, TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("payment gateway request failed",
			slog.String("method", method),
			slog.String("path", route),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(payload)),
		)
		return nil, StatusError{Code: resp.StatusCode}
	}
}

func newInvoiceRequest(req model.InvoiceRequest) invoiceRequest {
	out := invoiceRequest{
		ExternalID:      req.ExternalID,
		Amount:          number(req.Amount),
		PayerEmail:      req.Customer.Email,
		Description:     fmt.Sprintf("Order #%s", req.OrderNumber),
		InvoiceDuration: int64(req.Duration / time.Second),
		Currency:        req.Currency,
		Customer: invoiceCustomer{
			GivenNames:   req.Customer.GivenNames,
			Email:        req.Customer.Email,
			MobileNumber: req.Customer.Phone,
		},
		Metadata: map[string]any{"order_number": req.OrderNumber},
	}
	if out.InvoiceDuration <= 0 {
		out.InvoiceDuration = int64((24 * time.Hour) / time.Second)
	}

	addr := req.Customer.Address
	if addr.StreetLine1 != "" || addr.City != "" {
		out.Customer.Addresses = []invoiceAddress{{
			StreetLine1: addr.StreetLine1,
			StreetLine2: addr.StreetLine2,
			City:        addr.City,
			State:       addr.Province,
			PostalCode:  addr.PostalCode,
			Country:     "Indonesia",
		}}
	}
	for _, item := range req.Items {
		out.Items = append(out.Items, invoiceItem{Name: item.Name, Quantity: item.Quantity, Price: number(item.Price)})
	}
	if req.Discount.IsPositive() {
		out.Fees = []invoiceFee{{Type: "Discount", Value: number(req.Discount.Neg())}}
	}
	return out
}

func (r invoiceResponse) toModel() (*model.Invoice, error) {
	amount := decimal.Zero
	if r.Amount != "" {
		parsed, err := decimal.NewFromString(r.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("invoice amount %q: %w", r.Amount, err)
		}
		amount = parsed
	}
	return &model.Invoice{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		Status:     model.InvoiceStatus(r.Status),
		URL:        r.InvoiceURL,
		Amount:     amount,
		ExpiresAt:  r.ExpiryDate,
	}, nil
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func isRateLimited(err error) bool {
	var tooMany TooManyRequestsError
	return errors.As(err, &tooMany)
}

func isTransient(err error) bool {
	if isRateLimited(err) {
		return true
	}
	var status StatusError
	return errors.As(err, &status) && status.Code >= http.StatusInternalServerError
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
