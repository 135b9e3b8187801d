package strike

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/lightningpay/internal/domain"
)

const (
	ProductionURL = "https://api.strike.me"
	SandboxURL    = "https://api.strike.me/sandbox"

	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "lightningpay_strike_request_duration_seconds",
	Help:    "Latency of Strike API calls",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"op", "status"})

// Config configures a Client.
type Config struct {
	APIKey      string
	Environment string // "production" or "sandbox"
	BaseURL     string // overrides Environment when set
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client talks to the Strike receive-requests API. It holds no state beyond
// its configuration and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = ProductionURL
		if cfg.Environment == "sandbox" {
			base = SandboxURL
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Work on a copy so a shared client such as http.DefaultClient is never mutated.
	httpCli := &http.Client{}
	if cfg.HTTPClient != nil {
		*httpCli = *cfg.HTTPClient
	}
	if httpCli.Timeout == 0 {
		httpCli.Timeout = timeout
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: httpCli,
		now:        time.Now,
	}
}

// CreatePaymentRequest issues a new bolt11 receive request.
func (c *Client) CreatePaymentRequest(ctx context.Context, p CreateParams) (*domain.PaymentRequest, error) {
	body := createReceiveRequest{
		TargetCurrency: p.TargetCurrency,
		Bolt11: bolt11Params{
			Amount:          money{Amount: p.Amount, Currency: p.Currency},
			Description:     p.Description,
			ExpiryInSeconds: p.ExpirySeconds,
		},
	}

	var rr receiveRequest
	if err := c.do(ctx, "create_receive_request", http.MethodPost, "/v1/receive-requests", body, &rr); err != nil {
		return nil, err
	}
	if rr.ReceiveRequestID == "" || rr.Bolt11 == nil {
		return nil, fmt.Errorf("create receive request: %w", ErrUnexpectedResponse)
	}
	return rr.toDomain(c.now()), nil
}

// GetPaymentRequest looks up an existing receive request.
func (c *Client) GetPaymentRequest(ctx context.Context, requestID string) (*domain.PaymentRequest, error) {
	var rr receiveRequest
	path := "/v1/receive-requests/" + url.PathEscape(requestID)
	if err := c.do(ctx, "get_receive_request", http.MethodGet, path, nil, &rr); err != nil {
		return nil, err
	}
	if rr.ReceiveRequestID == "" {
		return nil, fmt.Errorf("get receive request: %w", ErrUnexpectedResponse)
	}
	return rr.toDomain(c.now()), nil
}

// ListReceipts returns every receive recorded against a request. Both the
// paginated {items, count} envelope and a bare array are accepted.
func (c *Client) ListReceipts(ctx context.Context, requestID string) ([]domain.Receipt, error) {
	var raw json.RawMessage
	path := "/v1/receive-requests/" + url.PathEscape(requestID) + "/receives"
	if err := c.do(ctx, "list_receives", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeReceipts(raw)
}

func decodeReceipts(raw json.RawMessage) ([]domain.Receipt, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []domain.Receipt{}, nil
	}

	switch raw[0] {
	case '[':
		var list []domain.Receipt
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode receives list: %w", err)
		}
		return list, nil
	case '{':
		var page receivesPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode receives page: %w", err)
		}
		if page.Items == nil {
			return nil, fmt.Errorf("receives page without items: %w", ErrUnexpectedResponse)
		}
		return *page.Items, nil
	default:
		return nil, fmt.Errorf("receives: %w", ErrUnexpectedResponse)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestDuration.WithLabelValues(op, "transport_error").Observe(time.Since(start).Seconds())
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	requestDuration.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
			Body:       string(body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
