package airtel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// ErrMissingCredentials indicates the client was configured without an
// OAuth client id/secret pair.
var ErrMissingCredentials = errors.New("airtel: client id and secret are required")

// Options configures the Airtel Money collection client.
type Options struct {
	ClientID       string
	ClientSecret   string
	Country        string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client pushes USSD payment prompts through the Airtel Money open API.
// The OAuth token is cached per instance and refreshed on expiry, same
// discipline as the mpesa client.
type Client struct {
	clientID     string
	clientSecret string
	country      string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	now   func() time.Time
	newID func() string
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paymentRequest struct {
	Reference  string `json:"reference"`
	Subscriber struct {
		Country  string `json:"country"`
		Currency string `json:"currency"`
		MSISDN   string `json:"msisdn"`
	} `json:"subscriber"`
	Transaction struct {
		Amount   string `json:"amount"`
		Country  string `json:"country"`
		Currency string `json:"currency"`
		ID       string `json:"id"`
	} `json:"transaction"`
}

type paymentResponse struct {
	Data struct {
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Success bool   `json:"success"`
	} `json:"status"`
}

type callbackPayload struct {
	Transaction struct {
		ID            string `json:"id"`
		Message       string `json:"message"`
		StatusCode    string `json:"status_code"`
		AirtelMoneyID string `json:"airtel_money_id"`
	} `json:"transaction"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openapi.airtel.africa"
	}
	country := strings.ToUpper(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "KE"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		clientID:     strings.TrimSpace(opts.ClientID),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		country:      country,
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "airtel" }

// Methods implements providers.Adapter.
func (c *Client) Methods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodAirtelMoney}
}

// Initiate pushes a payment prompt to the subscriber's handset. The
// transaction id generated here is the correlation id the callback echoes.
func (c *Client) Initiate(ctx context.Context, req providers.InitiateRequest) (providers.InitiateResult, error) {
	msisdn, err := NormalizeMSISDN(req.Phone)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	token, err := c.accessTokenLocked(ctx)
	if err != nil {
		return providers.InitiateResult{}, err
	}

	txID := c.newID()
	var payload paymentRequest
	payload.Reference = "Donation " + req.DonationID
	payload.Subscriber.Country = c.country
	payload.Subscriber.Currency = req.Currency
	payload.Subscriber.MSISDN = msisdn
	payload.Transaction.Amount = req.Amount.String()
	payload.Transaction.Country = c.country
	payload.Transaction.Currency = req.Currency
	payload.Transaction.ID = txID

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("airtel: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/merchant/v1/payments/", bytes.NewReader(body))
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("airtel: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Country", c.country)
	httpReq.Header.Set("X-Currency", req.Currency)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("airtel: payment push: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("airtel: read response: %w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return providers.InitiateResult{}, fmt.Errorf("airtel: status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var decoded paymentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return providers.InitiateResult{}, fmt.Errorf("airtel: decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !decoded.Status.Success {
		return providers.InitiateResult{}, fmt.Errorf("airtel: %s (%s): %w", decoded.Status.Message, decoded.Status.Code, domain.ErrProviderRejected)
	}

	c.logger.Debug().
		Str("transaction_id", txID).
		Str("push_status", decoded.Data.Transaction.Status).
		Msg("airtel: payment push accepted")
	return providers.InitiateResult{CorrelationID: txID, Message: decoded.Status.Message}, nil
}

// ParseCallback maps Airtel Money transaction status codes to canonical
// outcomes: TS settled, TF failed, TA aborted by the subscriber.
func (c *Client) ParseCallback(_ http.Header, body []byte) (providers.CallbackEvent, error) {
	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return providers.CallbackEvent{}, fmt.Errorf("%w: %v", providers.ErrInvalidCallback, err)
	}
	tx := payload.Transaction
	if tx.ID == "" {
		return providers.CallbackEvent{}, fmt.Errorf("%w: missing transaction id", providers.ErrInvalidCallback)
	}

	var outcome domain.Outcome
	switch tx.StatusCode {
	case "TS":
		outcome = domain.OutcomeCompleted
	case "TA":
		outcome = domain.OutcomeCanceled
	case "TF":
		outcome = domain.OutcomeFailed
	default:
		return providers.CallbackEvent{}, fmt.Errorf("%w: unknown status code %q", providers.ErrInvalidCallback, tx.StatusCode)
	}

	fields := map[string]any{
		"status_code":     tx.StatusCode,
		"status_message":  tx.Message,
		"airtel_money_id": tx.AirtelMoneyID,
	}
	return providers.CallbackEvent{
		CorrelationID: tx.ID,
		Outcome:       outcome,
		ReceiptFields: fields,
	}, nil
}

func (c *Client) accessTokenLocked(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", fmt.Errorf("airtel: encode token request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("airtel: build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("airtel: token request: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("airtel: token status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("airtel: decode token: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("airtel: empty access token: %w", domain.ErrProviderUnavailable)
	}

	ttl := time.Duration(decoded.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.logger.Debug().Time("expires_at", c.tokenExpiry).Msg("airtel: refreshed access token")
	return c.accessToken, nil
}

// NormalizeMSISDN converts subscriber numbers to the national format
// without country prefix, which the Airtel collection API expects.
func NormalizeMSISDN(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(phone))
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone %q contains invalid characters", phone)
		}
	}
	switch {
	case strings.HasPrefix(cleaned, "254") && len(cleaned) == 12:
		return cleaned[3:], nil
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		return cleaned[1:], nil
	case len(cleaned) == 9:
		return cleaned, nil
	}
	return "", fmt.Errorf("phone %q is not a recognized subscriber number", phone)
}

var _ providers.Adapter = (*Client)(nil)
