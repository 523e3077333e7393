package flutterwave

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// ErrMissingSecretKey indicates the client was configured without API credentials.
var ErrMissingSecretKey = errors.New("flutterwave: secret key is required")

// Options configures the Flutterwave tokenized-charge client.
type Options struct {
	SecretKey      string
	WebhookHash    string
	BaseURL        string
	RedirectURL    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client charges tokenized cards through the Flutterwave v3 API. One
// adapter serves both card networks; the network rides along as metadata
// and never branches the canonical flow.
type Client struct {
	secretKey   string
	webhookHash string
	baseURL     string
	redirectURL string
	httpClient  *http.Client
	logger      *infra.Logger
}

type chargeRequest struct {
	TxRef    string `json:"tx_ref"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
	Redirect string `json:"redirect_url,omitempty"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		FlwRef string `json:"flw_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
		Card     struct {
			Type  string `json:"type"`
			Last4 string `json:"last_4digits"`
		} `json:"card"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SecretKey) == "" {
		return nil, ErrMissingSecretKey
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
		baseURL = "https://api.flutterwave.com/v3"
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
		secretKey:   strings.TrimSpace(opts.SecretKey),
		webhookHash: strings.TrimSpace(opts.WebhookHash),
		baseURL:     baseURL,
		redirectURL: strings.TrimSpace(opts.RedirectURL),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "flutterwave" }

// Methods implements providers.Adapter.
func (c *Client) Methods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodVisa, domain.MethodMastercard}
}

// Initiate charges the tokenized card. Flutterwave keys webhooks by the
// merchant tx_ref, so the tx_ref built here is the correlation id.
func (c *Client) Initiate(ctx context.Context, req providers.InitiateRequest) (providers.InitiateResult, error) {
	if strings.TrimSpace(req.CardToken) == "" {
		return providers.InitiateResult{}, fmt.Errorf("%w: card token is required", domain.ErrValidation)
	}
	txRef := "HMB-" + req.DonationID
	payload := chargeRequest{
		TxRef:    txRef,
		Token:    req.CardToken,
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		Email:    req.Email,
		Redirect: c.redirectURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tokenized-charges", bytes.NewReader(body))
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: charge: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: read response: %w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var decoded chargeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: decode response: %w", err)
	}
	if resp.StatusCode >= 400 || decoded.Status != "success" {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: %s: %w", decoded.Message, domain.ErrProviderRejected)
	}
	if decoded.Data.Status == "failed" {
		return providers.InitiateResult{}, fmt.Errorf("flutterwave: charge declined: %w", domain.ErrProviderRejected)
	}

	c.logger.Debug().
		Str("tx_ref", txRef).
		Str("flw_ref", decoded.Data.FlwRef).
		Str("charge_status", decoded.Data.Status).
		Msg("flutterwave: charge initiated")
	return providers.InitiateResult{CorrelationID: txRef, Message: decoded.Message}, nil
}

// ParseCallback authenticates the webhook by its verif-hash header and maps
// the charge status to a canonical outcome.
func (c *Client) ParseCallback(header http.Header, body []byte) (providers.CallbackEvent, error) {
	got := header.Get("verif-hash")
	if c.webhookHash == "" || subtle.ConstantTimeCompare([]byte(got), []byte(c.webhookHash)) != 1 {
		return providers.CallbackEvent{}, providers.ErrUnauthenticatedCallback
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return providers.CallbackEvent{}, fmt.Errorf("%w: %v", providers.ErrInvalidCallback, err)
	}
	if payload.Data.TxRef == "" {
		return providers.CallbackEvent{}, fmt.Errorf("%w: missing tx_ref", providers.ErrInvalidCallback)
	}

	outcome := domain.OutcomeFailed
	switch payload.Data.Status {
	case "successful":
		outcome = domain.OutcomeCompleted
	case "cancelled":
		outcome = domain.OutcomeCanceled
	}

	fields := map[string]any{
		"flw_ref":         payload.Data.FlwRef,
		"charge_id":       payload.Data.ID,
		"settled_amount":  payload.Data.Amount,
		"currency":        payload.Data.Currency,
		"provider_status": payload.Data.Status,
	}
	if payload.Data.Card.Last4 != "" {
		fields["card_last4"] = payload.Data.Card.Last4
		fields["card_type"] = payload.Data.Card.Type
	}

	return providers.CallbackEvent{
		CorrelationID: payload.Data.TxRef,
		Outcome:       outcome,
		ReceiptFields: fields,
	}, nil
}

var _ providers.Adapter = (*Client)(nil)
