package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// ErrMissingCredentials indicates the client was configured without a
// consumer key/secret pair.
var ErrMissingCredentials = errors.New("mpesa: consumer key and secret are required")

// Options configures the Daraja STK push client.
type Options struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	BaseURL        string
	CallbackURL    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Daraja API. Access tokens are
// short-lived; the client caches one per instance and refreshes it on
// expiry under a mutex, never sharing it process-wide.
type Client struct {
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	baseURL        string
	callbackURL    string
	httpClient     *http.Client
	logger         *infra.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	now func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ConsumerKey) == "" || strings.TrimSpace(opts.ConsumerSecret) == "" {
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
		baseURL = "https://sandbox.safaricom.co.ke"
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
		consumerKey:    strings.TrimSpace(opts.ConsumerKey),
		consumerSecret: strings.TrimSpace(opts.ConsumerSecret),
		shortcode:      strings.TrimSpace(opts.Shortcode),
		passkey:        strings.TrimSpace(opts.Passkey),
		baseURL:        baseURL,
		callbackURL:    strings.TrimSpace(opts.CallbackURL),
		httpClient:     httpClient,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "mpesa" }

// Methods implements providers.Adapter.
func (c *Client) Methods() []domain.PaymentMethod {
	return []domain.PaymentMethod{domain.MethodMpesa}
}

// Initiate performs an STK push for the donation. The returned correlation
// id is Daraja's CheckoutRequestID, which the result callback echoes back.
func (c *Client) Initiate(ctx context.Context, req providers.InitiateRequest) (providers.InitiateResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	token, err := c.accessTokenLocked(ctx)
	if err != nil {
		return providers.InitiateResult{}, err
	}

	timestamp := c.now().UTC().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortcode + c.passkey + timestamp))
	payload := stkPushRequest{
		BusinessShortCode: c.shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.StringFixed(0),
		PartyA:            phone,
		PartyB:            c.shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  req.DonationID,
		TransactionDesc:   "Donation",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: stk push: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: read response: %w: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
	if resp.StatusCode >= 400 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.ErrorMessage != "" {
			return providers.InitiateResult{}, fmt.Errorf("mpesa: %s (%s): %w", detail.ErrorMessage, detail.ErrorCode, domain.ErrProviderRejected)
		}
		return providers.InitiateResult{}, fmt.Errorf("mpesa: status %d: %w", resp.StatusCode, domain.ErrProviderRejected)
	}

	var decoded stkPushResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: decode response: %w", err)
	}
	if decoded.ResponseCode != "0" {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: %s (%s): %w", decoded.ResponseDescription, decoded.ResponseCode, domain.ErrProviderRejected)
	}
	if decoded.CheckoutRequestID == "" {
		return providers.InitiateResult{}, fmt.Errorf("mpesa: empty checkout request id: %w", domain.ErrProviderUnavailable)
	}

	c.logger.Debug().
		Str("checkout_request_id", decoded.CheckoutRequestID).
		Str("merchant_request_id", decoded.MerchantRequestID).
		Msg("mpesa: stk push accepted")
	return providers.InitiateResult{
		CorrelationID: decoded.CheckoutRequestID,
		Message:       decoded.CustomerMessage,
	}, nil
}

// ParseCallback validates a Daraja result payload and maps the result code
// to a canonical outcome. Daraja result callbacks carry no signature; shape
// validation is the only check available.
func (c *Client) ParseCallback(_ http.Header, body []byte) (providers.CallbackEvent, error) {
	var payload stkCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return providers.CallbackEvent{}, fmt.Errorf("%w: %v", providers.ErrInvalidCallback, err)
	}
	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return providers.CallbackEvent{}, fmt.Errorf("%w: missing CheckoutRequestID", providers.ErrInvalidCallback)
	}

	outcome := domain.OutcomeFailed
	switch cb.ResultCode {
	case 0:
		outcome = domain.OutcomeCompleted
	case 1032: // request cancelled by user
		outcome = domain.OutcomeCanceled
	}

	fields := map[string]any{
		"result_code": cb.ResultCode,
		"result_desc": cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			fields["receipt_number"] = item.Value
		case "Amount":
			fields["settled_amount"] = item.Value
		case "PhoneNumber":
			fields["payer_phone"] = item.Value
		}
	}

	return providers.CallbackEvent{
		CorrelationID: cb.CheckoutRequestID,
		Outcome:       outcome,
		ReceiptFields: fields,
	}, nil
}

// accessTokenLocked returns a cached token, fetching a fresh one when the
// cached one is absent or within a minute of expiry.
func (c *Client) accessTokenLocked(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: build token request: %w", err)
	}
	httpReq.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("mpesa: decode token: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("mpesa: empty access token: %w", domain.ErrProviderUnavailable)
	}

	ttl := 3599 * time.Second
	if secs, err := time.ParseDuration(decoded.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.logger.Debug().Time("expires_at", c.tokenExpiry).Msg("mpesa: refreshed access token")
	return c.accessToken, nil
}

// NormalizePhone converts Kenyan subscriber numbers to the 2547XXXXXXXX
// format Daraja requires.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == ' ' || r == '-' || r == '+' {
			return -1
		}
		return 'x'
	}, strings.TrimSpace(phone))
	if strings.ContainsRune(cleaned, 'x') {
		return "", fmt.Errorf("phone %q contains invalid characters", phone)
	}

	switch {
	case strings.HasPrefix(cleaned, "254") && len(cleaned) == 12:
		return cleaned, nil
	case strings.HasPrefix(cleaned, "07") && len(cleaned) == 10:
		return "254" + cleaned[1:], nil
	case strings.HasPrefix(cleaned, "7") && len(cleaned) == 9:
		return "254" + cleaned, nil
	}
	return "", fmt.Errorf("phone %q is not a recognized subscriber number", phone)
}

var _ providers.Adapter = (*Client)(nil)
