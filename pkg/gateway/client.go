package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitalshift/vitalshift-backend/pkg/config"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

// Charge/transfer statuses the gateway reports on verification.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	errBaseURLRequired       = errors.New("gateway base url is required")
	errAPIKeyRequired        = errors.New("gateway api key is required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
	errCallbackURLRequired   = errors.New("gateway callback url is required")
)

// Client talks to the payment provider: mobile-money push, hosted card
// checkout, transfers, and verify-by-reference. Every call runs under a
// bounded deadline; callers must never hold database locks across these.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	callbackURL   string
	redirectURL   string
	timeout       time.Duration
	logger        *logger.Logger
}

// NewClient validates credentials and builds the gateway wrapper.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	callbackURL := strings.TrimSpace(cfg.CallbackURL)
	if callbackURL == "" {
		return nil, errCallbackURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		callbackURL:   callbackURL,
		redirectURL:   strings.TrimSpace(cfg.RedirectURL),
		timeout:       timeout,
		logger:        logg,
	}

	if logg != nil {
		logg.Info(ctx, "payment gateway client initialized")
	}
	return c, nil
}

// SigningSecret returns the shared secret used to verify inbound webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// PushPaymentParams describe a mobile-money push request.
type PushPaymentParams struct {
	Phone       string `json:"phone"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	Narrative   string `json:"narrative,omitempty"`
}

// CardCheckoutParams describe a hosted card checkout link request.
type CardCheckoutParams struct {
	Email       string `json:"email"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
}

// TransferParams describe a payout transfer request. IdempotencyKey makes
// network-level retries safe on the provider side.
type TransferParams struct {
	Recipient      string `json:"recipient"`
	Method         string `json:"method"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	Narrative      string `json:"narrative,omitempty"`
}

// CheckoutLink is the hosted payment page handed back to the employer.
type CheckoutLink struct {
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

// Verification is the provider's view of a charge or transfer.
type Verification struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	FailureReason string `json:"failure_reason"`
}

type referenceResponse struct {
	Reference string `json:"reference"`
}

// PushPayment asks the provider to push a payment prompt to the phone.
// Returns the provider reference used to reconcile the webhook later.
func (c *Client) PushPayment(ctx context.Context, params PushPaymentParams) (string, error) {
	if params.Phone == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	if params.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.CallbackURL == "" {
		params.CallbackURL = c.callbackURL
	}

	var resp referenceResponse
	if err := c.post(ctx, "/v1/charges/push", params, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no reference")
	}
	return resp.Reference, nil
}

// CardCheckout requests a hosted card payment link.
func (c *Client) CardCheckout(ctx context.Context, params CardCheckoutParams) (*CheckoutLink, error) {
	if params.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.RedirectURL == "" {
		params.RedirectURL = c.redirectURL
	}

	var link CheckoutLink
	if err := c.post(ctx, "/v1/charges/checkout", params, &link); err != nil {
		return nil, err
	}
	if link.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no reference")
	}
	return &link, nil
}

// Transfer dispatches a payout to the professional's mobile-money or bank
// account. Safe to repeat with the same idempotency key.
func (c *Client) Transfer(ctx context.Context, params TransferParams) (string, error) {
	if params.Recipient == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}
	if params.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.IdempotencyKey == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}

	var resp referenceResponse
	if err := c.post(ctx, "/v1/transfers", params, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no reference")
	}
	return resp.Reference, nil
}

// VerifyByReference queries the provider for the authoritative status of a
// charge or transfer.
func (c *Client) VerifyByReference(ctx context.Context, reference string) (*Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	var verification Verification
	if err := c.get(ctx, "/v1/verify/"+reference, &verification); err != nil {
		return nil, err
	}
	return &verification, nil
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway responded %d", resp.StatusCode)
		}
		return pkgerrors.New(pkgerrors.CodeGateway, msg).WithDetails(map[string]any{
			"status": resp.StatusCode,
			"path":   path,
		})
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	return nil
}
