// Package payment integrates the PAYable hosted checkout used for trip and
// ticket payments.
package payment

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/config"
)

// EnvironmentURLs maps environment names to their IPG endpoint URLs
var EnvironmentURLs = map[string]string{
	"dev":        "https://payable-ipg-dev.web.app/ipg/dev",
	"sandbox":    "https://sandboxipgpayment.payable.lk/ipg/sandbox",
	"production": "https://ipgpayment.payable.lk/ipg/pro",
}

// CheckoutRequest describes what the customer is paying for
type CheckoutRequest struct {
	InvoiceID     string // our payment ID, echoed back by the webhook
	Amount        float64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Session is an opened checkout the customer is redirected to
type Session struct {
	SessionID   string
	RedirectURL string
}

// WebhookEvent is an authenticated payment notification
type WebhookEvent struct {
	InvoiceID     string
	SessionID     string
	Amount        string
	Currency      string
	TransactionID string
	Successful    bool
}

// checkoutPayload is the body posted to the IPG. The merchant token is never
// sent; it only feeds the check value.
type checkoutPayload struct {
	MerchantKey         string `json:"merchantKey"`
	LogoURL             string `json:"logoUrl,omitempty"`
	ReturnURL           string `json:"returnUrl"`
	WebhookURL          string `json:"webhookUrl,omitempty"`
	PaymentType         int    `json:"paymentType"`
	InvoiceID           string `json:"invoiceId"`
	Amount              string `json:"amount"`
	CurrencyCode        string `json:"currencyCode"`
	OrderDescription    string `json:"orderDescription,omitempty"`
	CustomerFirstName   string `json:"customerFirstName"`
	CustomerLastName    string `json:"customerLastName"`
	CustomerEmail       string `json:"customerEmail"`
	CustomerMobilePhone string `json:"customerMobilePhone"`
	BillingCountry      string `json:"billingAddressCountry"`
	CheckValue          string `json:"checkValue"`
	IntegrationType     string `json:"integrationType"`
	IntegrationVersion  string `json:"integrationVersion"`
}

type checkoutResponse struct {
	Status          string `json:"status"`
	UID             string `json:"uid"`
	StatusIndicator string `json:"statusIndicator"`
	PaymentPage     string `json:"paymentPage"`
	Message         string `json:"message,omitempty"`
}

type webhookPayload struct {
	UID           string `json:"uid"`
	InvoiceID     string `json:"invoiceId"`
	Amount        string `json:"amount"`
	CurrencyCode  string `json:"currencyCode"`
	PaymentStatus string `json:"paymentStatus"`
	TransactionID string `json:"transactionId,omitempty"`
	CheckValue    string `json:"checkValue"`
}

// PAYable is the checkout gateway client
type PAYable struct {
	config   config.PaymentConfig
	logger   *logrus.Logger
	client   *http.Client
	endpoint string
}

// Option customizes a PAYable client
type Option func(*PAYable)

// WithEndpoint overrides the IPG endpoint URL
func WithEndpoint(url string) Option {
	return func(p *PAYable) { p.endpoint = url }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(p *PAYable) { p.client = c }
}

// NewPAYable creates a new PAYable checkout client
func NewPAYable(cfg config.PaymentConfig, logger *logrus.Logger, opts ...Option) *PAYable {
	endpoint, ok := EnvironmentURLs[cfg.Environment]
	if !ok {
		endpoint = EnvironmentURLs["sandbox"]
	}
	p := &PAYable{
		config:   cfg,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsConfigured returns true if merchant credentials are present
func (p *PAYable) IsConfigured() bool {
	return p.config.MerchantKey != "" && p.config.MerchantToken != ""
}

// CheckValue creates the SHA-512 check value:
// upper(sha512("merchantKey|invoiceId|amount|currency|" + upper(sha512(merchantToken))))
func (p *PAYable) CheckValue(invoiceID, amount, currency string) string {
	tokenHash := sha512.Sum512([]byte(p.config.MerchantToken))
	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		p.config.MerchantKey,
		invoiceID,
		amount,
		currency,
		strings.ToUpper(hex.EncodeToString(tokenHash[:])),
	)
	sum := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// FormatAmount renders an amount the way the IPG expects it
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// CreateSession opens a hosted checkout and returns its redirect URL
func (p *PAYable) CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}

	amount := FormatAmount(req.Amount)
	first, last := splitName(req.CustomerName)
	payload := checkoutPayload{
		MerchantKey:         p.config.MerchantKey,
		LogoURL:             p.config.LogoURL,
		ReturnURL:           p.config.ReturnURL,
		WebhookURL:          p.config.WebhookURL,
		PaymentType:         1,
		InvoiceID:           req.InvoiceID,
		Amount:              amount,
		CurrencyCode:        req.Currency,
		OrderDescription:    req.Description,
		CustomerFirstName:   first,
		CustomerLastName:    last,
		CustomerEmail:       req.CustomerEmail,
		CustomerMobilePhone: defaultString(req.CustomerPhone, "0770000000"),
		BillingCountry:      "LK",
		CheckValue:          p.CheckValue(req.InvoiceID, amount, req.Currency),
		IntegrationType:     "Ceylon360",
		IntegrationVersion:  "1.0.0",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"amount":     amount,
		"currency":   req.Currency,
	}).Info("Initiating PAYable checkout")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed checkoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// PAYable answers "PENDING" once the page is ready, older versions "success".
	if parsed.Status != "success" && parsed.Status != "PENDING" {
		msg := parsed.Message
		if msg == "" {
			msg = "status=" + parsed.Status
		}
		return nil, fmt.Errorf("payment initiation failed: %s", msg)
	}
	if parsed.PaymentPage == "" {
		return nil, fmt.Errorf("payment initiation failed: no payment page URL returned")
	}

	return &Session{SessionID: parsed.UID, RedirectURL: parsed.PaymentPage}, nil
}

// VerifyWebhook authenticates a webhook body by recomputing its check value
func (p *PAYable) VerifyWebhook(body []byte) (*WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if payload.UID == "" || payload.InvoiceID == "" {
		return nil, fmt.Errorf("webhook missing required fields")
	}

	expected := p.CheckValue(payload.InvoiceID, payload.Amount, payload.CurrencyCode)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(payload.CheckValue))) != 1 {
		return nil, fmt.Errorf("webhook check value mismatch")
	}

	p.logger.WithFields(logrus.Fields{
		"uid":            payload.UID,
		"invoice_id":     payload.InvoiceID,
		"payment_status": payload.PaymentStatus,
	}).Info("Webhook payload verified")

	return &WebhookEvent{
		InvoiceID:     payload.InvoiceID,
		SessionID:     payload.UID,
		Amount:        payload.Amount,
		Currency:      payload.CurrencyCode,
		TransactionID: payload.TransactionID,
		Successful:    strings.EqualFold(payload.PaymentStatus, "SUCCESS"),
	}, nil
}

func splitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "Customer", "."
	case 1:
		return parts[0], "." // PAYable requires a last name
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
