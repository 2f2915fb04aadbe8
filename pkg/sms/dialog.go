// Package sms sends text messages through Dialog's e-SMS URL campaign API.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultDialogURL is Dialog's URL campaign endpoint
const DefaultDialogURL = "https://e-sms.dialog.lk/api/v1/message-via-url/create/url-campaign"

var nonDigits = regexp.MustCompile(`[^0-9]`)

// DialogGateway sends SMS using an esmsqk key instead of username/password
type DialogGateway struct {
	baseURL string
	apiKey  string // esmsqk key from Dialog portal
	mask    string // source address
	client  *http.Client
}

// NewDialogGateway creates a new Dialog URL gateway instance
func NewDialogGateway(baseURL, apiKey, mask string) *DialogGateway {
	if baseURL == "" {
		baseURL = DefaultDialogURL
	}
	return &DialogGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		mask:    mask,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FormatPhoneForDialog converts a phone number to Dialog's 9-digit format.
// "0771234567", "94771234567" and "+94771234567" all become "771234567".
func FormatPhoneForDialog(phone string) (string, error) {
	phone = nonDigits.ReplaceAllString(phone, "")

	if strings.HasPrefix(phone, "94") && len(phone) == 11 {
		phone = phone[2:]
	}
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = phone[1:]
	}

	if len(phone) != 9 {
		return "", fmt.Errorf("invalid phone number length after formatting: %d digits (expected 9)", len(phone))
	}
	if !strings.HasPrefix(phone, "7") {
		return "", fmt.Errorf("invalid Sri Lankan mobile prefix: must start with 7")
	}
	return phone, nil
}

// SendMessage sends one message and returns a pseudo transaction ID.
// Dialog answers "1" on success and an error code otherwise.
func (d *DialogGateway) SendMessage(ctx context.Context, phone, message string) (int64, error) {
	formatted, err := FormatPhoneForDialog(phone)
	if err != nil {
		return 0, fmt.Errorf("invalid phone number: %w", err)
	}

	params := url.Values{}
	params.Add("esmsqk", d.apiKey)
	params.Add("list", formatted)
	params.Add("source_address", d.mask)
	params.Add("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build SMS request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read SMS response: %w", err)
	}
	result := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, result)
	}
	if result != "1" {
		return 0, fmt.Errorf("SMS sending failed with error code: %s", result)
	}
	return time.Now().Unix(), nil
}

// GetName returns the name of this SMS gateway
func (d *DialogGateway) GetName() string {
	return "Dialog URL Gateway"
}
