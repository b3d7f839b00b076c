package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const requestTimeout = 5 * time.Second

var (
	// ErrLicenseRejected indicates the server refused the license code.
	ErrLicenseRejected = errors.New("licensing: license rejected by server")
	// ErrDeviceMismatch indicates the license is bound to another machine.
	ErrDeviceMismatch = errors.New("licensing: license is activated on a different device")
)

// ActivationResult is the server's response to a successful activation.
type ActivationResult struct {
	CompanyID     uint       `json:"company_id"`
	LicenceType   string     `json:"licence_type"`
	ExpireDate    *time.Time `json:"expire_date"`
	CompanyName   string     `json:"company_name"`
	ServerMessage string     `json:"message"`
}

// Client talks to the remote licensing server. All calls are short-lived
// form posts with retries on transient failures.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient constructs a licensing client for the given server base URL.
func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("licensing: base url is required")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.HTTPClient.Timeout = requestTimeout
	httpClient.Logger = nil

	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// Activate validates a license code against the server and returns the
// company record it unlocks.
func (c *Client) Activate(ctx context.Context, licenseCode, email string) (*ActivationResult, error) {
	form := url.Values{}
	form.Set("licence_code", strings.TrimSpace(licenseCode))
	form.Set("email", strings.TrimSpace(email))

	var result ActivationResult
	if err := c.postForm(ctx, "/activate_license.php", form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterDevice binds the license to this machine. The server accepts the
// first device and rejects subsequent ones.
func (c *Client) RegisterDevice(ctx context.Context, companyID uint, deviceID string) error {
	form := url.Values{}
	form.Set("company_id", fmt.Sprintf("%d", companyID))
	form.Set("device_id", strings.TrimSpace(deviceID))

	var result struct {
		Accepted bool   `json:"accepted"`
		Message  string `json:"message"`
	}
	if err := c.postForm(ctx, "/device_register.php", form, &result); err != nil {
		return err
	}
	if !result.Accepted {
		return ErrDeviceMismatch
	}
	return nil
}

// UpdateCompany pushes edited company details to the server.
func (c *Client) UpdateCompany(ctx context.Context, companyID uint, name, address string) error {
	form := url.Values{}
	form.Set("company_id", fmt.Sprintf("%d", companyID))
	form.Set("company_name", strings.TrimSpace(name))
	form.Set("company_address", strings.TrimSpace(address))

	return c.postForm(ctx, "/update_company.php", form, nil)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("licensing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("licensing: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return ErrLicenseRejected
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("licensing: server returned %d for %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("licensing: decode response: %w", err)
	}
	return nil
}
