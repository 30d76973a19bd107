// Package domain defines the core types for the audiobook client.
package domain

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
)

// DeviceCredentials holds everything the device registration exchange returns.
// A credential set is owned by a single session; only the token lifecycle
// manager mutates it, and only AccessToken together with ExpiresAt.
type DeviceCredentials struct {
	AdpToken         string            `json:"adp_token"`
	DevicePrivateKey string            `json:"device_private_key"`
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token"`
	ExpiresAt        float64           `json:"expires"`
	WebsiteCookies   map[string]string `json:"website_cookies"`
	StoreAuthCookie  json.RawMessage   `json:"store_authentication_cookie,omitempty"`
	DeviceInfo       json.RawMessage   `json:"device_info,omitempty"`
	CustomerInfo     json.RawMessage   `json:"customer_info,omitempty"`
}

// IsExpired reports whether the access token is stale at the given instant.
func (c *DeviceCredentials) IsExpired(at time.Time) bool {
	return float64(at.Unix()) >= c.ExpiresAt
}

// DeviceSerial returns device_serial_number from the device info extension.
func (c *DeviceCredentials) DeviceSerial() (string, error) {
	v := gjson.GetBytes(c.DeviceInfo, "device_serial_number")
	if !v.Exists() || v.String() == "" {
		return "", aaxerrors.New(aaxerrors.CodeMissingDeviceInfo, "device_info has no device_serial_number")
	}
	return v.String(), nil
}

// DeviceType returns device_type from the device info extension.
func (c *DeviceCredentials) DeviceType() (string, error) {
	v := gjson.GetBytes(c.DeviceInfo, "device_type")
	if !v.Exists() || v.String() == "" {
		return "", aaxerrors.New(aaxerrors.CodeMissingDeviceInfo, "device_info has no device_type")
	}
	return v.String(), nil
}

// CustomerID returns the customer identity from the customer info extension.
// The vendor has shipped it as user_id and as customer_id; both are accepted,
// in that order.
func (c *DeviceCredentials) CustomerID() (string, error) {
	for _, path := range []string{"user_id", "customer_id"} {
		if v := gjson.GetBytes(c.CustomerInfo, path); v.Exists() && v.String() != "" {
			return v.String(), nil
		}
	}
	return "", aaxerrors.New(aaxerrors.CodeMissingCustomerInfo, "customer_info has no user id")
}

// Voucher is the decrypted license voucher: the symmetric key/IV needed for
// playback plus the usage rules the license carries. Immutable once built.
type Voucher struct {
	Key   string `json:"key"`
	IV    string `json:"iv"`
	ASIN  string `json:"asin,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}

// Rule is a named license usage rule with ordered parameters.
type Rule struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is a single rule parameter. Only EXPIRES parameters carry an
// expireDate; other types are opaque to validation.
type Parameter struct {
	Type       string `json:"type"`
	ExpireDate string `json:"expireDate,omitempty"`
}

// LicenseInfo pairs the raw content license with its decrypted voucher. It is
// the unit passed into validation and persisted for later re-validation.
type LicenseInfo struct {
	ContentLicense json.RawMessage `json:"content_license"`
	Voucher        *Voucher        `json:"voucher,omitempty"`
}

// ValidityStatus classifies a validation verdict.
type ValidityStatus string

const (
	StatusValid               ValidityStatus = "valid"
	StatusExpired             ValidityStatus = "expired"
	StatusNoRules             ValidityStatus = "no_rules"
	StatusNoExpiryRule        ValidityStatus = "no_expiry_rule"
	StatusRequiresAdsPlayback ValidityStatus = "requires_ad_supported_playback"
)

// ValidationResult is the outcome of evaluating a license at a point in time.
// Pure value, no identity.
type ValidationResult struct {
	Valid      bool           `json:"is_valid"`
	Status     ValidityStatus `json:"status"`
	ExpiryDate *time.Time     `json:"expiry_date,omitempty"`
	Message    string         `json:"message"`
}
