package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mkb69/aaxconnect/internal/api"
	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/metrics"
	"github.com/mkb69/aaxconnect/internal/pkce"
)

// RegistrationClient exchanges an authorization code for device credentials
// and performs device de-registration.
type RegistrationClient struct {
	api    *api.Client
	logger *slog.Logger
	now    func() time.Time
}

// RegistrationOption configures the RegistrationClient.
type RegistrationOption func(*RegistrationClient)

// WithRegistrationLogger sets the logger.
func WithRegistrationLogger(logger *slog.Logger) RegistrationOption {
	return func(c *RegistrationClient) { c.logger = logger }
}

// WithRegistrationClock overrides the clock. Used by tests.
func WithRegistrationClock(now func() time.Time) RegistrationOption {
	return func(c *RegistrationClient) { c.now = now }
}

// NewRegistrationClient creates a RegistrationClient over the given transport.
func NewRegistrationClient(apiClient *api.Client, opts ...RegistrationOption) *RegistrationClient {
	c := &RegistrationClient{
		api:    apiClient,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register posts the device registration exchange. authorizationCode and
// codeVerifier must come from the same Session that built the authorization
// URL; serial likewise. On success every required credential field is
// present — partial credentials are never returned.
func (c *RegistrationClient) Register(ctx context.Context, authorizationCode, codeVerifier, serial string, useUsernameDomain bool) (*domain.DeviceCredentials, error) {
	body := map[string]any{
		"requested_token_type": []string{
			"bearer", "mac_dms", "website_cookies", "store_authentication_cookie",
		},
		"cookies": map[string]any{
			"website_cookies": []string{},
			"domain":          ".amazon." + c.api.Domain(),
		},
		"registration_data": map[string]string{
			"domain":           "Device",
			"app_version":      appVersion,
			"device_serial":    serial,
			"device_type":      DeviceType,
			"device_name":      deviceName,
			"os_version":       osVersion,
			"software_version": softwareVersion,
			"device_model":     deviceModel,
			"app_name":         appName,
		},
		"auth_data": map[string]string{
			"client_id":          pkce.BuildClientID(serial, DeviceType),
			"authorization_code": authorizationCode,
			"code_verifier":      codeVerifier,
			"code_algorithm":     "SHA-256",
			"client_domain":      "DeviceLegacy",
		},
		"requested_extensions": []string{"device_info", "customer_info"},
	}

	status, respBody, err := c.api.PostJSON(ctx, c.api.RegisterOrigin(useUsernameDomain)+"/auth/register", body, nil)
	if err != nil {
		metrics.RecordRegistration("error")
		return nil, err
	}
	if status < 200 || status > 299 {
		metrics.RecordRegistration("rejected")
		return nil, aaxerrors.RegistrationFailed(fmt.Sprintf("registration returned %d: %s", status, respBody))
	}

	creds, err := parseRegistrationResponse(respBody, c.now())
	if err != nil {
		metrics.RecordRegistration("bad_response")
		return nil, err
	}

	metrics.RecordRegistration("success")
	c.logger.Info("device registered", "serial", serial)
	return creds, nil
}

// Deregister posts a bearer-authenticated de-registration request and returns
// the raw server response.
func (c *RegistrationClient) Deregister(ctx context.Context, accessToken string, deregisterAll, useUsernameDomain bool) ([]byte, error) {
	body := map[string]bool{"deregister_all_existing_accounts": deregisterAll}
	headers := map[string]string{"Authorization": "Bearer " + accessToken}

	status, respBody, err := c.api.PostJSON(ctx, c.api.RegisterOrigin(useUsernameDomain)+"/auth/deregister", body, headers)
	if err != nil {
		metrics.RecordDeregistration("error")
		return nil, err
	}
	if status < 200 || status > 299 {
		metrics.RecordDeregistration("rejected")
		return nil, aaxerrors.RegistrationFailed(fmt.Sprintf("deregistration returned %d: %s", status, respBody))
	}

	metrics.RecordDeregistration("success")
	return respBody, nil
}

// parseRegistrationResponse navigates the registration response and fails on
// any missing required field.
func parseRegistrationResponse(body []byte, now time.Time) (*domain.DeviceCredentials, error) {
	success := gjson.GetBytes(body, "response.success")
	if !success.Exists() {
		return nil, aaxerrors.RegistrationFailed("response has no success payload")
	}
	tokens := success.Get("tokens")

	required := map[string]gjson.Result{
		"tokens.mac_dms.adp_token":          tokens.Get("mac_dms.adp_token"),
		"tokens.mac_dms.device_private_key": tokens.Get("mac_dms.device_private_key"),
		"tokens.bearer.access_token":        tokens.Get("bearer.access_token"),
		"tokens.bearer.refresh_token":       tokens.Get("bearer.refresh_token"),
	}
	for path, v := range required {
		if !v.Exists() || v.String() == "" {
			return nil, aaxerrors.RegistrationFailed("missing token data: " + path)
		}
	}

	expiresIn, err := parseExpiresIn(tokens.Get("bearer.expires_in"))
	if err != nil {
		return nil, err
	}

	creds := &domain.DeviceCredentials{
		AdpToken:         tokens.Get("mac_dms.adp_token").String(),
		DevicePrivateKey: tokens.Get("mac_dms.device_private_key").String(),
		AccessToken:      tokens.Get("bearer.access_token").String(),
		RefreshToken:     tokens.Get("bearer.refresh_token").String(),
		ExpiresAt:        float64(now.Unix()) + expiresIn,
		WebsiteCookies:   parseWebsiteCookies(tokens.Get("website_cookies")),
	}
	if v := tokens.Get("store_authentication_cookie"); v.Exists() {
		creds.StoreAuthCookie = []byte(v.Raw)
	}
	if v := success.Get("extensions.device_info"); v.Exists() {
		creds.DeviceInfo = []byte(v.Raw)
	}
	if v := success.Get("extensions.customer_info"); v.Exists() {
		creds.CustomerInfo = []byte(v.Raw)
	}
	return creds, nil
}

// parseExpiresIn accepts expires_in as a number or a numeric string; the
// vendor has sent both.
func parseExpiresIn(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, aaxerrors.RegistrationFailed("malformed expires_in: " + v.Str)
		}
		return f, nil
	}
	return 0, aaxerrors.RegistrationFailed("missing token data: tokens.bearer.expires_in")
}

// parseWebsiteCookies flattens the {Name, Value} cookie array into a map,
// stripping the quote characters the vendor wraps values in.
func parseWebsiteCookies(v gjson.Result) map[string]string {
	cookies := make(map[string]string)
	v.ForEach(func(_, item gjson.Result) bool {
		name := item.Get("Name").String()
		if name != "" {
			cookies[name] = strings.ReplaceAll(item.Get("Value").String(), `"`, "")
		}
		return true
	})
	return cookies
}
