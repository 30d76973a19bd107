package license

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mkb69/aaxconnect/internal/api"
	"github.com/mkb69/aaxconnect/internal/crypto"
	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/metrics"
	"github.com/mkb69/aaxconnect/internal/voucher"
)

// EncryptedVoucher is a license response before voucher decryption: the raw
// content license plus the base64 ciphertext embedded in it. Transient;
// consumed immediately by decryption.
type EncryptedVoucher struct {
	ASIN           string
	ContentLicense json.RawMessage
	VoucherB64     string
}

// RequestClient fetches content licenses over the ADP-signed channel.
type RequestClient struct {
	api    *api.Client
	signer *crypto.RequestSigner
	logger *slog.Logger
	now    func() time.Time
}

// RequestOption configures the RequestClient.
type RequestOption func(*RequestClient)

// WithRequestLogger sets the logger.
func WithRequestLogger(logger *slog.Logger) RequestOption {
	return func(c *RequestClient) { c.logger = logger }
}

// WithRequestClock overrides the clock used for signature timestamps.
func WithRequestClock(now func() time.Time) RequestOption {
	return func(c *RequestClient) { c.now = now }
}

// NewRequestClient builds a client signing with the credential set's device
// key and ADP token.
func NewRequestClient(apiClient *api.Client, creds *domain.DeviceCredentials, opts ...RequestOption) (*RequestClient, error) {
	signer, err := crypto.NewRequestSigner(creds.DevicePrivateKey, creds.AdpToken)
	if err != nil {
		return nil, aaxerrors.Wrap(err, aaxerrors.CodeInvalidAuthData, "device private key")
	}
	c := &RequestClient{
		api:    apiClient,
		signer: signer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch requests a license for the given catalog item and returns the
// content license with its still-encrypted voucher.
func (c *RequestClient) Fetch(ctx context.Context, asin string) (*EncryptedVoucher, error) {
	path := "/1.0/content/" + asin + "/licenserequest"
	body := map[string]string{
		"drm_type":         "Adrm",
		"consumption_type": "Download",
		"quality":          "High",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, aaxerrors.Wrap(err, aaxerrors.CodeEncoding, "encode license request")
	}
	signature, err := c.signer.Sign("POST", path, payload, c.now())
	if err != nil {
		return nil, aaxerrors.Wrap(err, aaxerrors.CodeInvalidAuthData, "sign license request")
	}
	headers := map[string]string{
		"x-adp-token":     c.signer.AdpToken(),
		"x-adp-alg":       crypto.SignatureAlgorithm,
		"x-adp-signature": signature,
	}

	// Send the exact bytes that were signed.
	status, respBody, err := c.api.PostJSON(ctx, c.api.AudibleURL(path), json.RawMessage(payload), headers)
	if err != nil {
		metrics.RecordLicenseRequest("error")
		return nil, err
	}
	if status < 200 || status > 299 {
		metrics.RecordLicenseRequest("rejected")
		return nil, aaxerrors.Network(fmt.Sprintf("license request for %s returned %d: %s", asin, status, respBody), nil)
	}

	contentLicense := gjson.GetBytes(respBody, "content_license")
	if !contentLicense.IsObject() {
		metrics.RecordLicenseRequest("bad_response")
		return nil, aaxerrors.Decoding("license response has no content_license", nil)
	}
	voucherB64 := contentLicense.Get("license_response")
	if voucherB64.Type != gjson.String || voucherB64.Str == "" {
		metrics.RecordLicenseRequest("bad_response")
		return nil, aaxerrors.Decoding("content_license has no license_response voucher", nil)
	}

	metrics.RecordLicenseRequest("success")
	c.logger.Debug("license fetched", "asin", asin)

	return &EncryptedVoucher{
		ASIN:           asin,
		ContentLicense: []byte(contentLicense.Raw),
		VoucherB64:     voucherB64.Str,
	}, nil
}

// FetchAndDecrypt fetches a license and decrypts its voucher with the
// identity bound to the credential set.
func (c *RequestClient) FetchAndDecrypt(ctx context.Context, creds *domain.DeviceCredentials, asin string) (*domain.LicenseInfo, error) {
	enc, err := c.Fetch(ctx, asin)
	if err != nil {
		return nil, err
	}
	v, err := voucher.DecryptWithCredentials(creds, asin, enc.VoucherB64)
	if err != nil {
		return nil, err
	}
	return &domain.LicenseInfo{
		ContentLicense: enc.ContentLicense,
		Voucher:        v,
	}, nil
}
