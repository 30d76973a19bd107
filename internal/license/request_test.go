package license

import (
	"bytes"
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkb69/aaxconnect/internal/api"
	"github.com/mkb69/aaxconnect/internal/crypto"
	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/voucher"
)

const (
	testSerial     = "A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6"
	testCustomerID = "CUST1"
	testDeviceType = "A2CZJZGLK2JJVM"
	testASIN       = "B0TEST"
)

func testCredentials(t *testing.T) (*domain.DeviceCredentials, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return &domain.DeviceCredentials{
		AdpToken:         "adp-token",
		DevicePrivateKey: string(pemBytes),
		DeviceInfo:       []byte(`{"device_serial_number":"` + testSerial + `","device_type":"` + testDeviceType + `"}`),
		CustomerInfo:     []byte(`{"user_id":"` + testCustomerID + `"}`),
	}, key
}

// encryptTestVoucher produces the base64 NUL-padded voucher the mock vendor
// embeds in its license response.
func encryptTestVoucher(t *testing.T, plaintext string) string {
	t.Helper()
	key, iv := voucher.DeriveKeyIV(testDeviceType, testSerial, testCustomerID, testASIN)
	padded := []byte(plaintext)
	if rem := len(padded) % 16; rem != 0 {
		padded = append(padded, bytes.Repeat([]byte{0}, 16-rem)...)
	}
	ciphertext, err := crypto.AESEncryptCBC(key, iv, padded, false)
	if err != nil {
		t.Fatalf("encrypt voucher fixture: %v", err)
	}
	return crypto.EncodeBase64(ciphertext)
}

func newLicenseTestServer(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/1.0/content/{asin}/licenserequest", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api.NewClient("com", api.WithBaseURLs(srv.URL, srv.URL))
}

func TestFetchSignsRequest(t *testing.T) {
	creds, key := testCredentials(t)
	voucherB64 := encryptTestVoucher(t, `{"key":"K","iv":"V","rules":[]}`)

	var gotHeaders http.Header
	var gotBody []byte
	apiClient := newLicenseTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"content_license":{"status_code":"Granted","license_response":"` + voucherB64 + `"}}`))
	})

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client, err := NewRequestClient(apiClient, creds, WithRequestClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewRequestClient failed: %v", err)
	}

	enc, err := client.Fetch(context.Background(), testASIN)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if enc.ASIN != testASIN || enc.VoucherB64 != voucherB64 {
		t.Error("encrypted voucher not extracted from the response")
	}

	if gotHeaders.Get("x-adp-token") != "adp-token" {
		t.Errorf("missing x-adp-token header, got %q", gotHeaders.Get("x-adp-token"))
	}
	if gotHeaders.Get("x-adp-alg") != "SHA256withRSA:1.0" {
		t.Errorf("unexpected x-adp-alg %q", gotHeaders.Get("x-adp-alg"))
	}

	// The signature must verify over METHOD\nPATH\nTIMESTAMP\nBODY\nADP_TOKEN
	sigHeader := gotHeaders.Get("x-adp-signature")
	idx := strings.Index(sigHeader, ":")
	if idx < 0 {
		t.Fatalf("signature %q has no timestamp suffix", sigHeader)
	}
	sig, err := base64.StdEncoding.DecodeString(sigHeader[:idx])
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	payload := strings.Join([]string{
		"POST",
		"/1.0/content/" + testASIN + "/licenserequest",
		sigHeader[idx+1:],
		string(gotBody),
		"adp-token",
	}, "\n")
	hashed := sha256.Sum256([]byte(payload))
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, stdcrypto.SHA256, hashed[:], sig); err != nil {
		t.Errorf("request signature does not verify: %v", err)
	}
}

func TestFetchAndDecrypt(t *testing.T) {
	creds, _ := testCredentials(t)
	voucherB64 := encryptTestVoucher(t, `{"key":"HEXKEY","iv":"HEXIV","rules":[{"name":"DefaultExpiresRule","parameters":[{"type":"EXPIRES","expireDate":"2030-01-01T00:00:00Z"}]}]}`)

	apiClient := newLicenseTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content_license":{"status_code":"Granted","license_response":"` + voucherB64 + `"}}`))
	})
	client, err := NewRequestClient(apiClient, creds)
	if err != nil {
		t.Fatalf("NewRequestClient failed: %v", err)
	}

	info, err := client.FetchAndDecrypt(context.Background(), creds, testASIN)
	if err != nil {
		t.Fatalf("FetchAndDecrypt failed: %v", err)
	}
	if info.Voucher == nil || info.Voucher.Key != "HEXKEY" || info.Voucher.IV != "HEXIV" {
		t.Fatalf("voucher not decrypted: %#v", info.Voucher)
	}

	// The decrypted license validates against its own rules
	result := Validate(info, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	if !result.Valid || result.Status != domain.StatusValid {
		t.Errorf("Expected a valid license, got %s", result.Status)
	}
}

func TestFetchRejected(t *testing.T) {
	creds, _ := testCredentials(t)
	apiClient := newLicenseTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"not entitled"}`))
	})
	client, err := NewRequestClient(apiClient, creds)
	if err != nil {
		t.Fatalf("NewRequestClient failed: %v", err)
	}

	_, err = client.Fetch(context.Background(), testASIN)
	if err == nil {
		t.Fatal("expected error for rejected license request")
	}
	if !aaxerrors.IsCode(err, aaxerrors.CodeNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
	if !strings.Contains(err.Error(), "not entitled") {
		t.Errorf("error should carry the response body, got %v", err)
	}
}

func TestFetchMissingVoucher(t *testing.T) {
	creds, _ := testCredentials(t)
	apiClient := newLicenseTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content_license":{"status_code":"Granted"}}`))
	})
	client, err := NewRequestClient(apiClient, creds)
	if err != nil {
		t.Fatalf("NewRequestClient failed: %v", err)
	}

	_, err = client.Fetch(context.Background(), testASIN)
	if err == nil {
		t.Fatal("expected error for response without voucher")
	}
	if !aaxerrors.IsCode(err, aaxerrors.CodeDecoding) {
		t.Errorf("expected decoding error, got %v", err)
	}
}

func TestNewRequestClientBadKey(t *testing.T) {
	creds := &domain.DeviceCredentials{DevicePrivateKey: "garbage", AdpToken: "t"}
	apiClient := newLicenseTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := NewRequestClient(apiClient, creds); err == nil {
		t.Error("expected error for malformed device key")
	}
}
