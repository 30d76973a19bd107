// Package voucher decrypts license vouchers: key derivation from device and
// customer identity, AES-CBC decryption, and plaintext parsing.
package voucher

import (
	"crypto/sha256"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mkb69/aaxconnect/internal/crypto"
	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/metrics"
)

// legacyVoucherPattern matches the fixed key-first serialization older
// vouchers use. Best-effort compatibility shim only; it never recovers rules.
var legacyVoucherPattern = regexp.MustCompile(`^\{"key":"([^"]+)","iv":"([^"]+)",`)

// DeriveKeyIV derives the voucher cipher key and IV. SHA-256 over the
// concatenated ASCII identifiers, split 16/16. Deterministic and unsalted;
// the exact byte order interoperates with the vendor's encryption.
func DeriveKeyIV(deviceType, deviceSerial, customerID, asin string) (key, iv []byte) {
	digest := sha256.Sum256([]byte(deviceType + deviceSerial + customerID + asin))
	return digest[:16], digest[16:]
}

// Decrypt recovers the playback key, IV and rules from a base64 voucher.
// Repeated calls with identical inputs yield identical results.
func Decrypt(deviceSerial, customerID, deviceType, asin, base64Voucher string) (*domain.Voucher, error) {
	key, iv := DeriveKeyIV(deviceType, deviceSerial, customerID, asin)

	ciphertext, err := crypto.DecodeBase64(base64Voucher)
	if err != nil {
		metrics.RecordVoucherDecryption("bad_base64")
		return nil, aaxerrors.Wrap(err, aaxerrors.CodeDecryptionFailed, "voucher is not valid base64")
	}

	// The plaintext is NUL-padded to the block size, not PKCS#7-padded.
	plaintext, err := crypto.AESDecryptCBC(key, iv, ciphertext, false)
	if err != nil {
		metrics.RecordVoucherDecryption("cipher_error")
		return nil, aaxerrors.Wrap(err, aaxerrors.CodeDecryptionFailed, "voucher decryption failed")
	}
	text := strings.TrimRight(string(plaintext), "\x00")

	v, err := parseVoucher(text, asin)
	if err != nil {
		metrics.RecordVoucherDecryption("parse_error")
		return nil, err
	}

	metrics.RecordVoucherDecryption("success")
	return v, nil
}

// DecryptWithCredentials pulls the device and customer identity out of a
// credential set before decrypting. Missing identity fields fail before any
// cipher work.
func DecryptWithCredentials(creds *domain.DeviceCredentials, asin, base64Voucher string) (*domain.Voucher, error) {
	serial, err := creds.DeviceSerial()
	if err != nil {
		return nil, err
	}
	deviceType, err := creds.DeviceType()
	if err != nil {
		return nil, err
	}
	customerID, err := creds.CustomerID()
	if err != nil {
		return nil, err
	}
	return Decrypt(serial, customerID, deviceType, asin, base64Voucher)
}

// parseVoucher tries the structured JSON parse first and falls back to the
// legacy fixed-prefix match. The JSON path is authoritative.
func parseVoucher(text, asin string) (*domain.Voucher, error) {
	if gjson.Valid(text) {
		keyField := gjson.Get(text, "key")
		ivField := gjson.Get(text, "iv")
		if keyField.Type == gjson.String && ivField.Type == gjson.String {
			v := &domain.Voucher{
				Key:  keyField.String(),
				IV:   ivField.String(),
				ASIN: asin,
			}
			if a := gjson.Get(text, "asin"); a.Type == gjson.String {
				v.ASIN = a.String()
			}
			// Rules are extracted opportunistically; a malformed rules
			// array does not fail the voucher.
			if rules := gjson.Get(text, "rules"); rules.IsArray() {
				var parsed []domain.Rule
				if err := json.Unmarshal([]byte(rules.Raw), &parsed); err == nil {
					v.Rules = parsed
				}
			}
			return v, nil
		}
	}

	if m := legacyVoucherPattern.FindStringSubmatch(text); m != nil {
		return &domain.Voucher{Key: m[1], IV: m[2], ASIN: asin}, nil
	}

	return nil, aaxerrors.DecryptionFailed("voucher plaintext has no key/iv pair")
}
