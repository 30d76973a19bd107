// Package crypto provides the cryptographic primitives for the client:
// key-material encodings, the AES-CBC block cipher used by vouchers, and the
// RSA request signer for device-bound API calls.
package crypto

import (
	"encoding/base64"
	"encoding/hex"
)

// EncodeBase64 encodes bytes with standard base64 padding.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard padded base64.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64URL encodes bytes as unpadded base64url (RFC 4648 §5).
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes unpadded base64url.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// EncodeHex encodes bytes as lowercase hex.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}
