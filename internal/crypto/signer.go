package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
	"time"
)

// SignatureAlgorithm is the value sent in the x-adp-alg header.
const SignatureAlgorithm = "SHA256withRSA:1.0"

// RequestSigner signs device-bound API requests with the RSA key issued at
// registration. The signature covers method, path, timestamp, body and the
// ADP token, newline-joined, and is sent base64-encoded with the timestamp
// appended after a colon.
type RequestSigner struct {
	privateKey *rsa.PrivateKey
	adpToken   string
}

// NewRequestSigner parses the PEM private key from the device credentials.
func NewRequestSigner(privateKeyPEM, adpToken string) (*RequestSigner, error) {
	key, err := parsePrivateKey([]byte(privateKeyPEM))
	if err != nil {
		return nil, err
	}
	return &RequestSigner{privateKey: key, adpToken: adpToken}, nil
}

// Sign produces the x-adp-signature header value for a request at the given
// instant. path must include the query string if one is present.
func (s *RequestSigner) Sign(method, path string, body []byte, at time.Time) (string, error) {
	timestamp := at.UTC().Format("2006-01-02T15:04:05Z")
	payload := strings.Join([]string{method, path, timestamp, string(body), s.adpToken}, "\n")

	hashed := sha256.Sum256([]byte(payload))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	return EncodeBase64(signature) + ":" + timestamp, nil
}

// AdpToken returns the token sent in the x-adp-token header.
func (s *RequestSigner) AdpToken() string {
	return s.adpToken
}

// parsePrivateKey decodes a PEM RSA private key, accepting PKCS#8 and falling
// back to PKCS#1 since the vendor has issued both encodings.
func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in device private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("device private key is not RSA")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse device private key: %w", err)
	}
	return key, nil
}
