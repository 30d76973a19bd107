// Package pkce generates the PKCE material and device identity used to bind
// an authorization code to one registration attempt (RFC 7636, S256 only).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkb69/aaxconnect/internal/crypto"
)

// DefaultVerifierLength is the number of random bytes in a code verifier.
// 32 bytes encode to 43 characters, the RFC 7636 minimum.
const DefaultVerifierLength = 32

// CreateCodeVerifier fills length random bytes from a cryptographically
// secure source and returns them as unpadded base64url. A verifier is never
// reused across sessions; callers generate one per login attempt.
func CreateCodeVerifier(length int) (string, error) {
	if length <= 0 {
		length = DefaultVerifierLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	return crypto.EncodeBase64URL(buf), nil
}

// CodeChallenge derives the S256 challenge for a verifier: SHA-256 over the
// verifier's UTF-8 text (not its decoded bytes), unpadded base64url.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return crypto.EncodeBase64URL(hash[:])
}

// BuildDeviceSerial returns a fresh device serial: a random UUID with the
// hyphens stripped, uppercased, always exactly 32 hex characters.
func BuildDeviceSerial() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// BuildClientID derives the registration client id for a device serial and
// device type: the raw bytes of serial + "#" + deviceType, hex-encoded as one
// buffer.
func BuildClientID(serial, deviceType string) string {
	return crypto.EncodeHex([]byte(serial + "#" + deviceType))
}
