package crypto

import (
	"bytes"
	"testing"
)

var (
	testKey = []byte("0123456789abcdef")
	testIV  = []byte("fedcba9876543210")
)

func TestAESCBCRoundTripPadded(t *testing.T) {
	for _, plaintext := range [][]byte{
		[]byte("x"),
		[]byte("exactly 16 bytes"),
		[]byte("a longer plaintext that spans multiple blocks"),
	} {
		ciphertext, err := AESEncryptCBC(testKey, testIV, plaintext, true)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		decrypted, err := AESDecryptCBC(testKey, testIV, ciphertext, true)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("round trip changed plaintext %q", plaintext)
		}
	}
}

func TestAESCBCRoundTripUnpadded(t *testing.T) {
	plaintext := []byte("exactly 16 bytes")

	ciphertext, err := AESEncryptCBC(testKey, testIV, plaintext, false)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	decrypted, err := AESDecryptCBC(testKey, testIV, ciphertext, false)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("unpadded round trip changed the plaintext")
	}
}

func TestAESCBCUnpaddedKeepsNULPadding(t *testing.T) {
	// Vouchers are NUL-padded; unpadded decryption must return the NULs
	// untouched instead of treating them as PKCS#7 padding.
	plaintext := append([]byte(`{"key":"K"}`), bytes.Repeat([]byte{0}, 5)...)

	ciphertext, err := AESEncryptCBC(testKey, testIV, plaintext, false)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	decrypted, err := AESDecryptCBC(testKey, testIV, ciphertext, false)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("NUL padding was not preserved")
	}
}

func TestAESCBCUnpaddedRejectsPartialBlock(t *testing.T) {
	if _, err := AESEncryptCBC(testKey, testIV, []byte("short"), false); err == nil {
		t.Error("expected error for unpadded plaintext shorter than a block")
	}
	if _, err := AESDecryptCBC(testKey, testIV, []byte("short"), false); err == nil {
		t.Error("expected error for ciphertext shorter than a block")
	}
}

func TestAESCBCRejectsBadKeyAndIV(t *testing.T) {
	if _, err := AESDecryptCBC([]byte("too-short"), testIV, make([]byte, 16), false); err == nil {
		t.Error("expected error for invalid key size")
	}
	if _, err := AESDecryptCBC(testKey, []byte("too-short"), make([]byte, 16), false); err == nil {
		t.Error("expected error for invalid IV size")
	}
}

func TestUnpadPKCS7Invalid(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{1, 2, 3, 0},
		bytes.Repeat([]byte{17}, 16),
	} {
		if _, err := unpadPKCS7(data, 16); err == nil {
			t.Errorf("expected invalid padding error for %v", data)
		}
	}
}
