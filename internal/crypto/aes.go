package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESEncryptCBC encrypts plaintext with AES-CBC under the given key and IV.
// With padded=true the plaintext is PKCS#7 padded first; with padded=false the
// plaintext length must already be a multiple of the block size.
func AESEncryptCBC(key, iv, plaintext []byte, padded bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("aes: iv must be %d bytes, got %d", block.BlockSize(), len(iv))
	}

	data := plaintext
	if padded {
		data = padPKCS7(plaintext, block.BlockSize())
	} else if len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("aes: unpadded plaintext length %d is not a multiple of %d", len(data), block.BlockSize())
	}

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// AESDecryptCBC decrypts ciphertext with AES-CBC under the given key and IV.
// With padded=true PKCS#7 padding is stripped from the result; with
// padded=false the raw plaintext blocks are returned untouched. Vouchers are
// NUL-padded rather than PKCS#7-padded and must be decrypted unpadded.
func AESDecryptCBC(key, iv, ciphertext []byte, padded bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("aes: iv must be %d bytes, got %d", block.BlockSize(), len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("aes: ciphertext length %d is not a positive multiple of %d", len(ciphertext), block.BlockSize())
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	if padded {
		return unpadPKCS7(out, block.BlockSize())
	}
	return out, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("aes: empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("aes: invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("aes: invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
