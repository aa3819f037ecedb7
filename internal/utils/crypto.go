// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// encPrefix marks values stored encrypted in the settings file
const encPrefix = "enc:"

// deriveKey stretches an arbitrary passphrase into an AES-256 key
func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts the plaintext using AES-GCM and returns a prefixed base64 string
func Encrypt(plaintext, passphrase string) (string, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt
func Decrypt(ciphertext, passphrase string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return "", fmt.Errorf("value is not encrypted")
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext[len(encPrefix):])
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether value was produced by Encrypt
func IsEncrypted(value string) bool {
	return len(value) > len(encPrefix) && value[:len(encPrefix)] == encPrefix
}
