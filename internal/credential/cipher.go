package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Blob layout: magic || salt(16) || nonce(12) || AES-256-GCM ciphertext.
// GCM authentication doubles as tamper detection: any bit flip or wrong
// passphrase fails to open rather than yielding silently wrong plaintext.
var magic = []byte("cmcred01")

const (
	saltSize  = 16
	nonceSize = 12

	// scrypt parameters (interactive-grade).
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keySize = 32
)

func deriveKey(passphrase, salt []byte) ([]byte, error) {
	return scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
}

// seal encrypts plaintext under a passphrase-derived key.
func seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, magic)
	return out, nil
}

// open decrypts a sealed blob. Any structural or authentication failure is
// reported uniformly so callers can map it to a decryption error.
func open(blob, passphrase []byte) ([]byte, error) {
	header := len(magic) + saltSize + nonceSize
	if len(blob) < header {
		return nil, fmt.Errorf("blob too short (%d bytes)", len(blob))
	}
	if string(blob[:len(magic)]) != string(magic) {
		return nil, fmt.Errorf("unrecognized blob header")
	}
	salt := blob[len(magic) : len(magic)+saltSize]
	nonce := blob[len(magic)+saltSize : header]
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, blob[header:], magic)
	if err != nil {
		return nil, fmt.Errorf("authenticate ciphertext: %w", err)
	}
	return plaintext, nil
}
