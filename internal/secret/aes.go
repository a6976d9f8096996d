package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 10000
)

// AESDecrypter decrypts payloads produced by Encrypt with the same
// passphrase. The payload is base64(salt | nonce | ciphertext).
type AESDecrypter struct {
	passphrase []byte
}

func NewAESDecrypter(passphrase string) *AESDecrypter {
	return &AESDecrypter{passphrase: []byte(passphrase)}
}

func (a *AESDecrypter) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(a.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns the brace-wrapped encrypted form of plain.
func (a *AESDecrypter) Encrypt(plain string) (string, error) {
	if len(a.passphrase) == 0 {
		return "", errors.New("empty passphrase")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	aead, err := a.gcm(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := append(salt, nonce...)
	out = aead.Seal(out, nonce, []byte(plain), nil)
	return Wrap(base64.StdEncoding.EncodeToString(out)), nil
}

func (a *AESDecrypter) Decrypt(payload string) (string, error) {
	if len(a.passphrase) == 0 {
		return "", fmt.Errorf("%w: empty passphrase", ErrDecrypt)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < saltSize {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}
	aead, err := a.gcm(raw[:saltSize])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	rest := raw[saltSize:]
	if len(rest) < aead.NonceSize() {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}
	plain, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}
