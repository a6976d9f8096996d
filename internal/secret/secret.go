// Package secret resolves encrypted configuration values.
//
// Encrypted values are stored in configuration files wrapped in braces,
// e.g. password={q8dY...}. The part between the braces is handed to a
// Decrypter; plain values are never touched.
package secret

import (
	"errors"
	"strings"
)

// ErrDecrypt marks every decryption failure. There is no partial fallback.
var ErrDecrypt = errors.New("decryption failed")

// Decrypter turns the opaque payload of an encrypted value into plain text.
type Decrypter interface {
	Decrypt(payload string) (string, error)
}

// DecrypterFunc adapts a function to Decrypter.
type DecrypterFunc func(payload string) (string, error)

func (f DecrypterFunc) Decrypt(payload string) (string, error) { return f(payload) }

// IsEncrypted reports whether value is wrapped in the encryption marker.
func IsEncrypted(value string) bool {
	return len(value) >= 2 && strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}")
}

// Unwrap strips the encryption marker.
func Unwrap(value string) string {
	if !IsEncrypted(value) {
		return value
	}
	return value[1 : len(value)-1]
}

// Wrap encloses payload in the encryption marker.
func Wrap(payload string) string {
	return "{" + payload + "}"
}

// Resolve decrypts value when it carries the marker and returns it as is
// otherwise.
func Resolve(d Decrypter, value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if d == nil {
		return "", errors.Join(ErrDecrypt, errors.New("no decrypter configured"))
	}
	plain, err := d.Decrypt(Unwrap(value))
	if err != nil {
		if errors.Is(err, ErrDecrypt) {
			return "", err
		}
		return "", errors.Join(ErrDecrypt, err)
	}
	return plain, nil
}
