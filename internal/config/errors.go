package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the kind of every configuration failure: a missing
// required key, a malformed declaration or a duplicate ordinal.
var ErrConfiguration = errors.New("configuration error")

// Error describes a configuration failure for a specific key.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Key, e.Msg)
}

func (e *Error) Unwrap() error { return ErrConfiguration }

// Errorf builds a configuration error for key.
func Errorf(key, format string, args ...any) error {
	return &Error{Key: key, Msg: fmt.Sprintf(format, args...)}
}
