package etl

import (
	"errors"
	"fmt"
)

// ErrDispatcherState is returned when a batch arrives in a state that
// cannot take it.
var ErrDispatcherState = errors.New("illegal dispatcher state")

// ReaderError is a failure raised on the reading side, including failing
// exclusion filters. Code and RawMessage are optional upstream details.
type ReaderError struct {
	Reader     string
	Code       int
	RawMessage string
	Err        error
}

func (e *ReaderError) Error() string {
	return formatRW("reader", e.Reader, e.Code, e.RawMessage, e.Err)
}

func (e *ReaderError) Unwrap() error { return e.Err }

// WriterError is a failure raised by a writer.
type WriterError struct {
	Writer     string
	Code       int
	RawMessage string
	Err        error
}

func (e *WriterError) Error() string {
	return formatRW("writer", e.Writer, e.Code, e.RawMessage, e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }

func formatRW(kind, name string, code int, raw string, err error) string {
	msg := fmt.Sprintf("%s %s", kind, name)
	if code != 0 {
		msg += fmt.Sprintf(" (code %d)", code)
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	if raw != "" {
		msg += ": " + raw
	}
	return msg
}

// NewWriterError wraps err for writer name. Codes and raw messages of an
// existing WriterError are kept.
func NewWriterError(name string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriterError
	if errors.As(err, &we) {
		if we.Writer == "" {
			we.Writer = name
		}
		return err
	}
	return &WriterError{Writer: name, Err: err}
}

// NewReaderError wraps err for reader name. Writer and dispatcher errors
// surfacing through a reader pass unchanged.
func NewReaderError(name string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriterError
	if errors.As(err, &we) || errors.Is(err, ErrDispatcherState) {
		return err
	}
	var re *ReaderError
	if errors.As(err, &re) {
		if re.Reader == "" {
			re.Reader = name
		}
		return err
	}
	return &ReaderError{Reader: name, Err: err}
}
