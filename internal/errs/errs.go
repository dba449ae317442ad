// Package errs defines the error taxonomy shared by the extraction pipeline.
//
// Run-fatal errors (configuration, backend, no files found) abort a sync;
// DecodeError is per file and only logged unless the run is configured to
// treat it as fatal.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrDecode             = errors.New("decode error")
	ErrNoFilesFound       = errors.New("no files found")
)

// ConfigError reports an invalid or unsupported configuration value.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid config %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// BackendError reports a listing, fetch or connection failure.
type BackendError struct {
	Protocol string
	Path     string
	Op       string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s://%s: %v", e.Op, e.Protocol, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackendUnavailable }

// DecodeError reports a file whose content could not be turned into text.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NoFilesFoundError is returned when a listing contains nothing to consider.
type NoFilesFoundError struct {
	Path    string
	Pattern string
}

func (e *NoFilesFoundError) Error() string {
	msg := fmt.Sprintf("no files found under %q", e.Path)
	if e.Pattern != "" {
		msg += fmt.Sprintf(" (file_regex %q)", e.Pattern)
	}
	return msg + ": choose a different filepath or a more lenient file_regex"
}

func (e *NoFilesFoundError) Is(target error) bool { return target == ErrNoFilesFound }

// Config is a shorthand for building a *ConfigError.
func Config(field, value, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// Code is a coarse error class used in log fields.
type Code string

const (
	CodeUnknown Code = "unknown"
	CodeConfig  Code = "config"
	CodeBackend Code = "backend"
	CodeDecode  Code = "decode"
	CodeNoFiles Code = "no_files"
	CodeCancel  Code = "cancel"
)

// Classify maps err onto a Code using sentinel matching only.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, ErrConfiguration):
		return CodeConfig
	case errors.Is(err, ErrNoFilesFound):
		return CodeNoFiles
	case errors.Is(err, ErrBackendUnavailable):
		return CodeBackend
	case errors.Is(err, ErrDecode):
		return CodeDecode
	}
	return CodeUnknown
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	return err != nil && !errors.Is(err, ErrDecode)
}
