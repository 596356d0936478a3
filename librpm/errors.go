package librpm

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
)

const (
	ErrConfig            = errors.Sentinel("librpm: configuration error")
	ErrAlreadyConfigured = errors.Sentinel("librpm is already configured, global state can't be configured again")
	ErrInvalidRootDir    = errors.Sentinel("librpm: invalid root directory")
	ErrDecode            = errors.Sentinel("librpm: tag decode error")
	ErrTagType           = errors.Sentinel("librpm: tag type mismatch")
	ErrElement           = errors.Sentinel("librpm: transaction element error")
	ErrRun               = errors.Sentinel("librpm: transaction failed")
	ErrNoEngine          = errors.Sentinel("librpm: no such engine")
	ErrNotInstalled      = errors.Sentinel("librpm: package is not installed")
)

// ConfigError reports a failure to read configuration or to define a macro.
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "librpm: " + e.Msg
	}
	return fmt.Sprintf("librpm: %s: %s", e.Msg, e.Path)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DecodeError is the panic value raised when a tag payload is not valid for
// its declared type. It is never returned.
type DecodeError struct {
	Tag  Tag
	Type TagType
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("librpm: failed to decode tag %v (%v): %v", e.Tag, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ElementError reports a rejected add-element call.
type ElementError struct {
	Op      string
	Package string
	Code    int
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("librpm: failed to add %s element for %s (code %d)", e.Op, e.Package, e.Code)
}

func (e *ElementError) Is(target error) bool { return target == ErrElement }

// RunError reports a transaction that did not commit, with the problems the
// engine raised.
type RunError struct {
	Code     int
	Problems []Problem
}

func (e *RunError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("librpm: transaction failed (code %d)", e.Code)
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("librpm: transaction failed with %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *RunError) Is(target error) bool { return target == ErrRun }
