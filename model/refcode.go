package model

import (
	"errors"
	"fmt"
	"strings"
)

// Refcode is a permanent, deployment-prefixed, human-readable identifier
// of the form "<prefix>:<code>", e.g. "grey:BQDWVR". It is assigned once
// at creation and never reassigned.
type Refcode string

// CodeLength is the number of alphabetic characters in the code portion.
const CodeLength = 6

// MaxPrefixLength bounds the deployment prefix.
const MaxPrefixLength = 12

var (
	// ErrBadPrefix is returned for prefixes that fail the refcode grammar.
	ErrBadPrefix = errors.New("specimen: invalid identifier prefix")

	// ErrBadRefcode is returned for strings that do not parse as refcodes.
	ErrBadRefcode = errors.New("specimen: invalid refcode")
)

// ValidatePrefix checks a deployment identifier prefix: 1 to 12 characters,
// alphanumeric, starting with a letter.
func ValidatePrefix(prefix string) error {
	if prefix == "" || len(prefix) > MaxPrefixLength {
		return fmt.Errorf("%w: must be 1-%d characters, got %q", ErrBadPrefix, MaxPrefixLength, prefix)
	}
	for i, c := range prefix {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return fmt.Errorf("%w: must start with a letter, got %q", ErrBadPrefix, prefix)
			}
		default:
			return fmt.Errorf("%w: %q contains %q", ErrBadPrefix, prefix, c)
		}
	}
	return nil
}

// NewRefcode combines a validated prefix with a code portion.
func NewRefcode(prefix, code string) Refcode {
	return Refcode(prefix + ":" + code)
}

// ExpandRefcode turns a possibly bare code into a full refcode using the
// deployment prefix. Already-prefixed refcodes pass through unchanged.
func ExpandRefcode(raw, prefix string) Refcode {
	if strings.Count(raw, ":") != 1 {
		return NewRefcode(prefix, raw)
	}
	return Refcode(raw)
}

// Prefix returns the deployment prefix portion, or "" if malformed.
func (r Refcode) Prefix() string {
	prefix, _, ok := strings.Cut(string(r), ":")
	if !ok {
		return ""
	}
	return prefix
}

// Code returns the code portion after the prefix, or "" if malformed.
func (r Refcode) Code() string {
	_, code, ok := strings.Cut(string(r), ":")
	if !ok {
		return ""
	}
	return code
}

// Validate checks the full refcode grammar.
func (r Refcode) Validate() error {
	prefix, code, ok := strings.Cut(string(r), ":")
	if !ok {
		return fmt.Errorf("%w: %q has no prefix separator", ErrBadRefcode, r)
	}
	if err := ValidatePrefix(prefix); err != nil {
		return err
	}
	if len(code) != CodeLength {
		return fmt.Errorf("%w: code portion of %q must be %d characters", ErrBadRefcode, r, CodeLength)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: code portion of %q must be uppercase alphabetic", ErrBadRefcode, r)
		}
	}
	return nil
}
