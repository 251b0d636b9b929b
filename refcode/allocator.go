// Package refcode allocates deployment-prefixed, globally unique,
// human-readable identifiers.
package refcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
)

// DefaultMaxAttempts bounds candidate generation. With 26^6 possible
// codes a collision streak this long means the space is effectively
// saturated, so the allocator gives up loudly instead of looping forever.
const DefaultMaxAttempts = 10

// ErrAllocationExhausted is returned when no free refcode was found
// within the attempt bound.
var ErrAllocationExhausted = errors.New("specimen: refcode space exhausted")

// Checker is the store-side uniqueness probe. It is an advisory fast
// path only: the final arbiter is the conditional write performed when
// the item is persisted.
type Checker interface {
	RefcodeExists(ctx context.Context, refcode model.Refcode) (bool, error)
}

// Allocator generates candidate refcodes optimistically and confirms
// them pessimistically against the store. Safe for concurrent use.
type Allocator struct {
	prefix      string
	checker     Checker
	maxAttempts int
	logger      *zap.Logger
}

// NewAllocator creates an Allocator for the given deployment prefix.
func NewAllocator(prefix string, checker Checker) (*Allocator, error) {
	if err := model.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Allocator{
		prefix:      prefix,
		checker:     checker,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.Get(),
	}, nil
}

// Allocate returns a refcode not currently present in the store.
// Two concurrent allocations can still race to the same code; the
// store's unique-index rejection on insert resolves that race, and the
// caller re-allocates on such a conflict.
func (a *Allocator) Allocate(ctx context.Context) (model.Refcode, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("generate refcode candidate: %w", err)
		}
		candidate := model.NewRefcode(a.prefix, code)

		exists, err := a.checker.RefcodeExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check refcode %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		a.logger.Debug("refcode candidate taken, retrying",
			zap.String("refcode", string(candidate)),
			zap.Int("attempt", attempt+1),
		)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.maxAttempts)
}

// randomCode draws a 6-character uppercase alphabetic code. Bytes at or
// above the largest multiple of 26 are rejected and redrawn so every
// letter is equally likely.
func randomCode() (string, error) {
	const limit = 256 - 256%26
	code := make([]byte, 0, model.CodeLength)
	buf := make([]byte, model.CodeLength)
	for len(code) < model.CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, 'A'+b%26)
			if len(code) == model.CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
