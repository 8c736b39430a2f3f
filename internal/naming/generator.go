// Package naming produces collision-free storage paths for uploads.
package naming

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"tmphost/internal/observability"
	"tmphost/internal/store"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrExhaustedRetries is returned when no free path was found within
// the configured retry bound. At the default length (62^20 space) this
// only happens under load patterns the operator should know about, so
// callers log it as a capacity signal.
var ErrExhaustedRetries = errors.New("no unique path found")

// Generator reserves unique storage paths against a content store.
//
// The existence check and the later write are not covered by one lock;
// two concurrent reservations can in principle pick the same candidate
// before either writes. Accepted for a best-effort naming scheme with
// an astronomically small collision probability at the default length.
type Generator struct {
	store   store.Store
	length  int
	tries   int
	metrics *observability.Metrics
}

// New creates a Generator drawing ids of the given length with a
// bounded number of attempts per reservation. metrics may be nil.
func New(st store.Store, length, tries int, metrics *observability.Metrics) *Generator {
	return &Generator{store: st, length: length, tries: tries, metrics: metrics}
}

// Reserve returns a storage path "/<id>.<ext>" that does not exist in
// the store at call time. It fails with ErrExhaustedRetries after the
// configured number of attempts.
func (g *Generator) Reserve(ctx context.Context, ext string) (string, error) {
	for i := 0; i < g.tries; i++ {
		id, err := randomID(g.length)
		if err != nil {
			return "", fmt.Errorf("failed to draw id: %w", err)
		}

		path := "/" + id + "." + ext
		exists, err := g.store.Exists(ctx, path)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
		if !exists {
			return path, nil
		}
		g.metrics.ObserveReserveCollision()
		slog.Warn("id collision, retrying", "attempt", i+1, "length", g.length)
	}

	g.metrics.ObserveReserveExhausted()
	return "", fmt.Errorf("%w after %d tries", ErrExhaustedRetries, g.tries)
}

// randomID draws length characters uniformly from the 62-character
// alphanumeric alphabet. Rejection sampling keeps the draw unbiased.
func randomID(length int) (string, error) {
	// 248 is the largest multiple of 62 below 256.
	const limit = 248

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b < limit {
				out = append(out, alphabet[int(b)%len(alphabet)])
				if len(out) == length {
					break
				}
			}
		}
	}
	return string(out), nil
}
