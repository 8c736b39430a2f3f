// Package session tracks per-identity state: pending extension
// overrides, in-progress long-text assembly, and the
// unrecognized-input streak. Supports an in-memory backend and a
// Redis backend for multi-instance deployments.
package session

import (
	"context"

	"tmphost/internal/core"
)

// State is the per-identity session record. The zero value is a valid
// idle session; sessions are created lazily on first use and live for
// the process lifetime (memory backend) or until TTL (redis backend).
type State struct {
	// AccumulatedText collects the chunks of one logical long-text
	// upload. Cleared when a new /text command starts or when
	// assembly completes.
	AccumulatedText string `json:"accumulated_text"`

	// TextCaption is the optional ".ext" argument given on the /text
	// command line, held until the accumulated text flushes.
	TextCaption string `json:"text_caption,omitempty"`

	// AwaitingContinuation is true while the previous chunk reached
	// the transport's truncation boundary and another chunk is
	// still expected.
	AwaitingContinuation bool `json:"awaiting_continuation"`

	// UnrecognizedStreak counts consecutive unrecognized inputs;
	// reset after a warning or a valid command.
	UnrecognizedStreak int `json:"unrecognized_streak"`
}

// Store holds session state and pending extension overrides by
// identity. Implementations must be safe for concurrent use; the
// dispatcher additionally serializes access per identity.
type Store interface {
	// Get returns the session for an identity, zero-valued if none.
	Get(ctx context.Context, id core.Identity) (State, error)

	// Set replaces the session for an identity.
	Set(ctx context.Context, id core.Identity, st State) error

	// SetOverride records a single-use extension override, replacing
	// any previous one. At most one override exists per identity.
	SetOverride(ctx context.Context, id core.Identity, ext string) error

	// ConsumeOverride returns and clears the pending override.
	// The second result is false when no override was pending.
	ConsumeOverride(ctx context.Context, id core.Identity) (string, bool, error)

	// Close releases any resources held by the store.
	Close() error
}
