// Package extension decides the file suffix for an incoming
// submission. Resolution is an ordered pipeline of strategies; each
// either returns an extension or passes, and the first opinion wins:
//
//	pending override -> caption -> MIME hint -> per-kind default
//
// A fixed denylist substitution (php -> txt) runs on the winner
// regardless of which strategy produced it, so a public paste URL can
// never look server-executable.
package extension

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"tmphost/internal/core"
	"tmphost/internal/session"
)

// Advisory messages sent back to the sender on rejected input. These
// are user input errors: non-fatal, resolution falls through.
const (
	adviceBadCaption = "ignoring unrecognized caption"
	adviceBadChars   = "extension contains characters that are not alphanumeric, underscore, or dash"
	adviceBadMIME    = "ignoring unrecognized MIME type"
)

// preferredExts pins the canonical extension for MIME types where the
// platform table is ambiguous or ugly.
var preferredExts = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"text/plain":      "txt",
	"application/pdf": "pdf",
	"audio/mpeg":      "mp3",
	"audio/ogg":       "ogg",
	"video/mp4":       "mp4",
}

// Request describes one resolution.
type Request struct {
	Identity core.Identity
	// Default is the per-kind fallback extension.
	Default string
	// MIME is the transport-reported media type, if any.
	MIME string
	// Caption is the user-supplied caption, if any.
	Caption string
	// AllowOverride lets a pending per-identity override win.
	AllowOverride bool
	// Quiet suppresses all advisories, for media kinds where a
	// default is unsurprising.
	Quiet bool
}

// Advise delivers one advisory message to the sender.
type Advise func(text string)

// Resolver resolves extensions against the per-identity override state.
type Resolver struct {
	sessions session.Store
}

// New creates a Resolver backed by the given session store.
func New(sessions session.Store) *Resolver {
	return &Resolver{sessions: sessions}
}

type strategy func(ctx context.Context, req Request, advise Advise) (string, bool, error)

// Resolve runs the pipeline and returns the final extension. It only
// fails on session-store errors; rejected input produces an advisory
// and falls through.
func (r *Resolver) Resolve(ctx context.Context, req Request, advise Advise) (string, error) {
	if advise == nil || req.Quiet {
		advise = func(string) {}
	}

	strategies := []strategy{
		r.fromOverride,
		fromCaption,
		fromMIME,
		fromDefault,
	}

	for _, s := range strategies {
		ext, ok, err := s(ctx, req, advise)
		if err != nil {
			return "", err
		}
		if ok {
			return Sanitize(ext), nil
		}
	}

	// fromDefault always has an opinion; unreachable.
	return Sanitize(req.Default), nil
}

// fromOverride consumes a pending single-use override, if allowed.
func (r *Resolver) fromOverride(ctx context.Context, req Request, _ Advise) (string, bool, error) {
	if !req.AllowOverride {
		return "", false, nil
	}
	ext, ok, err := r.sessions.ConsumeOverride(ctx, req.Identity)
	if err != nil {
		return "", false, fmt.Errorf("failed to consume override: %w", err)
	}
	return ext, ok, nil
}

// fromCaption accepts captions of the form "." + [A-Za-z0-9_-]+.
func fromCaption(_ context.Context, req Request, advise Advise) (string, bool, error) {
	if req.Caption == "" {
		return "", false, nil
	}

	ext, err := ParseDotted(req.Caption)
	if err != nil {
		advise(err.Error())
		return "", false, nil
	}
	return ext, true, nil
}

// fromMIME maps the MIME hint through the preferred table, then the
// platform table. Unmapped types advise and fall through.
func fromMIME(_ context.Context, req Request, advise Advise) (string, bool, error) {
	if req.MIME == "" {
		return "", false, nil
	}

	if ext, ok := preferredExts[req.MIME]; ok {
		return ext, true, nil
	}

	exts, err := mime.ExtensionsByType(req.MIME)
	if err != nil || len(exts) == 0 {
		advise(adviceBadMIME)
		return "", false, nil
	}

	ext := strings.TrimPrefix(exts[0], ".")
	// Common MIME tables guess jpe for image/jpeg.
	if ext == "jpe" {
		ext = "jpg"
	}
	return ext, true, nil
}

func fromDefault(_ context.Context, req Request, _ Advise) (string, bool, error) {
	return req.Default, true, nil
}

// ParseDotted parses a user-supplied ".ext" string, as used in
// captions and the /extension command.
func ParseDotted(s string) (string, error) {
	if !strings.HasPrefix(s, ".") {
		return "", fmt.Errorf("%s", adviceBadCaption)
	}
	ext := s[1:]
	if ext == "" || !validExtChars(ext) {
		return "", fmt.Errorf("%s", adviceBadChars)
	}
	return ext, nil
}

func validExtChars(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// Sanitize applies the fixed denylist substitution to a resolved
// extension.
func Sanitize(ext string) string {
	if ext == "php" {
		return "txt"
	}
	return ext
}
