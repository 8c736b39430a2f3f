// Package core provides the domain types shared by the ingestion engine.
package core

import (
	"context"
	"io"
)

// Kind identifies the media kind of an incoming submission.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVoice    Kind = "voice"
	KindVideo    Kind = "video"
	KindSticker  Kind = "sticker"
	KindContact  Kind = "contact"
)

// Identity is the stable key identifying a sender across messages.
// It is the sender's handle when one exists, otherwise their numeric id.
type Identity string

// Submission is one piece of user-supplied content delivered by the
// messaging gateway. Exactly one of Text or Open carries the payload,
// depending on Kind.
type Submission struct {
	// TraceID correlates log lines and journal entries for one submission.
	TraceID string

	From Identity
	Kind Kind

	// Text is the free text body for KindText submissions.
	Text string

	// Caption is the optional caption attached to a media submission.
	Caption string

	// MIME is the transport-reported media type, if any.
	MIME string

	// Open returns a streaming handle for the binary payload.
	// Nil for KindText. The gateway owns download timeouts.
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Replier sends a text reply back to the submission's sender.
// Implementations may fail; callers treat replies as best-effort.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}
