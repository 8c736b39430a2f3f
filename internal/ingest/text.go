package ingest

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"tmphost/internal/core"
	"tmphost/internal/extension"
	"tmphost/internal/session"
)

const greeting = "Hi! I'm the tmphost bot.\n\nSend me stuff and I'll host it!"

const streakWarning = "I don't understand that. If you keep sending me things I can't handle, I'll just keep ignoring them."

// isCommand reports whether text invokes cmd, alone or followed by
// arguments or a payload.
func isCommand(text, cmd string) bool {
	return text == cmd || strings.HasPrefix(text, cmd+" ") || strings.HasPrefix(text, cmd+"\n")
}

// handleText routes a text submission to its command handler, or to
// the assembly state machine for plain text. Command branches touch
// only the streak counter; in-progress assembly survives an
// interleaved /start or /extension.
func (d *Dispatcher) handleText(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier) error {
	st, err := d.sessions.Get(ctx, sub.From)
	if err != nil {
		return core.NewIOError(genericFailureReply, err)
	}

	switch {
	case isCommand(sub.Text, "/start"):
		st.UnrecognizedStreak = 0
		if err := d.sessions.Set(ctx, sub.From, st); err != nil {
			return core.NewIOError(genericFailureReply, err)
		}
		return reply.Reply(ctx, greeting)

	case isCommand(sub.Text, "/text"):
		return d.handleTextUpload(ctx, log, sub, reply, st)

	case isCommand(sub.Text, "/extension"):
		return d.handleExtension(ctx, sub, reply, st)

	case isCommand(sub.Text, "/delete"):
		return d.handleDelete(ctx, sub, reply, st)

	case st.AwaitingContinuation:
		return d.handleContinuation(ctx, log, sub, reply, st)

	default:
		return d.handleUnrecognized(ctx, log, sub, reply, st)
	}
}

// handleTextUpload starts a fresh text assembly. Any accumulation in
// progress is discarded without complaint: there is no way to tell an
// abandoned sequence from a stalled one.
func (d *Dispatcher) handleTextUpload(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier, st session.State) error {
	cmdline, payload, hasPayload := strings.Cut(sub.Text, "\n")

	var caption string
	if _, arg, ok := strings.Cut(cmdline, " "); ok {
		caption = strings.TrimSpace(arg)
	}

	st = session.State{TextCaption: caption}

	if !hasPayload {
		if err := d.sessions.Set(ctx, sub.From, st); err != nil {
			return core.NewIOError(genericFailureReply, err)
		}
		return reply.Reply(ctx, "send the text on the line after /text")
	}

	// The transport truncates the whole message, command line
	// included, so truncation shows as the full text hitting the
	// boundary even though the payload alone never can.
	if utf8.RuneCountInString(sub.Text) == d.cfg.TextBoundary {
		st.AccumulatedText = payload
		st.AwaitingContinuation = true
		log.Debug("text hit the message boundary, accumulating")
		if err := d.sessions.Set(ctx, sub.From, st); err != nil {
			return core.NewIOError(genericFailureReply, err)
		}
		return nil
	}

	if err := d.sessions.Set(ctx, sub.From, session.State{}); err != nil {
		return core.NewIOError(genericFailureReply, err)
	}
	return d.flushText(ctx, log, sub, reply, payload, caption)
}

// handleContinuation appends the next chunk of an in-progress
// assembly, flushing once a chunk arrives short of the boundary.
func (d *Dispatcher) handleContinuation(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier, st session.State) error {
	st.AccumulatedText += sub.Text

	if utf8.RuneCountInString(sub.Text) == d.cfg.TextBoundary {
		log.Debug("continuation chunk hit the message boundary, still accumulating")
		if err := d.sessions.Set(ctx, sub.From, st); err != nil {
			return core.NewIOError(genericFailureReply, err)
		}
		return nil
	}

	content, caption := st.AccumulatedText, st.TextCaption
	if err := d.sessions.Set(ctx, sub.From, session.State{}); err != nil {
		return core.NewIOError(genericFailureReply, err)
	}
	return d.flushText(ctx, log, sub, reply, content, caption)
}

// flushText resolves an extension for the assembled text and uploads
// it as one object.
func (d *Dispatcher) flushText(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier, content, caption string) error {
	ext, err := d.resolver.Resolve(ctx, extension.Request{
		Identity:      sub.From,
		Default:       "txt",
		Caption:       caption,
		AllowOverride: true,
	}, func(msg string) { _ = reply.Reply(ctx, msg) })
	if err != nil {
		return err
	}

	return d.upload(ctx, log, sub, reply, ext, strings.NewReader(content))
}

// handleExtension records a single-use extension override for the
// sender's next upload.
func (d *Dispatcher) handleExtension(ctx context.Context, sub core.Submission, reply core.Replier, st session.State) error {
	st.UnrecognizedStreak = 0
	if err := d.sessions.Set(ctx, sub.From, st); err != nil {
		return core.NewIOError(genericFailureReply, err)
	}

	fields := strings.Fields(sub.Text)
	if len(fields) < 2 {
		return reply.Reply(ctx, "usage: /extension .ext")
	}

	ext, err := extension.ParseDotted(fields[1])
	if err != nil {
		return reply.Reply(ctx, err.Error())
	}
	ext = extension.Sanitize(ext)

	if err := d.sessions.SetOverride(ctx, sub.From, ext); err != nil {
		return core.NewIOError(genericFailureReply, err)
	}
	return reply.Reply(ctx, "your next upload will use ."+ext)
}

// handleDelete runs the bulk-deletion workflow.
func (d *Dispatcher) handleDelete(ctx context.Context, sub core.Submission, reply core.Replier, st session.State) error {
	st.UnrecognizedStreak = 0
	if err := d.sessions.Set(ctx, sub.From, st); err != nil {
		return core.NewIOError(genericFailureReply, err)
	}

	var supplied string
	if fields := strings.Fields(sub.Text); len(fields) >= 2 {
		supplied = fields[1]
	}

	_, err := d.purger.Request(ctx, sub.TraceID, sub.From, supplied, reply)
	return err
}

// handleUnrecognized counts consecutive inputs that are neither
// commands nor continuation chunks and warns once per full streak.
func (d *Dispatcher) handleUnrecognized(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier, st session.State) error {
	st.UnrecognizedStreak++
	if st.UnrecognizedStreak >= d.cfg.StreakLimit {
		st.UnrecognizedStreak = 0
		log.Info("unrecognized input streak reached the warning threshold")
		if err := d.sessions.Set(ctx, sub.From, st); err != nil {
			return core.NewIOError(genericFailureReply, err)
		}
		return reply.Reply(ctx, streakWarning)
	}

	log.Debug("ignoring unrecognized input", "streak", st.UnrecognizedStreak)
	return d.sessions.Set(ctx, sub.From, st)
}
