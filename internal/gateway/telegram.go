// Package gateway adapts the Telegram Bot API to the ingestion
// engine. It owns all chat-transport concerns: long polling, sender
// filtering, payload downloads with a bounded timeout, and replies.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tmphost/config"
	"tmphost/internal/core"
	"tmphost/internal/ingest"
)

// Telegram is the long-polling gateway.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	dispatcher *ingest.Dispatcher
	whitelist  map[string]bool
	client     *http.Client

	done chan struct{}
}

// NewTelegram connects to the Bot API and prepares the gateway.
func NewTelegram(cfg config.TelegramConfig, d *ingest.Dispatcher) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	whitelist := make(map[string]bool, len(cfg.Whitelist))
	for _, name := range cfg.Whitelist {
		whitelist[NormalizeIdentity(name)] = true
	}

	slog.Info("connected to telegram", "account", bot.Self.UserName)

	return &Telegram{
		bot:        bot,
		dispatcher: d,
		whitelist:  whitelist,
		client:     &http.Client{Timeout: cfg.DownloadTimeout},
		done:       make(chan struct{}),
	}, nil
}

// NormalizeIdentity canonicalizes a handle to its "@name" form.
// Numeric ids pass through unchanged.
func NormalizeIdentity(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "@") {
		return name
	}
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return name
	}
	return "@" + name
}

// identityFor derives the stable per-user key: the handle when one
// exists, the numeric id otherwise.
func identityFor(user *tgbotapi.User) core.Identity {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return core.Identity("@" + user.UserName)
	}
	return core.Identity(strconv.FormatInt(user.ID, 10))
}

// Run consumes updates until ctx is cancelled. Messages are handed to
// the dispatcher from this single loop, so updates from one sender
// reach their stripe queue in the order Telegram delivered them.
func (g *Telegram) Run(ctx context.Context) error {
	defer close(g.done)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := g.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			g.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			g.handleUpdate(ctx, update)
		}
	}
}

func (g *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	identity := identityFor(msg.From)
	if !g.whitelist[string(identity)] {
		slog.Debug("ignoring message from non-whitelisted sender", "identity", identity)
		return
	}

	sub, ok := g.submissionFrom(msg)
	if !ok {
		return
	}
	sub.From = identity

	g.dispatcher.Enqueue(ctx, sub, g.replierFor(msg.Chat.ID))
}

// submissionFrom maps one Telegram message to a Submission.
func (g *Telegram) submissionFrom(msg *tgbotapi.Message) (core.Submission, bool) {
	sub := core.Submission{Caption: msg.Caption}

	switch {
	case msg.Text != "":
		sub.Kind = core.KindText
		sub.Text = msg.Text

	case len(msg.Photo) > 0:
		photo := bestPhoto(msg.Photo)
		sub.Kind = core.KindPhoto
		sub.Open = g.opener(photo.FileID)

	case msg.Document != nil:
		sub.Kind = core.KindDocument
		sub.MIME = msg.Document.MimeType
		sub.Open = g.opener(msg.Document.FileID)

	case msg.Audio != nil:
		sub.Kind = core.KindAudio
		sub.MIME = msg.Audio.MimeType
		sub.Open = g.opener(msg.Audio.FileID)

	case msg.Voice != nil:
		sub.Kind = core.KindVoice
		sub.MIME = msg.Voice.MimeType
		sub.Open = g.opener(msg.Voice.FileID)

	case msg.Video != nil:
		sub.Kind = core.KindVideo
		sub.MIME = msg.Video.MimeType
		sub.Open = g.opener(msg.Video.FileID)

	case msg.Sticker != nil:
		sub.Kind = core.KindSticker
		sub.Open = g.opener(msg.Sticker.FileID)

	case msg.Contact != nil:
		card := renderVCard(msg.Contact)
		sub.Kind = core.KindContact
		sub.Open = func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(card)), nil
		}

	default:
		return core.Submission{}, false
	}

	return sub, true
}

// bestPhoto picks the largest size variant Telegram offers.
func bestPhoto(photos []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := photos[0]
	for _, photo := range photos[1:] {
		if photo.FileSize > best.FileSize {
			best = photo
		}
	}
	return best
}

// renderVCard returns the contact's vCard, synthesizing a minimal one
// when Telegram did not attach the original.
func renderVCard(contact *tgbotapi.Contact) string {
	if contact.VCard != "" {
		return contact.VCard
	}

	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	b.WriteString("VERSION:3.0\r\n")
	fmt.Fprintf(&b, "N:%s;%s;;;\r\n", contact.LastName, contact.FirstName)
	fmt.Fprintf(&b, "FN:%s\r\n", name)
	if contact.PhoneNumber != "" {
		fmt.Fprintf(&b, "TEL;TYPE=CELL:%s\r\n", contact.PhoneNumber)
	}
	b.WriteString("END:VCARD\r\n")
	return b.String()
}

// opener returns a streaming download handle for a Telegram file id.
func (g *Telegram) opener(fileID string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		url, err := g.bot.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve file url: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
}

// replierFor sends replies into the originating chat.
func (g *Telegram) replierFor(chatID int64) core.Replier {
	return core.ReplierFunc(func(ctx context.Context, text string) error {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := g.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		return nil
	})
}

// Close waits for the update loop to exit, after which no further
// submissions are enqueued.
func (g *Telegram) Close(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
