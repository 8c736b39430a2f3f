// Package ingest routes incoming submissions to the extension
// resolver and content store, and drives the text assembly state
// machine for long-text uploads.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"tmphost/internal/core"
	"tmphost/internal/extension"
	"tmphost/internal/journal"
	"tmphost/internal/naming"
	"tmphost/internal/observability"
	"tmphost/internal/purge"
	"tmphost/internal/session"
	"tmphost/internal/store"
)

const genericFailureReply = "something went wrong, please try again"

// kindDefault carries the per-kind fallback extension and whether
// advisory messages are suppressed for that kind.
type kindDefault struct {
	ext   string
	quiet bool
}

// Defaults per media kind. Photos, stickers and contacts are quiet:
// their defaults come from the transport itself, not guesswork.
var kindDefaults = map[core.Kind]kindDefault{
	core.KindPhoto:    {ext: "jpg", quiet: true},
	core.KindDocument: {ext: "bin"},
	core.KindAudio:    {ext: "audio"},
	core.KindVoice:    {ext: "voice"},
	core.KindVideo:    {ext: "video"},
	core.KindSticker:  {ext: "webp", quiet: true},
	core.KindContact:  {ext: "vcf", quiet: true},
}

// Config holds the dispatcher's tunables.
type Config struct {
	// TextBoundary is the transport's maximum single-message
	// capacity in characters. A message of exactly this length
	// signals truncation and starts or continues accumulation.
	TextBoundary int
	// StreakLimit is the number of consecutive unrecognized inputs
	// that triggers one warning.
	StreakLimit int
}

const stripeCount = 64

// queued is one submission waiting on a stripe queue.
type queued struct {
	ctx   context.Context
	sub   core.Submission
	reply core.Replier
}

// Dispatcher processes submissions. Submissions from different
// identities proceed in parallel; submissions entered through Enqueue
// land on a stripe queue picked by identity and are consumed by a
// single worker per stripe, so same-identity submissions are processed
// one at a time in enqueue order and session state never sees
// interleaved or reordered updates.
type Dispatcher struct {
	cfg      Config
	store    store.Store
	sessions session.Store
	naming   *naming.Generator
	resolver *extension.Resolver
	journal  journal.Recorder
	purger   *purge.Purger
	metrics  *observability.Metrics

	locks     [stripeCount]sync.Mutex
	queues    [stripeCount]chan queued
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Dispatcher and starts its stripe workers. journal and
// metrics may be nil-equivalents (journal.NoopRecorder, nil *Metrics).
// Call Close to drain and stop the workers.
func New(cfg Config, st store.Store, sessions session.Store, gen *naming.Generator, resolver *extension.Resolver, rec journal.Recorder, purger *purge.Purger, metrics *observability.Metrics) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		naming:   gen,
		resolver: resolver,
		journal:  rec,
		purger:   purger,
		metrics:  metrics,
	}
	for i := range d.queues {
		d.queues[i] = make(chan queued, 16)
		d.wg.Add(1)
		go d.drain(d.queues[i])
	}
	return d
}

func (d *Dispatcher) drain(ch chan queued) {
	defer d.wg.Done()
	for q := range ch {
		d.Handle(q.ctx, q.sub, q.reply)
	}
}

// Enqueue hands a submission to its identity's stripe worker and
// returns once it is queued. Submissions enqueued for one identity are
// processed in enqueue order, which is how the gateway preserves
// arrival order for multi-chunk text. Must not be called after Close.
func (d *Dispatcher) Enqueue(ctx context.Context, sub core.Submission, reply core.Replier) {
	d.queues[d.stripe(sub.From)] <- queued{ctx: ctx, sub: sub, reply: reply}
}

// Close drains the stripe queues and stops the workers, returning
// ctx's error if draining outlasts its deadline. Safe to call twice.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		for i := range d.queues {
			close(d.queues[i])
		}
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) stripe(id core.Identity) uint64 {
	return xxhash.Sum64String(string(id)) % stripeCount
}

func (d *Dispatcher) lockFor(id core.Identity) *sync.Mutex {
	return &d.locks[d.stripe(id)]
}

// Handle processes one submission end to end. It never panics out:
// any failure still produces a user-visible reply, and a failure for
// one sender cannot corrupt another's session state.
func (d *Dispatcher) Handle(ctx context.Context, sub core.Submission, reply core.Replier) {
	if sub.TraceID == "" {
		sub.TraceID = uuid.NewString()
	}
	log := slog.With("trace_id", sub.TraceID, "identity", sub.From, "kind", sub.Kind)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing submission", "panic", r)
			_ = reply.Reply(ctx, genericFailureReply)
		}
	}()

	mu := d.lockFor(sub.From)
	mu.Lock()
	defer mu.Unlock()

	var err error
	if sub.Kind == core.KindText {
		err = d.handleText(ctx, log, sub, reply)
	} else {
		err = d.handleMedia(ctx, log, sub, reply)
	}
	if err != nil {
		d.replyError(ctx, log, reply, err)
	}
}

// handleMedia resolves an extension and uploads the binary payload.
func (d *Dispatcher) handleMedia(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier) error {
	def, ok := kindDefaults[sub.Kind]
	if !ok {
		return fmt.Errorf("unsupported media kind: %s", sub.Kind)
	}

	ext, err := d.resolver.Resolve(ctx, extension.Request{
		Identity:      sub.From,
		Default:       def.ext,
		MIME:          sub.MIME,
		Caption:       sub.Caption,
		AllowOverride: true,
		Quiet:         def.quiet,
	}, func(msg string) { _ = reply.Reply(ctx, msg) })
	if err != nil {
		return err
	}

	if sub.Open == nil {
		return core.NewIOError(genericFailureReply, errors.New("submission has no payload handle"))
	}
	rc, err := sub.Open(ctx)
	if err != nil {
		return core.NewIOError("failed to download your file, please try again", err)
	}
	defer rc.Close()

	return d.upload(ctx, log, sub, reply, ext, rc)
}

// upload reserves a path, writes the content, journals the result and
// replies with the public URL.
func (d *Dispatcher) upload(ctx context.Context, log *slog.Logger, sub core.Submission, reply core.Replier, ext string, r io.Reader) error {
	path, err := d.naming.Reserve(ctx, ext)
	if err != nil {
		if errors.Is(err, naming.ErrExhaustedRetries) {
			return core.NewCapacityError("could not find a free name for your upload, please try again later", err)
		}
		return core.NewIOError(genericFailureReply, err)
	}

	digest := xxhash.New()
	n, err := d.store.Put(ctx, path, io.TeeReader(r, digest))
	if err != nil {
		// The reserved path is abandoned; nothing was exposed there.
		return core.NewIOError("failed to store your upload, please try again", err)
	}

	d.metrics.ObserveUpload(string(sub.Kind), n)
	if err := d.journal.Record(ctx, &journal.Entry{
		ID:        sub.TraceID,
		Event:     journal.EventUpload,
		Timestamp: time.Now().UTC(),
		Identity:  string(sub.From),
		Kind:      string(sub.Kind),
		Path:      path,
		Extension: ext,
		Size:      n,
		Digest:    fmt.Sprintf("%016x", digest.Sum64()),
	}); err != nil {
		log.Warn("failed to journal upload", "error", err)
	}

	url := d.store.URL(path)
	log.Info("stored object", "path", path, "bytes", n)
	if err := reply.Reply(ctx, url); err != nil {
		log.Warn("failed to deliver URL reply", "error", err)
	}
	return nil
}

// replyError reports a failed submission to the sender. UploadError
// messages are safe for untrusted users; everything else gets the
// generic reply with full detail in the log only.
func (d *Dispatcher) replyError(ctx context.Context, log *slog.Logger, reply core.Replier, err error) {
	var uerr *core.UploadError
	if errors.As(err, &uerr) {
		d.metrics.ObserveUploadFailure(string(uerr.Kind))
		if uerr.Kind == core.ErrorKindCapacity {
			log.Error("identifier space exhausted", "error", err)
		} else {
			log.Error("submission failed", "error", err)
		}
		_ = reply.Reply(ctx, uerr.UserMessage())
		return
	}

	d.metrics.ObserveUploadFailure("internal")
	log.Error("submission failed", "error", err)
	_ = reply.Reply(ctx, genericFailureReply)
}
