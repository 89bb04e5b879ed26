package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/vectorstore"
)

// Buffer accumulates live messages until a size threshold or age is reached.
type Buffer struct {
	threshold     int
	flushInterval time.Duration
	clock         clockwork.Clock

	mu       sync.Mutex
	messages []chat.Message
	first    time.Time
}

// NewBuffer creates a buffer that asks for a flush at threshold messages or
// once its oldest message is flushInterval old.
func NewBuffer(threshold int, flushInterval time.Duration, clock clockwork.Clock) *Buffer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Buffer{threshold: threshold, flushInterval: flushInterval, clock: clock}
}

// Add buffers msg and reports whether the threshold was reached.
func (b *Buffer) Add(msg chat.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		b.first = b.clock.Now()
	}
	b.messages = append(b.messages, msg)
	return len(b.messages) >= b.threshold
}

// Due reports whether the oldest buffered message has waited long enough.
func (b *Buffer) Due() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages) > 0 && b.clock.Since(b.first) >= b.flushInterval
}

// Drain returns the buffered messages and empties the buffer.
func (b *Buffer) Drain() []chat.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages
	b.messages = nil
	b.first = time.Time{}
	return msgs
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// MessageIngester is the part of Service used by Live.
type MessageIngester interface {
	IngestMessages(ctx context.Context, messages []chat.Message, source string) (int, error)
}

// Live buffers group messages captured by the bot and ingests them in
// batches.
type Live struct {
	buffer   *Buffer
	ingester MessageIngester
	log      *slog.Logger

	// mu orders pending.Add against pending.Wait.
	mu      sync.Mutex
	pending sync.WaitGroup
}

// NewLive creates a live ingester.
func NewLive(buffer *Buffer, ingester MessageIngester, log *slog.Logger) *Live {
	return &Live{buffer: buffer, ingester: ingester, log: log.With("component", "live_ingest")}
}

// Capture buffers msg. Reaching the threshold hands the drained batch to a
// background ingestion so the calling update worker is not held up by the
// embedding calls.
func (l *Live) Capture(ctx context.Context, msg chat.Message) {
	if !msg.HasSignal() {
		return
	}
	if !l.buffer.Add(msg) {
		return
	}
	msgs := l.buffer.Drain()
	if len(msgs) == 0 {
		return
	}
	l.log.InfoContext(ctx, "Buffer reached threshold, flushing", "threshold", l.buffer.threshold, "messages", len(msgs))

	bg := context.WithoutCancel(ctx)
	l.mu.Lock()
	l.pending.Add(1)
	l.mu.Unlock()
	go func() {
		defer l.pending.Done()
		l.ingest(bg, msgs)
	}()
}

// FlushIfDue flushes when the oldest buffered message is older than the
// flush interval.
func (l *Live) FlushIfDue(ctx context.Context) int {
	if !l.buffer.Due() {
		return 0
	}
	l.log.InfoContext(ctx, "Periodic flush", "buffered", l.buffer.Len())
	return l.ingest(ctx, l.buffer.Drain())
}

// Flush waits for background ingestions started by Capture, then ingests
// everything still buffered. It returns the chunks written by the final
// batch.
func (l *Live) Flush(ctx context.Context) int {
	l.mu.Lock()
	l.pending.Wait()
	l.mu.Unlock()
	return l.ingest(ctx, l.buffer.Drain())
}

// ingest writes msgs with the live source. Failures are logged and the
// batch is dropped.
func (l *Live) ingest(ctx context.Context, msgs []chat.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	n, err := l.ingester.IngestMessages(ctx, msgs, vectorstore.SourceLive)
	if err != nil {
		l.log.ErrorContext(ctx, "Live ingestion failed", "messages", len(msgs), "error", err)
		return 0
	}
	l.log.InfoContext(ctx, "Live flush complete", "messages", len(msgs), "chunks", n)
	return n
}

// FromTelegram converts a captured text message. Timestamps are converted
// to loc and kept as naive wall-clock times, like export timestamps. ok is
// false for messages without text.
func FromTelegram(msg *models.Message, loc *time.Location) (chat.Message, bool) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return chat.Message{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	local := time.Unix(int64(msg.Date), 0).In(loc)

	out := chat.Message{
		ID:        int64(msg.ID),
		Author:    UnknownAuthor,
		Timestamp: time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC),
		Text:      msg.Text,
	}
	if msg.From != nil {
		out.Author = fullName(msg.From)
	}
	if msg.ReplyToMessage != nil {
		out.ReplyToID = chat.ReplyTo(int64(msg.ReplyToMessage.ID))
	}
	if msg.ForwardOrigin != nil {
		out.IsForwarded = true
		out.ForwardedFrom = forwardOrigin(msg.ForwardOrigin)
	}
	return out, true
}

func fullName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return UnknownAuthor
	}
	return name
}

func forwardOrigin(o *models.MessageOrigin) string {
	switch {
	case o.MessageOriginUser != nil:
		return fullName(&o.MessageOriginUser.SenderUser)
	case o.MessageOriginHiddenUser != nil:
		return o.MessageOriginHiddenUser.SenderUserName
	case o.MessageOriginChat != nil:
		return o.MessageOriginChat.SenderChat.Title
	case o.MessageOriginChannel != nil:
		return o.MessageOriginChannel.Chat.Title
	}
	return ""
}
