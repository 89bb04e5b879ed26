// Package chunker groups an ordered stream of chat messages into
// conversation-coherent, size-bounded text chunks ready for embedding.
package chunker

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/tipsai/internal/chat"
)

// Default chunking parameters. TargetChars approximates ~500 tokens of
// Portuguese text for the embedding model.
const (
	DefaultConversationGap = 30 * time.Minute
	DefaultTargetChars     = 2000
	DefaultOverlapChars    = 300
)

// ISOLayout is the naive ISO-8601 layout used for chunk time bounds in stored metadata.
const ISOLayout = "2006-01-02T15:04:05"

// Options tunes the chunking algorithm.
type Options struct {
	// ConversationGap is the largest gap between consecutive messages that
	// still keeps them in the same conversation when no reply link exists.
	ConversationGap time.Duration
	// TargetChars bounds the formatted text length of a chunk.
	TargetChars int
	// OverlapChars bounds the trailing context repeated at the head of the
	// next chunk when a conversation is split. Zero disables overlap.
	OverlapChars int
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{
		ConversationGap: DefaultConversationGap,
		TargetChars:     DefaultTargetChars,
		OverlapChars:    DefaultOverlapChars,
	}
}

// Chunk is an embeddable unit of concatenated chat text with provenance metadata.
type Chunk struct {
	MessageIDs   []int64
	Authors      []string
	StartTime    time.Time
	EndTime      time.Time
	Text         string
	MessageCount int
	AuthorCount  int
}

// StartISO returns StartTime in ISOLayout.
func (c Chunk) StartISO() string { return c.StartTime.Format(ISOLayout) }

// EndISO returns EndTime in ISOLayout.
func (c Chunk) EndISO() string { return c.EndTime.Format(ISOLayout) }

// Chunker splits message streams into chunks. It is stateless and safe for concurrent use.
type Chunker struct {
	opts Options
}

// New creates a Chunker. Non-positive values fall back to the defaults,
// except OverlapChars where only negative values do.
func New(opts Options) *Chunker {
	if opts.ConversationGap <= 0 {
		opts.ConversationGap = DefaultConversationGap
	}
	if opts.TargetChars <= 0 {
		opts.TargetChars = DefaultTargetChars
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = DefaultOverlapChars
	}
	return &Chunker{opts: opts}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Chunk groups messages, which must be sorted ascending by ID, into chunks.
// Messages with neither text nor media are dropped.
func (c *Chunker) Chunk(messages []chat.Message) []Chunk {
	relevant := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.HasSignal() {
			relevant = append(relevant, m)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	var chunks []Chunk
	for _, group := range c.group(relevant) {
		chunks = append(chunks, c.split(group)...)
	}
	return chunks
}

// group walks messages in order and starts a new group whenever a message
// neither replies into the current group nor follows its predecessor
// within the conversation gap.
func (c *Chunker) group(messages []chat.Message) [][]chat.Message {
	var groups [][]chat.Message
	current := []chat.Message{messages[0]}
	members := map[int64]struct{}{messages[0].ID: {}}

	for i := 1; i < len(messages); i++ {
		prev, curr := messages[i-1], messages[i]

		sameThread := false
		if curr.ReplyToID != nil {
			_, sameThread = members[*curr.ReplyToID]
		}
		withinGap := curr.Timestamp.Sub(prev.Timestamp) <= c.opts.ConversationGap

		if sameThread || withinGap {
			current = append(current, curr)
			members[curr.ID] = struct{}{}
			continue
		}

		groups = append(groups, current)
		current = []chat.Message{curr}
		members = map[int64]struct{}{curr.ID: {}}
	}
	return append(groups, current)
}

type line struct {
	msg  chat.Message
	text string
	size int
}

// accumulator tracks the lines of the chunk being built. size counts the
// joined text, newline separators included.
type accumulator struct {
	lines []line
	size  int
}

func (a *accumulator) sizeWith(l line) int {
	if len(a.lines) == 0 {
		return l.size
	}
	return a.size + 1 + l.size
}

func (a *accumulator) add(l line) {
	a.size = a.sizeWith(l)
	a.lines = append(a.lines, l)
}

func (a *accumulator) dropFirst() {
	if len(a.lines) == 0 {
		return
	}
	first := a.lines[0]
	a.lines = a.lines[1:]
	if len(a.lines) == 0 {
		a.size = 0
		return
	}
	a.size -= first.size + 1
}

// split breaks one conversation group into chunks bounded by TargetChars.
// When a group needs more than one chunk, each new chunk starts with the
// trailing lines of the previous one that fit in OverlapChars.
func (c *Chunker) split(group []chat.Message) []Chunk {
	var (
		chunks []Chunk
		acc    accumulator
	)

	for _, msg := range group {
		text := FormatMessage(msg)
		l := line{msg: msg, text: text, size: utf8.RuneCountInString(text)}

		if len(acc.lines) > 0 && acc.sizeWith(l) > c.opts.TargetChars {
			chunks = append(chunks, makeChunk(acc.lines))
			acc = c.overlap(acc.lines)
			// Overlap yields to new content: shed repeated lines until the
			// incoming message fits.
			for len(acc.lines) > 0 && acc.sizeWith(l) > c.opts.TargetChars {
				acc.dropFirst()
			}
		}
		acc.add(l)
	}

	if len(acc.lines) > 0 {
		chunks = append(chunks, makeChunk(acc.lines))
	}
	return chunks
}

// overlap seeds a new accumulator with the longest suffix of lines whose
// joined size fits the overlap budget.
func (c *Chunker) overlap(lines []line) accumulator {
	var acc accumulator
	if c.opts.OverlapChars == 0 {
		return acc
	}

	start := len(lines)
	size := 0
	for i := len(lines) - 1; i >= 0; i-- {
		next := lines[i].size
		if start < len(lines) {
			next += 1 + size
		}
		if next > c.opts.OverlapChars {
			break
		}
		size = next
		start = i
	}

	for _, l := range lines[start:] {
		acc.add(l)
	}
	return acc
}

func makeChunk(lines []line) Chunk {
	ids := make([]int64, 0, len(lines))
	texts := make([]string, 0, len(lines))
	seen := make(map[string]struct{})
	var authors []string

	for _, l := range lines {
		ids = append(ids, l.msg.ID)
		texts = append(texts, l.text)
		if _, ok := seen[l.msg.Author]; !ok {
			seen[l.msg.Author] = struct{}{}
			authors = append(authors, l.msg.Author)
		}
	}

	return Chunk{
		MessageIDs:   ids,
		Authors:      authors,
		StartTime:    lines[0].msg.Timestamp,
		EndTime:      lines[len(lines)-1].msg.Timestamp,
		Text:         strings.Join(texts, "\n"),
		MessageCount: len(lines),
		AuthorCount:  len(authors),
	}
}
