// Package chat defines the canonical representation of a parsed group chat message.
package chat

import (
	"sort"
	"strings"
	"time"
)

// MediaKind identifies the type of media attached to a message.
type MediaKind string

// Supported media kinds. An empty MediaKind means the message carries no media.
const (
	MediaNone    MediaKind = ""
	MediaPhoto   MediaKind = "photo"
	MediaVideo   MediaKind = "video"
	MediaVoice   MediaKind = "voice"
	MediaSticker MediaKind = "sticker"
	MediaFile    MediaKind = "file"
)

// Labels appended by external text producers before chunking.
const (
	TranscriptionLabel = "Transcrição de áudio"
	CaptionLabel       = "Descrição da imagem"
)

// Message is a single chat message as parsed from an export or captured live.
// Timestamp is a naive local time; its location is irrelevant and only the
// wall clock value is used.
type Message struct {
	ID            int64
	Author        string
	Timestamp     time.Time
	Text          string
	ReplyToID     *int64
	Media         MediaKind
	MediaPath     string
	IsForwarded   bool
	ForwardedFrom string
}

// HasSignal reports whether the message carries anything worth indexing.
func (m Message) HasSignal() bool {
	return m.Text != "" || m.Media != MediaNone
}

// IsReply reports whether the message replies to another message.
func (m Message) IsReply() bool {
	return m.ReplyToID != nil
}

// Augment returns a copy of the message with externally produced text appended
// under the given label. Empty extra text leaves the message untouched.
func (m Message) Augment(label, extra string) Message {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return m
	}
	line := "[" + label + "] " + extra
	if m.Text != "" {
		m.Text = m.Text + "\n" + line
	} else {
		m.Text = line
	}
	return m
}

// SortByID sorts messages ascending by ID in place.
func SortByID(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ID < messages[j].ID
	})
}

// ReplyTo is a helper for building a reply link.
func ReplyTo(id int64) *int64 {
	return &id
}
