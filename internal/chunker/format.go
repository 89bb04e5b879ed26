package chunker

import (
	"strings"

	"github.com/edgard/tipsai/internal/chat"
)

var mediaLabels = map[chat.MediaKind]string{
	chat.MediaPhoto:   "[Foto]",
	chat.MediaVideo:   "[Vídeo]",
	chat.MediaVoice:   "[Áudio]",
	chat.MediaSticker: "[Sticker]",
	chat.MediaFile:    "[Arquivo]",
}

// MediaLabel returns the placeholder shown for a media-only message.
func MediaLabel(kind chat.MediaKind) string {
	if label, ok := mediaLabels[kind]; ok {
		return label
	}
	return "[Mídia]"
}

// FormatMessage renders a message as a single chunk line:
// "[dd/mm/yyyy HH:MM] Author (encaminhou de X): text".
func FormatMessage(m chat.Message) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(m.Timestamp.Format("02/01/2006 15:04"))
	sb.WriteString("] ")
	sb.WriteString(m.Author)
	if m.IsForwarded && m.ForwardedFrom != "" {
		sb.WriteString(" (encaminhou de ")
		sb.WriteString(m.ForwardedFrom)
		sb.WriteString(")")
	}
	sb.WriteString(":")

	switch {
	case m.Text != "":
		sb.WriteString(" ")
		sb.WriteString(m.Text)
	case m.Media != chat.MediaNone:
		sb.WriteString(" ")
		sb.WriteString(MediaLabel(m.Media))
	}
	return sb.String()
}
