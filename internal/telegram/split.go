package telegram

import "strings"

// MaxMessageLength is Telegram's limit on the characters of one text message.
const MaxMessageLength = 4096

// SplitMessage cuts text into parts of at most limit characters. A part ends
// at the last newline inside the window when that newline lies in its second
// half, otherwise the window is cut hard. Newlines opening the next part are
// dropped.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	remaining := []rune(text)
	if len(remaining) <= limit {
		return []string{text}
	}

	var parts []string
	for len(remaining) > 0 {
		if len(remaining) <= limit {
			parts = append(parts, string(remaining))
			break
		}

		cut := lastNewline(remaining[:limit])
		if cut < limit/2 {
			cut = limit
		}
		parts = append(parts, string(remaining[:cut]))
		remaining = []rune(strings.TrimLeft(string(remaining[cut:]), "\n"))
	}
	return parts
}

func lastNewline(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '\n' {
			return i
		}
	}
	return -1
}
