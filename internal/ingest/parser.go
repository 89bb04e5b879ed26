package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/edgard/tipsai/internal/chat"
)

// UnknownAuthor is used when a message has no resolvable sender.
const UnknownAuthor = "Unknown"

const exportTimeLayout = "02.01.2006 15:04:05"

var (
	messageIDPattern     = regexp.MustCompile(`message(-?\d+)`)
	exportTimePattern    = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2})`)
	goToMessagePattern   = regexp.MustCompile(`GoToMessage\((\d+)\)`)
	goToMessageHref      = regexp.MustCompile(`go_to_message(\d+)`)
	forwardedDatePattern = regexp.MustCompile(`\s*\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2}$`)
)

// mediaSelectors maps export markup to media kinds, in match priority.
var mediaSelectors = []struct {
	selector string
	kind     chat.MediaKind
	hasPath  bool
}{
	{"a.photo_wrap", chat.MediaPhoto, true},
	{"a.video_file_wrap", chat.MediaVideo, true},
	{"a.media_voice_message", chat.MediaVoice, true},
	{".sticker_wrap", chat.MediaSticker, false},
	{"a.media_file", chat.MediaFile, true},
}

// ParseExport parses every messages*.html file in dir and returns the
// messages sorted by ID.
func ParseExport(dir string) ([]chat.Message, error) {
	files, err := filepath.Glob(filepath.Join(dir, "messages*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list export files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no messages*.html files found in %s", dir)
	}

	var all []chat.Message
	for _, f := range files {
		msgs, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, msgs...)
	}
	chat.SortByID(all)
	return all, nil
}

// ParseFile parses one Telegram Desktop HTML export file.
func ParseFile(path string) ([]chat.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	msgs, err := parseHTML(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return msgs, nil
}

func parseHTML(r io.Reader) ([]chat.Message, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var (
		messages      []chat.Message
		currentAuthor string
	)
	doc.Find("div.message.default").Each(func(_ int, div *goquery.Selection) {
		id, ok := parseMessageID(div)
		if !ok {
			return
		}

		// Consecutive messages from the same sender are "joined" and omit the name.
		author := parseAuthor(div)
		switch {
		case author != "":
			currentAuthor = author
		case div.HasClass("joined") && currentAuthor != "":
			author = currentAuthor
		default:
			author = UnknownAuthor
		}

		ts, ok := parseTimestamp(div)
		if !ok {
			return
		}

		msg := chat.Message{
			ID:        id,
			Author:    author,
			Timestamp: ts,
			Text:      parseText(div),
			ReplyToID: parseReplyTo(div),
		}
		msg.Media, msg.MediaPath = parseMedia(div)
		msg.IsForwarded, msg.ForwardedFrom = parseForwarded(div)
		messages = append(messages, msg)
	})
	return messages, nil
}

func parseMessageID(div *goquery.Selection) (int64, bool) {
	m := messageIDPattern.FindStringSubmatch(div.AttrOr("id", ""))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

func parseTimestamp(div *goquery.Selection) (time.Time, bool) {
	title := div.Find(".pull_right.date.details").First().AttrOr("title", "")
	m := exportTimePattern.FindStringSubmatch(title)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(exportTimeLayout, m[1])
	return ts, err == nil
}

func parseAuthor(div *goquery.Selection) string {
	return strings.TrimSpace(div.ChildrenFiltered(".body").ChildrenFiltered(".from_name").First().Text())
}

func parseText(div *goquery.Selection) string {
	body := div.ChildrenFiltered(".body")
	text := body.ChildrenFiltered(".text")
	if text.Length() == 0 {
		text = body.Find(".forwarded.body .text")
	}
	if text.Length() == 0 {
		return ""
	}
	text = text.First()
	text.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(text.Text())
}

func parseReplyTo(div *goquery.Selection) *int64 {
	link := div.Find(".reply_to a").First()
	if link.Length() == 0 {
		return nil
	}
	m := goToMessagePattern.FindStringSubmatch(link.AttrOr("onclick", ""))
	if m == nil {
		// Replies across export files link to messagesN.html#go_to_messageID.
		m = goToMessageHref.FindStringSubmatch(link.AttrOr("href", ""))
	}
	if m == nil {
		return nil
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func parseMedia(div *goquery.Selection) (chat.MediaKind, string) {
	wrap := div.Find(".media_wrap").First()
	if wrap.Length() == 0 {
		return chat.MediaNone, ""
	}
	for _, m := range mediaSelectors {
		sel := wrap.Find(m.selector).First()
		if sel.Length() == 0 {
			continue
		}
		if !m.hasPath {
			return m.kind, ""
		}
		return m.kind, sel.AttrOr("href", "")
	}
	return chat.MediaNone, ""
}

func parseForwarded(div *goquery.Selection) (bool, string) {
	fwd := div.Find(".forwarded.body").First()
	if fwd.Length() == 0 {
		return false, ""
	}
	name := strings.TrimSpace(fwd.Find(".from_name").First().Text())
	return true, strings.TrimSpace(forwardedDatePattern.ReplaceAllString(name, ""))
}
