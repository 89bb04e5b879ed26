package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/logger"
)

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{
			name:  "short text is kept whole",
			text:  "olá",
			limit: 10,
			want:  []string{"olá"},
		},
		{
			name:  "exactly the limit",
			text:  "0123456789",
			limit: 10,
			want:  []string{"0123456789"},
		},
		{
			name:  "cut at newline in second half",
			text:  "abcdefg\nhijklmn",
			limit: 10,
			want:  []string{"abcdefg", "hijklmn"},
		},
		{
			name:  "newline in first half forces hard cut",
			text:  "ab\ncdefghijklmnop",
			limit: 10,
			want:  []string{"ab\ncdefghi", "jklmnop"},
		},
		{
			name:  "leading newlines of the rest are dropped",
			text:  "abcdef\n\n\nghijkl",
			limit: 8,
			want:  []string{"abcdef\n", "ghijkl"},
		},
		{
			name:  "counts runes not bytes",
			text:  "ááááá",
			limit: 5,
			want:  []string{"ááááá"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitMessage(tt.text, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitMessage() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitMessageRespectsTelegramLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat(strings.Repeat("x", 99)+"\n", 100)
	parts := SplitMessage(text, 0)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > MaxMessageLength {
			t.Errorf("part %d has %d characters", i, n)
		}
	}
}

type fakeRegistrar struct {
	patterns []string
	handlers []bot.HandlerFunc
}

func (f *fakeRegistrar) RegisterHandler(_ bot.HandlerType, pattern string, _ bot.MatchType, h bot.HandlerFunc, _ ...bot.Middleware) string {
	f.patterns = append(f.patterns, pattern)
	f.handlers = append(f.handlers, h)
	return pattern
}

func TestRegisterHandlersAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				calls = append(calls, name)
				next(ctx, b, u)
			}
		}
	}

	r := &fakeRegistrar{}
	routes := map[string]Route{
		"tips": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "/tips",
			MatchType:   bot.MatchTypeCommandStartOnly,
			Handler: func(context.Context, *bot.Bot, *models.Update) {
				calls = append(calls, "handler")
			},
			Middleware: []bot.Middleware{mw("outer"), mw("inner")},
		},
		"skipped": {Pattern: "/nil"},
	}

	if err := RegisterHandlers(r, logger.Discard(), routes); err != nil {
		t.Fatalf("RegisterHandlers() error = %v", err)
	}
	if len(r.handlers) != 1 || r.patterns[0] != "/tips" {
		t.Fatalf("registered %v, want only /tips", r.patterns)
	}

	r.handlers[0](context.Background(), nil, &models.Update{})
	want := []string{"outer", "inner", "handler"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("call order = %v, want %v", calls, want)
	}
}

func TestRegisterHandlersNilRegistrar(t *testing.T) {
	t.Parallel()

	if err := RegisterHandlers(nil, logger.Discard(), nil); err == nil {
		t.Fatal("expected error for nil registrar")
	}
}

type fakeActionSender struct {
	mu     sync.Mutex
	calls  int
	failAt int
	params []*bot.SendChatActionParams
}

func (f *fakeActionSender) SendChatAction(_ context.Context, p *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = append(f.params, p)
	if f.failAt > 0 && f.calls >= f.failAt {
		return false, errors.New("chat not found")
	}
	return true, nil
}

func (f *fakeActionSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestKeepTyping(t *testing.T) {
	t.Parallel()

	t.Run("refreshes until stopped", func(t *testing.T) {
		t.Parallel()
		s := &fakeActionSender{}
		stop := KeepTyping(context.Background(), s, 42, 7, 5*time.Millisecond, logger.Discard())

		deadline := time.Now().Add(2 * time.Second)
		for s.count() < 3 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		stop()

		if s.count() < 3 {
			t.Fatalf("typing sent %d times, want at least 3", s.count())
		}
		p := s.params[0]
		if p.ChatID != int64(42) || p.MessageThreadID != 7 || p.Action != models.ChatActionTyping {
			t.Errorf("unexpected params %+v", p)
		}
	})

	t.Run("stops after first failure", func(t *testing.T) {
		t.Parallel()
		s := &fakeActionSender{failAt: 1}
		stop := KeepTyping(context.Background(), s, 1, 0, time.Millisecond, logger.Discard())
		time.Sleep(20 * time.Millisecond)
		stop()

		if s.count() != 1 {
			t.Errorf("typing sent %d times after failure, want 1", s.count())
		}
	})
}
