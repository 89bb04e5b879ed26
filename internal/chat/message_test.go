package chat_test

import (
	"testing"
	"time"

	"github.com/edgard/tipsai/internal/chat"
)

func TestMessage_HasSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  chat.Message
		want bool
	}{
		{name: "text only", msg: chat.Message{Text: "Oi"}, want: true},
		{name: "media only", msg: chat.Message{Media: chat.MediaSticker}, want: true},
		{name: "empty", msg: chat.Message{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.msg.HasSignal(); got != tt.want {
				t.Errorf("HasSignal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage_Augment(t *testing.T) {
	t.Parallel()

	base := chat.Message{ID: 1, Media: chat.MediaVoice}

	got := base.Augment(chat.TranscriptionLabel, "  compra na baixa ")
	if want := "[Transcrição de áudio] compra na baixa"; got.Text != want {
		t.Errorf("Augment() text = %q, want %q", got.Text, want)
	}
	if base.Text != "" {
		t.Errorf("Augment() mutated the receiver: %q", base.Text)
	}

	withText := chat.Message{Text: "olha isso"}.Augment(chat.CaptionLabel, "gráfico do BTC")
	if want := "olha isso\n[Descrição da imagem] gráfico do BTC"; withText.Text != want {
		t.Errorf("Augment() text = %q, want %q", withText.Text, want)
	}

	unchanged := chat.Message{Text: "x"}.Augment(chat.CaptionLabel, "   ")
	if unchanged.Text != "x" {
		t.Errorf("Augment() with blank text changed message to %q", unchanged.Text)
	}
}

func TestSortByID(t *testing.T) {
	t.Parallel()

	now := time.Now()
	msgs := []chat.Message{{ID: 3, Timestamp: now}, {ID: 1, Timestamp: now}, {ID: 2, Timestamp: now}}
	chat.SortByID(msgs)

	for i, want := range []int64{1, 2, 3} {
		if msgs[i].ID != want {
			t.Fatalf("SortByID() position %d = %d, want %d", i, msgs[i].ID, want)
		}
	}
}
