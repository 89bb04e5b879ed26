package gemini

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/logger"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	mu        sync.Mutex
	calls     []generateCall
	responses []*genai.GenerateContentResponse
	errs      []error

	embedConfig *genai.EmbedContentConfig
	embeddings  [][]float32
	embedErr    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: cfg})
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return textResponse("ok"), nil
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.embedConfig = cfg
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	resp := &genai.EmbedContentResponse{}
	for i := range contents {
		if i < len(f.embeddings) {
			resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: f.embeddings[i]})
		}
	}
	return resp, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func testClient(models modelsAPI, maxRetries int) *Client {
	return newClient(models, config.GeminiConfig{
		ModelName:          "primary",
		FallbackModelName:  "fallback",
		EmbeddingModel:     "embedder",
		EmbeddingDimension: 3,
		Temperature:        0.7,
		MaxOutputTokens:    1024,
		SystemInstruction:  "sistema",
		MaxRetries:         maxRetries,
	}, logger.Discard())
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		context string
		want    string
	}{
		{
			name:    "without context",
			message: "o que é staking?",
			want:    "Pergunta do usuário: o que é staking?",
		},
		{
			name:    "with context",
			message: "e o bitcoin?",
			context: "[Trecho 1] texto",
			want: "Aqui estão mensagens relevantes do grupo que podem ajudar a responder:\n\n" +
				"[Trecho 1] texto\n\n---\n\nPergunta do usuário: e o bitcoin?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BuildPrompt(tt.message, tt.context); got != tt.want {
				t.Errorf("BuildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate_HistoryAndOverrides(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("  resposta  ")}}
	c := testClient(models, 0)

	got, err := c.Generate(context.Background(), Request{
		Model:   "fallback",
		Message: "pergunta",
		History: []chat.Turn{
			{Role: chat.RoleUser, Text: "oi"},
			{Role: chat.RoleAssistant, Text: "olá"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "resposta" {
		t.Errorf("Generate() = %q, want %q", got, "resposta")
	}

	call := models.calls[0]
	if call.model != "fallback" {
		t.Errorf("model = %q, want fallback", call.model)
	}
	if call.config.MaxOutputTokens != 256 {
		t.Errorf("MaxOutputTokens = %d, want 256", call.config.MaxOutputTokens)
	}
	if len(call.contents) != 3 {
		t.Fatalf("contents len = %d, want 3", len(call.contents))
	}
	if call.contents[0].Role != string(genai.RoleUser) || call.contents[1].Role != string(genai.RoleModel) {
		t.Errorf("roles = %q, %q", call.contents[0].Role, call.contents[1].Role)
	}
	if !strings.HasPrefix(call.contents[2].Parts[0].Text, "Pergunta do usuário:") {
		t.Errorf("last content = %q", call.contents[2].Parts[0].Text)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		maxRetries    int
		errs          []error
		wantErr       bool
		wantTransient bool
		wantCalls     int
	}{
		{
			name:       "retries transient then succeeds",
			maxRetries: 1,
			errs:       []error{&genai.APIError{Code: 503, Message: "unavailable"}},
			wantCalls:  2,
		},
		{
			name:          "rate limit exhausts retries",
			maxRetries:    1,
			errs:          []error{&genai.APIError{Code: 429}, &genai.APIError{Code: 429}},
			wantErr:       true,
			wantTransient: true,
			wantCalls:     2,
		},
		{
			name:       "permanent error is not retried",
			maxRetries: 2,
			errs:       []error{&genai.APIError{Code: 400, Message: "bad request"}},
			wantErr:    true,
			wantCalls:  1,
		},
		{
			name:          "deadline is transient",
			errs:          []error{context.DeadlineExceeded},
			wantErr:       true,
			wantTransient: true,
			wantCalls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			models := &fakeModels{errs: tt.errs}
			c := testClient(models, tt.maxRetries)

			_, err := c.Generate(context.Background(), Request{Message: "x"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Generate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrTransient); got != tt.wantTransient {
				t.Errorf("errors.Is(err, ErrTransient) = %v, want %v", got, tt.wantTransient)
			}
			if len(models.calls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(models.calls), tt.wantCalls)
			}
		})
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
	}}}
	c := testClient(models, 0)

	if _, err := c.Generate(context.Background(), Request{Message: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestCondense(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("Falaram de staking.")}}
	c := testClient(models, 0)

	summary, err := c.Condense(context.Background(), []chat.Turn{
		{Role: chat.RoleUser, Text: "o que é staking?"},
		{Role: chat.RoleAssistant, Text: "é travar moedas"},
	})
	if err != nil {
		t.Fatalf("Condense() error = %v", err)
	}
	if summary != "Falaram de staking." {
		t.Errorf("Condense() = %q", summary)
	}

	call := models.calls[0]
	prompt := call.contents[0].Parts[0].Text
	if !strings.HasPrefix(prompt, CondensePrompt) ||
		!strings.Contains(prompt, "Usuário: o que é staking?") ||
		!strings.Contains(prompt, "Assistente: é travar moedas") {
		t.Errorf("condense prompt = %q", prompt)
	}
	if call.config.MaxOutputTokens != 256 {
		t.Errorf("MaxOutputTokens = %d, want 256", call.config.MaxOutputTokens)
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	models := &fakeModels{embeddings: [][]float32{{3, 4, 0}, {0, 0, 2}}}
	c := testClient(models, 0)

	vectors, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if models.embedConfig.TaskType != taskRetrievalDocument {
		t.Errorf("TaskType = %q", models.embedConfig.TaskType)
	}
	if math.Abs(float64(vectors[0][0])-0.6) > 1e-6 || math.Abs(float64(vectors[0][1])-0.8) > 1e-6 {
		t.Errorf("vectors[0] = %v, want [0.6 0.8 0]", vectors[0])
	}
	if vectors[1][2] != 1 {
		t.Errorf("vectors[1] = %v, want unit z", vectors[1])
	}

	if _, err := c.EmbedDocuments(context.Background(), []string{"a", "b", "c"}); err == nil {
		t.Error("EmbedDocuments() error = nil on count mismatch")
	}
}

func TestEmbedQuery_Transient(t *testing.T) {
	t.Parallel()

	models := &fakeModels{embedErr: &genai.APIError{Code: 500}}
	c := testClient(models, 0)

	if _, err := c.EmbedQuery(context.Background(), "x"); !errors.Is(err, ErrTransient) {
		t.Errorf("EmbedQuery() error = %v, want ErrTransient", err)
	}
}

func TestCaption_RejectsWrongMediaType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nota.txt")
	if err := os.WriteFile(path, []byte("apenas texto"), 0o600); err != nil {
		t.Fatal(err)
	}

	models := &fakeModels{}
	c := testClient(models, 0)

	if got := c.Caption(context.Background(), path); got != "" {
		t.Errorf("Caption() = %q, want empty", got)
	}
	if got := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.ogg")); got != "" {
		t.Errorf("Transcribe() = %q, want empty", got)
	}
	if len(models.calls) != 0 {
		t.Errorf("model called %d times for unusable media", len(models.calls))
	}
}

func TestCaption_Image(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "grafico.bin")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		t.Fatal(err)
	}

	if mt, err := DetectMIME(path); err != nil || mt != "image/png" {
		t.Fatalf("DetectMIME() = %q, %v", mt, err)
	}

	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("Gráfico do BTC subindo")}}
	c := testClient(models, 0)

	if got := c.Caption(context.Background(), path); got != "Gráfico do BTC subindo" {
		t.Errorf("Caption() = %q", got)
	}
	parts := models.calls[0].contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" {
		t.Errorf("caption request parts = %+v", parts)
	}
}
