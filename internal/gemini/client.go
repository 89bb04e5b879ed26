// Package gemini wraps the Gemini API for answer generation, embeddings,
// voice transcription and image captioning.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/config"
)

// modelsAPI is the subset of genai.Models used by Client.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Request is one generation call.
type Request struct {
	// Model overrides the configured default model when set.
	Model string
	// System overrides the configured system instruction when set.
	System  string
	Message string
	// Context is retrieved material placed before the question.
	Context   string
	History   []chat.Turn
	MaxTokens int32
	// Raw sends Message verbatim instead of wrapping it with Context.
	Raw bool
}

// Client talks to the Gemini API. It is safe for concurrent use.
type Client struct {
	models         modelsAPI
	log            *slog.Logger
	baseConfig     *genai.GenerateContentConfig
	model          string
	fallbackModel  string
	embeddingModel string
	dimension      int
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	maxTokens      int32
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newClient(gi.Models, cfg, log)
	c.log.Info("Gemini client initialized successfully",
		"model", cfg.ModelName, "fallback_model", cfg.FallbackModelName, "embedding_model", cfg.EmbeddingModel)
	return c, nil
}

func newClient(models modelsAPI, cfg config.GeminiConfig, log *slog.Logger) *Client {
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}

	return &Client{
		models:         models,
		log:            log.With("component", "gemini_client"),
		baseConfig:     baseCfg,
		model:          cfg.ModelName,
		fallbackModel:  cfg.FallbackModelName,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.EmbeddingDimension,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     time.Duration(cfg.RetryDelaySeconds) * time.Second,
		timeout:        cfg.Timeout,
		maxTokens:      cfg.MaxOutputTokens,
	}
}

// Model returns the default generation model.
func (c *Client) Model() string { return c.model }

// FallbackModel returns the model used when the default fails transiently,
// or an empty string when none is configured.
func (c *Client) FallbackModel() string { return c.fallbackModel }

// BuildPrompt renders the user turn sent to the model.
func BuildPrompt(message, context string) string {
	var sb strings.Builder
	if context != "" {
		sb.WriteString(contextIntro)
		sb.WriteString(context)
		sb.WriteString(contextOutro)
		sb.WriteString("\n")
	}
	sb.WriteString(questionLabel)
	sb.WriteString(message)
	return sb.String()
}

// buildContents maps prior turns and the new prompt to genai contents.
func buildContents(history []chat.Turn, prompt string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
}

// Generate produces a reply. Transient failures wrap ErrTransient.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	cfg := *c.baseConfig
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	cfg.MaxOutputTokens = c.maxTokens
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}

	prompt := req.Message
	if !req.Raw {
		prompt = BuildPrompt(req.Message, req.Context)
	}
	contents := buildContents(req.History, prompt)
	c.log.DebugContext(ctx, "Generating reply", "model", model, "history_turns", len(req.History), "context_chars", len(req.Context))

	resp, err := c.generateContentWithRetries(ctx, model, contents, &cfg)
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, model, resp)
}

func (c *Client) generateContentWithRetries(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.callGenerate(ctx, model, contents, cfg)
		if err == nil {
			return resp, nil
		}

		if !IsTransient(err) || ctx.Err() != nil {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "model", model, "error", err)
			return nil, classify("gemini API call failed", err)
		}
		if i < c.maxRetries {
			c.log.WarnContext(ctx, "Retrying Gemini API call", "model", model, "attempt", i+1, "delay", c.retryDelay, "error", err)
			select {
			case <-ctx.Done():
				return nil, classify("gemini API call cancelled", ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}
	c.log.ErrorContext(ctx, "Gemini API call failed after retries", "model", model, "retries", c.maxRetries, "error", err)
	return nil, classify(fmt.Sprintf("gemini API call failed after %d retries", c.maxRetries), err)
}

func (c *Client) callGenerate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.models.GenerateContent(ctx, model, contents, cfg)
}

func (c *Client) extractText(ctx context.Context, model string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "model", model, "reason", reason)
		return "", fmt.Errorf("request blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing content", "model", model, "finish_reason", finishReason)
		return "", fmt.Errorf("%w (finish reason: %s)", ErrEmptyResponse, finishReason)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Condense summarizes turns in two or three sentences. It satisfies
// memory.Condenser.
func (c *Client) Condense(ctx context.Context, turns []chat.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("no turns to condense")
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := userLabel
		if turn.Role == chat.RoleAssistant {
			label = assistantLabel
		}
		lines = append(lines, label+": "+turn.Text)
	}

	cfg := *c.baseConfig
	cfg.SystemInstruction = genai.NewContentFromText(CondenseSystemInstruction, genai.RoleUser)
	cfg.MaxOutputTokens = 256

	prompt := CondensePrompt + "\n\n" + strings.Join(lines, "\n")
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, c.model, contents, &cfg)
	if err != nil {
		return "", fmt.Errorf("failed to condense history: %w", err)
	}
	return c.extractText(ctx, c.model, resp)
}
