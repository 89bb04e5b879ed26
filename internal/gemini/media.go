package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

// maxInlineBytes is the Gemini limit for inline request payloads.
const maxInlineBytes = 20 << 20

// Transcribe converts a voice note into text. Failures are logged and yield
// an empty string so ingestion carries on.
func (c *Client) Transcribe(ctx context.Context, path string) string {
	text, err := c.describeFile(ctx, path, "audio/", TranscribeSystemInstruction, transcribeRequest, 1024)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to transcribe audio", "path", path, "error", err)
		return ""
	}
	c.log.InfoContext(ctx, "Transcription complete", "path", path, "chars", len([]rune(text)))
	return text
}

// Caption describes an image. Failures are logged and yield an empty string.
func (c *Client) Caption(ctx context.Context, path string) string {
	text, err := c.describeFile(ctx, path, "image/", CaptionSystemInstruction, captionRequest, 200)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to caption image", "path", path, "error", err)
		return ""
	}
	c.log.InfoContext(ctx, "Image caption complete", "path", path, "chars", len([]rune(text)))
	return text
}

func (c *Client) describeFile(ctx context.Context, path, wantPrefix, system, request string, maxTokens int32) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("media file unavailable: %w", err)
	}
	if info.Size() == 0 || info.Size() > maxInlineBytes {
		return "", fmt.Errorf("media file size %d outside inline limits", info.Size())
	}

	mimeType, err := DetectMIME(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mimeType, wantPrefix) {
		return "", fmt.Errorf("unsupported media type %q", mimeType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}

	cfg := *c.baseConfig
	cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	cfg.MaxOutputTokens = maxTokens

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(request),
	}, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, c.model, contents, &cfg)
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, c.model, resp)
}

// DetectMIME sniffs the media type of a file from its content, without
// parameters.
func DetectMIME(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect media type: %w", err)
	}
	mimeType, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(mimeType), nil
}
