package speech

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"autocloudskill/config"
)

const transcribePrompt = "Transcribe the spoken words in this audio clip. " +
	"Reply with only the transcribed text, no explanations or punctuation."

// GeminiTranscriber turns challenge audio into text with the Gemini API.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGeminiTranscriber - connects the transcriber to the Gemini API
func NewGeminiTranscriber(ctx context.Context, cfg config.ServicesConfig, log *zap.Logger) (*GeminiTranscriber, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiTranscriber{
		client: client,
		model:  cfg.GeminiModel,
		log:    log.Named("speech"),
	}, nil
}

// Transcribe sends the audio inline and returns the recognized text.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(audio, mimeType(format)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned no transcription")
	}
	g.log.Debug("audio transcribed", zap.Int("bytes", len(audio)), zap.String("format", format))
	return text, nil
}

func mimeType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mp3"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
