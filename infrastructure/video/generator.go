package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"autocloudskill/config"
)

// pollInterval paces the long-running video operation checks.
const pollInterval = 10 * time.Second

// Generator renders media through the Gemini API. Unlike the transcriber it
// is built per credential: provisioning hands over a freshly extracted
// project API key and the generator uses exactly that one.
type Generator struct {
	client     *genai.Client
	videoModel string
	imageModel string
	log        *zap.Logger
}

// Request describes one video to render.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	// WithImage renders a first frame with the image model and feeds it
	// in for image-to-video generation.
	WithImage bool
}

// NewGenerator - builds a media generator around one API key
func NewGenerator(ctx context.Context, apiKey string, cfg config.ServicesConfig, log *zap.Logger) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("video generation requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Generator{
		client:     client,
		videoModel: cfg.VideoModel,
		imageModel: cfg.ImageModel,
		log:        log.Named("video"),
	}, nil
}

// GenerateImage renders a still with the image model, used as the first
// frame for image-to-video requests.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (*genai.Image, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("image model returned no image")
	}
	return resp.GeneratedImages[0].Image, nil
}

// GenerateVideo renders the clip and writes it to outputPath. The operation
// is polled until done, bounded by the context deadline.
func (g *Generator) GenerateVideo(ctx context.Context, req Request, outputPath string) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("video prompt is empty")
	}

	var image *genai.Image
	if req.WithImage {
		still, err := g.GenerateImage(ctx, req.Prompt)
		if err != nil {
			return err
		}
		image = still
	}

	var cfg *genai.GenerateVideosConfig
	if req.NegativePrompt != "" || req.AspectRatio != "" {
		cfg = &genai.GenerateVideosConfig{
			NegativePrompt: req.NegativePrompt,
			AspectRatio:    req.AspectRatio,
		}
	}

	op, err := g.client.Models.GenerateVideos(ctx, g.videoModel, req.Prompt, image, cfg)
	if err != nil {
		return fmt.Errorf("video generation request failed: %w", err)
	}

	g.log.Info("video operation started", zap.String("model", g.videoModel))
	for !op.Done {
		select {
		case <-ctx.Done():
			return fmt.Errorf("video operation abandoned: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return fmt.Errorf("video operation poll failed: %w", err)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return fmt.Errorf("video operation finished without a video")
	}
	return g.download(ctx, op.Response.GeneratedVideos[0], outputPath)
}

func (g *Generator) download(ctx context.Context, generated *genai.GeneratedVideo, outputPath string) error {
	if generated.Video == nil {
		return fmt.Errorf("generated video carries no file reference")
	}

	data, err := g.client.Files.Download(ctx, generated.Video, nil)
	if err != nil {
		return fmt.Errorf("video download failed: %w", err)
	}
	if len(data) == 0 {
		data = generated.Video.VideoBytes
	}
	if len(data) == 0 {
		return fmt.Errorf("video download returned no data")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create video directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write video file: %w", err)
	}
	g.log.Info("video saved", zap.String("path", outputPath), zap.Int("bytes", len(data)))
	return nil
}
