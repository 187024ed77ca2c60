// Package summarize derives compliance checklists from circular text with Gemini.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const promptTemplate = `As an expert in RBI regulations and cybersecurity, analyze the provided text to generate a unified, exhaustive compliance checklist, grouping all requirements under clear headings and converting each specific, detailed item into an audit-ready yes/no question without omitting any conditions or timeframes.
Circular Text:
%s

Compliance Checklist:
`

// ErrEmptyChecklist is returned when the model answers with no text.
var ErrEmptyChecklist = errors.New("model returned an empty checklist")

// generator is the slice of the Gemini API the summarizer needs.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Config controls checklist generation.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Summarizer implements circular.Summarizer.
type Summarizer struct {
	gen     generator
	timeout time.Duration
	logger  *zap.Logger
}

// NewGemini creates a Summarizer backed by the Gemini API.
func NewGemini(ctx context.Context, cfg Config, logger *zap.Logger) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newSummarizer(&geminiGenerator{client: client, model: cfg.Model}, cfg.Timeout, logger), nil
}

func newSummarizer(gen generator, timeout time.Duration, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gen: gen, timeout: timeout, logger: logger}
}

// Checklist asks the model for an audit-ready yes/no checklist covering text.
func (s *Summarizer) Checklist(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no circular text to summarize")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.gen.Generate(ctx, BuildPrompt(text))
	if err != nil {
		return "", fmt.Errorf("generate checklist: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyChecklist
	}
	s.logger.Info("checklist generated", zap.Int("chars", len(out)), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Close releases the underlying client.
func (s *Summarizer) Close() error {
	return s.gen.Close()
}

// BuildPrompt embeds the circular text in the checklist instructions.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractTextFromResponse(resp)
}

func (g *geminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// extractTextFromResponse concatenates the text parts of the first candidate.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
