package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	out      string
	err      error
	prompt   string
	deadline bool
	closed   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	_, f.deadline = ctx.Deadline()
	return f.out, f.err
}

func (f *fakeGenerator) Close() error {
	f.closed = true
	return nil
}

func TestChecklist(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{out: "\n## Governance\n- Is the policy approved? (Yes/No)\n"}
	s := newSummarizer(gen, time.Minute, zap.NewNop())

	got, err := s.Checklist(context.Background(), "Banks shall ...")
	require.NoError(t, err)
	assert.Equal(t, "## Governance\n- Is the policy approved? (Yes/No)", got)
	assert.Contains(t, gen.prompt, "Circular Text:\nBanks shall ...")
	assert.True(t, gen.deadline)

	require.NoError(t, s.Close())
	assert.True(t, gen.closed)
}

func TestChecklistErrors(t *testing.T) {
	t.Parallel()

	_, err := newSummarizer(&fakeGenerator{out: "x"}, 0, nil).Checklist(context.Background(), "   ")
	require.Error(t, err)

	_, err = newSummarizer(&fakeGenerator{err: errors.New("quota")}, 0, nil).Checklist(context.Background(), "text")
	require.ErrorContains(t, err, "quota")

	_, err = newSummarizer(&fakeGenerator{out: "  "}, 0, nil).Checklist(context.Background(), "text")
	require.ErrorIs(t, err, ErrEmptyChecklist)
}

func TestNewGeminiRequiresKeyAndModel(t *testing.T) {
	t.Parallel()

	_, err := NewGemini(context.Background(), Config{Model: "gemini-2.5-flash"}, nil)
	require.Error(t, err)

	_, err = NewGemini(context.Background(), Config{APIKey: "k"}, nil)
	require.Error(t, err)
}

func TestExtractTextFromResponse(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("part one, "), genai.Text("part two")}},
		}},
	}
	got, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", got)

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{})
	require.Error(t, err)

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	require.Error(t, err)

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
	}}})
	require.Error(t, err)
}
