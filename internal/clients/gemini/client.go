// Package gemini provides the Google Gemini-backed scan summarizer.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Client generates narrative summaries of completed scans.
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithModel sets the model to use.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Summarize produces a short narrative over a completed scan's matches.
func (c *Client) Summarize(ctx context.Context, indices []string, results []models.ScreenResult) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("results", len(results)).Msg("Generating scan summary")

	contents := genai.Text(buildSummaryPrompt(indices, results))
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate scan summary: %w", err)
	}

	return extractTextFromResponse(result)
}

// buildSummaryPrompt flattens the result set into a compact table the
// model can reason over.
func buildSummaryPrompt(indices []string, results []models.ScreenResult) string {
	var sb strings.Builder
	sb.WriteString("You are summarizing the output of a technical stock screen")
	if len(indices) > 0 {
		fmt.Fprintf(&sb, " over the %s index(es)", strings.Join(indices, ", "))
	}
	sb.WriteString(".\n\n")
	fmt.Fprintf(&sb, "%d symbols matched:\n\n", len(results))
	sb.WriteString("symbol | price | dmi_composite | ppo_slope_pct | hook | 20d_return_pct\n")

	for _, r := range results {
		fmt.Fprintf(&sb, "%s | %.2f | %.1f | %.2f | %s | %.2f\n",
			r.Symbol, r.Price, r.DMIComposite, r.PPOSlopePct, r.PPOHook, r.Return20D)
	}

	sb.WriteString("\nProvide:\n")
	sb.WriteString("1. A two-sentence overview of what the screen surfaced\n")
	sb.WriteString("2. The two or three strongest momentum setups and why\n")
	sb.WriteString("3. Any sector concentration worth noting\n")
	sb.WriteString("Keep it under 200 words.\n")

	return sb.String()
}

func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}
