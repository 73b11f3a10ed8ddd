// Package classifier scores a text against candidate labels with an LLM used
// as a zero-shot, multi-label classifier.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultMaxTokens is the maximum input length before truncation (in tokens).
const DefaultMaxTokens = 4000

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

var (
	// ErrEmptyLabels is returned when Classify is called without labels.
	ErrEmptyLabels = errors.New("no candidate labels")

	// ErrMalformedResponse is returned when the model reply is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// Classifier produces independent per-label probabilities using a chat model
// in JSON mode.
type Classifier struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewClassifier creates a classifier with the given OpenAI client.
// Optional maxTokens parameter sets truncation limit (defaults to DefaultMaxTokens).
func NewClassifier(client *openai.Client, model string, maxTokens ...int) *Classifier {
	if model == "" {
		model = DefaultModel
	}
	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	return &Classifier{
		client:    client,
		model:     model,
		maxTokens: max,
		logger:    slog.Default().With("component", "classifier"),
	}
}

type response struct {
	Scores map[string]float64 `json:"scores"`
}

// Classify returns a probability in [0,1] for every label. Each label is judged
// on its own, so the scores need not sum to 1. Labels the model leaves out
// score 0.
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyLabels
	}

	prompt := c.buildPrompt(c.truncateContent(text), labels)

	var content string
	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage("You are a precise multi-label text classifier. Reply with JSON only."),
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(c.model),
			Temperature: openai.Float(0),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode >= 500) {
				c.logger.Warn("classifier request failed, backing off", "status", apiErr.StatusCode)
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("%w: no choices", ErrMalformedResponse))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return parseScores(content, labels)
}

func (c *Classifier) buildPrompt(text string, labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}

	return fmt.Sprintf(`Decide how likely the text below belongs to each candidate label.
Judge every label independently: several labels may apply, or none.
Give each label a probability between 0 and 1.

Candidate labels: [%s]

Text:
%s

Respond in JSON format:
{"scores": {"<label>": 0.0}}
Use the labels exactly as written.`, strings.Join(quoted, ", "), text)
}

// parseScores decodes the model reply into a score for each requested label.
// Unknown labels are ignored, missing labels score 0, and out-of-range or
// non-finite values are clamped into [0,1].
func parseScores(content string, labels []string) (map[string]float64, error) {
	var resp response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Scores == nil {
		return nil, fmt.Errorf("%w: missing scores object", ErrMalformedResponse)
	}

	scores := make(map[string]float64, len(labels))
	for _, label := range labels {
		scores[label] = clamp01(resp.Scores[label])
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (c *Classifier) truncateContent(content string) string {
	maxChars := c.maxTokens * 4

	if len(content) <= maxChars {
		return content
	}

	c.logger.Warn("truncating classifier input",
		"from_chars", len(content), "to_chars", maxChars, "max_tokens", c.maxTokens)

	// Back off to a rune boundary.
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
