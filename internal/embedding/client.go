package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned when no OpenAI API key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// Client wraps the OpenAI client shared by the embedder and the classifier.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. baseURL may point at any
// OpenAI-compatible endpoint; an empty baseURL uses the public API.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" && baseURL == "" {
		return nil, ErrMissingAPIKey
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., classification).
func (c *Client) Client() *openai.Client {
	return c.client
}
