// Package llm asks an OpenAI-compatible vision model to name an outfit shown
// on a contact sheet.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/errwrap"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultAttempts    = 3
	defaultTemperature = 0.1
	maxBareWords       = 4
)

const systemPrompt = "You are a helpful assistant. Help me with my task! Use the simplest English answer, put the key answer in \"\". Only provide one answer."

const outfitPrompt = "Do most of these images (about >2/3) depict the same outfit? If yes, give a fitting creative English costume name for this outfit in \"\", using two-three words. If no, answer \"no\""

var (
	// ErrNoAPIKey is returned by New when no key is configured.
	ErrNoAPIKey = errors.New("no API key configured for the naming service")

	errEmptyReply   = errors.New("no response from naming service")
	errTryNameAgain = errors.New("reply has no quoted answer; try again")
)

// Config configures the client.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Attempts uint
	Delay    time.Duration
	// Timeout bounds each request; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Client names outfits with a chat completion call.
type Client struct {
	client   *openai.Client
	model    string
	attempts uint
	delay    time.Duration
	timeout  time.Duration
}

// New creates a client for cfg. BaseURL may point to any OpenAI-compatible
// endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:   openai.NewClientWithConfig(config),
		model:    lo.Ternary(cfg.Model == "", DefaultModel, cfg.Model),
		attempts: lo.Ternary(cfg.Attempts == 0, uint(DefaultAttempts), cfg.Attempts),
		delay:    lo.Ternary(cfg.Delay == 0, 500*time.Millisecond, cfg.Delay),
		timeout:  cfg.Timeout,
	}, nil
}

// OutfitPrompt returns the user prompt sent with a contact sheet. Names
// already given in this run are listed so the model can avoid them.
func OutfitPrompt(existing []string) string {
	if len(existing) == 0 {
		return outfitPrompt
	}
	return outfitPrompt + ". Names already used: " + strings.Join(existing, ", ") + "."
}

// NameOutfit sends a JPEG contact sheet and returns the raw reply. Replies
// without a quoted answer are retried; the last one is returned when every
// attempt lacks quotes.
func (c *Client) NameOutfit(ctx context.Context, jpeg []byte, existing []string) (string, error) {
	var reply string
	err := retry.Do(func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		resp, err := c.client.CreateChatCompletion(callCtx, request(c.model, jpeg, existing))
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errEmptyReply
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		if !quotedOrShort(reply) {
			return errTryNameAgain
		}
		return nil
	},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if errwrap.Contains(err, errTryNameAgain.Error()) {
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("naming service: %w", err)
	}
	return reply, nil
}

func request(model string, jpeg []byte, existing []string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Temperature: defaultTemperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: OutfitPrompt(existing),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}
}

func quotedOrShort(reply string) bool {
	if strings.ContainsAny(reply, "\"“”") {
		return true
	}
	return len(strings.Fields(reply)) <= maxBareWords
}
