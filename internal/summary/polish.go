package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

const polishSystemPrompt = "You are a concise technical summarizer. Rewrite the following weekly AI-CLI activity digest as 2-4 plain sentences for a developer reviewing their week. Keep project paths and session counts accurate. Do not invent details."

const polishTimeout = 30 * time.Second

// AnthropicPolish returns a Polish func backed by the Anthropic Messages
// API. Credentials come from the environment the way the SDK resolves
// them; callers should treat any error as a cue to keep the
// deterministic narrative.
func AnthropicPolish(model string) func(string) (string, error) {
	client := anthropic.NewClient()

	return func(text string) (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), polishTimeout)
		defer cancel()

		msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 300,
			System: []anthropic.TextBlockParam{
				{Text: polishSystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic messages: %w", err)
		}

		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("no text block in response")
	}
}
