package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

var ErrMalformedResponse = errors.New("malformed moderation response")

const systemPrompt = `You are a content moderation expert. Determine if the user's text contains profanity.
Respond only with a JSON object of the form {"isProfane": boolean, "reason": string} where reason explains the determination.`

// OpenAIOracle asks a chat model for a profanity verdict.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

func NewOpenAIOracle(apiKey, model string) *OpenAIOracle {
	return NewOpenAIOracleWithConfig(openai.DefaultConfig(apiKey), model)
}

func NewOpenAIOracleWithConfig(cfg openai.ClientConfig, model string) *OpenAIOracle {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOracle{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIOracle) Moderate(ctx context.Context, text string) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("model", o.model).Msg("moderation call failed")
		return Result{}, fmt.Errorf("openai moderation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

func parseVerdict(content string) (Result, error) {
	var raw struct {
		IsProfane *bool  `json:"isProfane"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.IsProfane == nil {
		return Result{}, fmt.Errorf("%w: missing isProfane", ErrMalformedResponse)
	}
	return Result{IsProfane: *raw.IsProfane, Reason: raw.Reason}, nil
}
