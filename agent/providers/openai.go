package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/core/response"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	base
	client openai.Client
}

// NewOpenAI creates an OpenAI backend. The SDK's own retries are disabled;
// retrying is configured on the agent.
func NewOpenAI(cfg *config.AgentConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if key := apiKey(cfg, "OPENAI_API_KEY"); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	return &OpenAI{
		base:   newBase("openai", cfg),
		client: openai.NewClient(opts...),
	}, nil
}

func (p *OpenAI) Generate(ctx context.Context, system string, history []protocol.Turn, catalog []protocol.Tool) (*response.Response, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: openAIMessages(system, history),
	}
	if len(catalog) > 0 {
		params.Tools = openAITools(catalog)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	message := completion.Choices[0].Message
	resp := &response.Response{
		Model: completion.Model,
		Text:  message.Content,
		Usage: &response.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for _, tc := range message.ToolCalls {
		resp.Calls = append(resp.Calls, protocol.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

func openAIMessages(system string, history []protocol.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for _, turn := range history {
		switch turn.Kind {
		case protocol.KindUser:
			messages = append(messages, openai.UserMessage(turn.Text))
		case protocol.KindAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		case protocol.KindToolCall:
			call := openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: turn.Call.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      turn.Call.Name,
						Arguments: orEmptyObject(turn.Call.Arguments),
					},
				},
			}
			// Consecutive calls and any commentary preceding them belong to
			// one assistant message.
			if n := len(messages); n > 0 && messages[n-1].OfAssistant != nil {
				last := messages[n-1].OfAssistant
				last.ToolCalls = append(last.ToolCalls, call)
				continue
			}
			m := openai.AssistantMessage("")
			m.OfAssistant.ToolCalls = []openai.ChatCompletionMessageToolCallUnionParam{call}
			messages = append(messages, m)
		case protocol.KindToolResult:
			messages = append(messages, openai.ToolMessage(turn.Result.Text(), turn.Result.ID))
		}
	}
	return messages
}

func openAITools(catalog []protocol.Tool) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(catalog))
	for _, t := range catalog {
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.Parameters),
				},
			},
		})
	}
	return tools
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
