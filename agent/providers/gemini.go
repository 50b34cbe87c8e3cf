package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/core/response"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	base
	client *genai.Client
}

// NewGemini creates a Gemini backend. The API key comes from the config or
// from GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGemini(cfg *config.AgentConfig) (*Gemini, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey(cfg, "GEMINI_API_KEY", "GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &Gemini{
		base:   newBase("gemini", cfg),
		client: client,
	}, nil
}

func (p *Gemini) Generate(ctx context.Context, system string, history []protocol.Turn, catalog []protocol.Tool) (*response.Response, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(catalog) > 0 {
		gc.Tools = geminiTools(catalog)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(history), gc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	resp := &response.Response{
		Model: result.ModelVersion,
		Text:  result.Text(),
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = &response.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	for _, fc := range result.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil || fc.Args == nil {
			args = []byte("{}")
		}
		resp.Calls = append(resp.Calls, protocol.ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: string(args),
		})
	}
	return resp, nil
}

func geminiContents(history []protocol.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))

	// appendPart merges consecutive parts from the same role into one
	// content, as Gemini expects all calls of a batch in a single model
	// message and all their responses in a single user message.
	appendPart := func(part *genai.Part, role genai.Role) {
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, role))
	}

	for _, turn := range history {
		switch turn.Kind {
		case protocol.KindUser:
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleUser))
		case protocol.KindAssistant:
			if turn.Text == "" {
				continue
			}
			appendPart(genai.NewPartFromText(turn.Text), genai.RoleModel)
		case protocol.KindToolCall:
			appendPart(&genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   turn.Call.ID,
				Name: turn.Call.Name,
				Args: decodeArgs(turn.Call.Arguments),
			}}, genai.RoleModel)
		case protocol.KindToolResult:
			payload := map[string]any{"output": turn.Result.Content}
			if turn.Result.Failed() {
				payload = map[string]any{"error": turn.Result.Text()}
			}
			appendPart(&genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       turn.Result.ID,
				Name:     turn.Result.Name,
				Response: payload,
			}}, genai.RoleUser)
		}
	}
	return contents
}

func geminiTools(catalog []protocol.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(catalog))
	for _, t := range catalog {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func decodeArgs(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}
