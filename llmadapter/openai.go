package llmadapter

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"

	"github.com/beezlebug/agentgraph/engerr"
)

// OpenAI is the production Adapter, talking to any OpenAI-compatible
// chat-completions endpoint (apiURL overrides the default for
// self-hosted/proxy deployments, matching the original's api_url field
// on an agent node's config).
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Adapter = (*OpenAI)(nil)

// NewOpenAI builds an adapter bound to model, optionally against a custom
// base URL.
func NewOpenAI(model, apiURL, apiKey string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if apiURL != "" {
		cfg.BaseURL = apiURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (a *OpenAI) ChatCompletion(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, engerr.NewTool("llm_adapter", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, engerr.NewTool("llm_adapter", nil)
	}

	choice := resp.Choices[0]
	out := Response{
		Content:   choice.Message.Content,
		Reasoning: choice.Message.ReasoningContent,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llms.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []llms.MessageContent) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := toOpenAIRole(m.Role)
		var text string
		var toolCallID string
		var toolCalls []openai.ToolCall
		for _, part := range m.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				text += p.Text
			case llms.ToolCall:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   p.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      p.FunctionCall.Name,
						Arguments: p.FunctionCall.Arguments,
					},
				})
			case llms.ToolCallResponse:
				toolCallID = p.ToolCallID
				text += p.Content
			}
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:       role,
			Content:    text,
			ToolCalls:  toolCalls,
			ToolCallID: toolCallID,
		})
	}
	return out
}

func toOpenAIRole(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case llms.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	case llms.ChatMessageTypeTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func toOpenAITools(tools []llms.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		var params json.RawMessage
		if b, err := json.Marshal(t.Function.Parameters); err == nil {
			params = b
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
