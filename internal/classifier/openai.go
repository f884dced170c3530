package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"veracity/internal/deception"
)

// OpenAIClient drives any OpenAI-compatible chat endpoint in JSON mode and
// decodes the completion into the result shape.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Name() string { return ProviderOpenAI }

func (c *OpenAIClient) Classify(ctx context.Context, text string, loc deception.Locale) (deception.AnalysisResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: ClassifyPrompt(text, loc)},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return deception.AnalysisResult{}, fmt.Errorf("no response choices")
	}

	payload := extractJSONObject(resp.Choices[0].Message.Content)
	if payload == "" {
		return deception.AnalysisResult{}, fmt.Errorf("response carried no json object")
	}
	var result deception.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return deception.AnalysisResult{}, fmt.Errorf("decode model output: %w", err)
	}
	return result, nil
}

// extractJSONObject recovers the first balanced JSON object from model
// output that may be fenced or wrapped in prose.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) >= 3 {
			s = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
