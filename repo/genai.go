package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = openai.ChatModelGPT4oMini
)

// Generator turns a system and user prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// contentGenerator is the slice of genai.Models the Gemini generator needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiGenerator struct {
	models contentGenerator
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{models: client.Models, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIGenerator struct {
	chat  chatService
	model string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIGenerator{chat: &client.Chat.Completions, model: model}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := g.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// NewGenerator picks the backend by provider name. An empty provider prefers
// Gemini when its key is present.
func NewGenerator(ctx context.Context, provider, geminiKey, openaiKey, model string) (Generator, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAIGenerator(openaiKey, model)
	case ProviderGemini:
		return NewGeminiGenerator(ctx, geminiKey, model)
	case "":
		if geminiKey != "" {
			return NewGeminiGenerator(ctx, geminiKey, model)
		}
		log.Info().Msg("no Gemini key, falling back to OpenAI")
		return NewOpenAIGenerator(openaiKey, model)
	}
	return nil, fmt.Errorf("unknown GENAI_PROVIDER %q", provider)
}

// stripFences removes a markdown code fence models sometimes wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
