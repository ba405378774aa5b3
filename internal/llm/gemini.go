package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModelName は回答生成に使用するデフォルトのモデル名。
const DefaultModelName = "gemini-1.5-flash-latest"

const answerPromptTemplate = `Context from the document:
%s

Question:
%s

Please answer based on the context provided. If the answer cannot be found in the context, please say so.`

// GeminiGenerator はGemini APIを使用したGenerator実装。
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGenerator はGeminiクライアントを初期化してGeminiGeneratorを生成する。
// modelNameが空の場合はDefaultModelNameを使用する。
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModelName
	}
	return &GeminiGenerator{
		client:    client,
		modelName: modelName,
	}, nil
}

// Close はGeminiクライアントを閉じる。
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// Generate は質問とコンテキストをGeminiに送り、回答テキストを返す。
func (g *GeminiGenerator) Generate(ctx context.Context, question, docContext string) (string, error) {
	model := g.client.GenerativeModel(g.modelName)

	prompt := fmt.Sprintf(answerPromptTemplate, docContext, question)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &GenerationError{Reason: "upstream request failed", Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &GenerationError{Reason: "empty response from model"}
	}

	var answer strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			answer.WriteString(string(txt))
		}
	}

	if answer.Len() == 0 {
		return "", &GenerationError{Reason: "no text parts in model response"}
	}

	return answer.String(), nil
}

// compile-time interface check
var _ Generator = (*GeminiGenerator)(nil)
