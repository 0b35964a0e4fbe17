package ollama

import (
	"context"
	"strings"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

const answerTemperature = 0.3

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generator answers a question from retrieved passages with the
// configured chat model.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, passages []domain.RetrievedPassage) (string, error) {
	req := generateRequest{
		Model:   g.client.genModel,
		Prompt:  buildAnswerPrompt(question, passages),
		Options: generateOptions{Temperature: answerTemperature},
	}
	var resp generateResponse
	if err := g.client.postJSON(ctx, "/api/generate", req, &resp, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}
