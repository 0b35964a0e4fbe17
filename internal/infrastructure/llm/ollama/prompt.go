package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

func buildAnswerPrompt(question string, passages []domain.RetrievedPassage) string {
	var contextBuilder strings.Builder
	for idx, passage := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] %s\n%s\n\n",
			idx+1,
			passage.Title,
			passage.Text,
		))
	}

	return fmt.Sprintf(`You are a helpful assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
Your responses should be informative and relevant to the input.
If you don't know the answer, just say that you don't know.
Question: %s
Context:
%s
Answer:
`, question, contextBuilder.String())
}
