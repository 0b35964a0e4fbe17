package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

type QueryUseCase struct {
	retriever ports.PassageRetriever
	generator ports.AnswerGenerator
}

func NewQueryUseCase(retriever ports.PassageRetriever, generator ports.AnswerGenerator) *QueryUseCase {
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string, k, fetchK int) (*domain.Answer, error) {
	passages, err := uc.retriever.Retrieve(ctx, question, k, fetchK)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, passages)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: passages,
	}, nil
}
