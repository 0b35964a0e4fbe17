package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/anvesana/internal/config"
	"github.com/kirillkom/anvesana/internal/core/domain"
)

type retrieverFake struct {
	passages []domain.RetrievedPassage
	err      error

	lastCall   string
	lastK      int
	lastFetchK int
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, k, fetchK int) ([]domain.RetrievedPassage, error) {
	f.lastCall, f.lastK, f.lastFetchK = "retrieve", k, fetchK
	return f.passages, f.err
}

func (f *retrieverFake) Similar(_ context.Context, _ string, k int) ([]domain.RetrievedPassage, error) {
	f.lastCall, f.lastK = "similar", k
	return f.passages, f.err
}

type queryFake struct {
	answer *domain.Answer
	err    error
}

func (f queryFake) Answer(context.Context, string, int, int) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type binderFake struct {
	previous string
	err      error
	opened   string
}

func (f *binderFake) Open(_ context.Context, collection string) (string, error) {
	f.opened = collection
	return f.previous, f.err
}

type schedulerFake struct {
	run       *domain.IngestionRun
	err       error
	recrawled bool
	lookedUp  string
}

func (f *schedulerFake) Schedule(_ context.Context, recrawl bool) (*domain.IngestionRun, error) {
	f.recrawled = recrawl
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func (f *schedulerFake) GetRun(_ context.Context, id string) (*domain.IngestionRun, error) {
	f.lookedUp = id
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Retriever: &retrieverFake{passages: []domain.RetrievedPassage{{Text: "t", Title: "T", Link: "l", Score: 1}}},
		Queries:   queryFake{answer: &domain.Answer{Text: "ok"}},
		Binder:    &binderFake{},
	}).Handler()
}
