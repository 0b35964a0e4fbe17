package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

type retrieverFake struct {
	passages []domain.RetrievedPassage
	err      error
	panics   bool

	call   string
	k      int
	fetchK int
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, k, fetchK int) ([]domain.RetrievedPassage, error) {
	f.call, f.k, f.fetchK = "retrieve", k, fetchK
	if f.panics {
		panic("retriever exploded")
	}
	return f.passages, f.err
}

func (f *retrieverFake) Similar(_ context.Context, _ string, k int) ([]domain.RetrievedPassage, error) {
	f.call, f.k = "similar", k
	return f.passages, f.err
}

func callTool(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      RetrieveToolName,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestRetrievePassagesReturnsRankedJSON(t *testing.T) {
	retriever := &retrieverFake{passages: []domain.RetrievedPassage{
		{Text: "Herbal remedies may help.", Title: "Insomnia", Link: "https://wiki/Insomnia", Score: 0.91},
		{Text: "Chamomile tea.", Title: "Tea", Link: "https://wiki/Tea", Score: 0.42},
	}}
	tools := NewTools(retriever)

	res, err := tools.RetrievePassages(context.Background(), callTool(map[string]any{
		"query":   "How to treat insomnia?",
		"k":       float64(2),
		"fetch_k": float64(8),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if retriever.call != "retrieve" || retriever.k != 2 || retriever.fetchK != 8 {
		t.Fatalf("unexpected retriever call: %+v", retriever)
	}

	var got []toolPassage
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if len(got) != 2 || got[0].Rank != 1 || got[0].Title != "Insomnia" || got[1].Rank != 2 {
		t.Fatalf("unexpected passages: %+v", got)
	}
}

func TestRetrievePassagesSimilarityMode(t *testing.T) {
	retriever := &retrieverFake{}
	res, err := NewTools(retriever).RetrievePassages(context.Background(), callTool(map[string]any{
		"query": "sleep",
		"mode":  "similarity",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.call != "similar" {
		t.Fatalf("expected similarity search, got %q", retriever.call)
	}
	if resultText(t, res) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", resultText(t, res))
	}
}

func TestRetrievePassagesRequiresQuery(t *testing.T) {
	res, err := NewTools(&retrieverFake{}).RetrievePassages(context.Background(), callTool(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestRetrievePassagesSurfacesRetrieverErrors(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapError(domain.ErrNotReady, "retrieve", errors.New("no collection bound"))}
	res, err := NewTools(retriever).RetrievePassages(context.Background(), callTool(map[string]any{"query": "sleep"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestNewServerRegistersTool(t *testing.T) {
	if NewServer("test", NewTools(&retrieverFake{})) == nil {
		t.Fatal("expected server")
	}
	if RetrieveTool().Name != RetrieveToolName {
		t.Fatalf("unexpected tool name %q", RetrieveTool().Name)
	}
}

func TestServerRecoversFromToolPanic(t *testing.T) {
	s := NewServer("test", NewTools(&retrieverFake{panics: true}))

	resp := s.HandleMessage(context.Background(), []byte(`{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "tools/call",
		"params": {"name": "retrieve_passages", "arguments": {"query": "sleep"}}
	}`))
	rpcErr, ok := resp.(mcp.JSONRPCError)
	if !ok {
		t.Fatalf("expected JSON-RPC error, got %T", resp)
	}
	if rpcErr.Error.Code != mcp.INTERNAL_ERROR {
		t.Fatalf("expected internal error code, got %d", rpcErr.Error.Code)
	}
}
