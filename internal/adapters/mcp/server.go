package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

const (
	ServerName       = "anvesana"
	RetrieveToolName = "retrieve_passages"

	modeMMR        = "mmr"
	modeSimilarity = "similarity"
)

// Tools exposes the retriever to MCP clients.
type Tools struct {
	retriever ports.PassageRetriever
}

func NewTools(retriever ports.PassageRetriever) *Tools {
	return &Tools{retriever: retriever}
}

// NewServer registers the retrieval tool on a fresh MCP server.
func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(RetrieveTool(), tools.RetrievePassages)
	return s
}

func RetrieveTool() mcp.Tool {
	return mcp.NewTool(RetrieveToolName,
		mcp.WithDescription("Search the indexed wiki corpus and return the most relevant, mutually diverse passages with their title and link."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language question or search phrase."),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of passages to return. Defaults to the server setting."),
		),
		mcp.WithNumber("fetch_k",
			mcp.Description("Candidate pool size for diversity selection. Ignored in similarity mode."),
		),
		mcp.WithString("mode",
			mcp.Description("mmr (diverse, default) or similarity (plain nearest neighbours)."),
			mcp.Enum(modeMMR, modeSimilarity),
		),
	)
}

type toolPassage struct {
	Rank  int     `json:"rank"`
	Title string  `json:"title"`
	Link  string  `json:"link"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func (t *Tools) RetrievePassages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	// zero falls through to the retriever's configured defaults
	k := req.GetInt("k", 0)
	fetchK := req.GetInt("fetch_k", 0)
	mode := strings.ToLower(strings.TrimSpace(req.GetString("mode", modeMMR)))

	var passages []domain.RetrievedPassage
	switch mode {
	case modeMMR, "":
		passages, err = t.retriever.Retrieve(ctx, query, k, fetchK)
	case modeSimilarity:
		passages, err = t.retriever.Similar(ctx, query, k)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported mode %q", mode)), nil
	}
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", RetrieveToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]toolPassage, 0, len(passages))
	for i, p := range passages {
		out = append(out, toolPassage{Rank: i + 1, Title: p.Title, Link: p.Link, Score: p.Score, Text: p.Text})
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode passages: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
