package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voronkovm/diagramflow/internal/bootstrap"
	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/observability/logging"
)

// Stdout carries the MCP protocol stream, so every log line goes to stderr.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	app, err := bootstrap.NewWithLogger(ctx, cfg, "mcp", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := server.NewMCPServer("diagramflow", "0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	registerTools(s, app)

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func registerTools(s *server.MCPServer, app *bootstrap.App) {
	s.AddTool(mcp.NewTool("generate_diagram",
		mcp.WithDescription("Generate a Mermaid diagram from a free-form prompt and save it to the library."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What the diagram should show.")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the new diagram.")),
		mcp.WithString("visibility", mcp.Description("Initial visibility."), mcp.Enum("private", "unlisted", "public")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		request := domain.PromptRequest{Prompt: prompt, OwnerID: userID}
		if raw := req.GetString("visibility", ""); raw != "" {
			v, ok := domain.ParseVisibility(raw)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown visibility %q", raw)), nil
			}
			request.Visibility = v
		}

		diagram, err := app.DiagramsUC.GenerateFromPrompt(ctx, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(diagram)
	})

	s.AddTool(mcp.NewTool("get_diagram",
		mcp.WithDescription("Fetch one diagram by id, including its markup and moderation state."),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram identifier.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("diagram_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		diagram, err := app.LibraryUC.Diagram(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(diagram)
	})

	s.AddTool(mcp.NewTool("list_gallery",
		mcp.WithDescription("List approved public diagrams, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of diagrams to return.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		diagrams, err := app.LibraryUC.PublicDiagrams(ctx, req.GetInt("limit", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(diagrams)
	})

	s.AddTool(mcp.NewTool("fix_diagram_syntax",
		mcp.WithDescription("Ask the model to repair a diagram whose markup fails to render."),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram to repair.")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User requesting the repair.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("diagram_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		diagram, err := app.DiagramsUC.FixSyntax(ctx, id, userID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(diagram)
	})

	s.AddTool(mcp.NewTool("related_diagrams",
		mcp.WithDescription("Find public diagrams sharing tags with the given one."),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram to start from.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of neighbours to return.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("diagram_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		related, err := app.DiagramsUC.Related(ctx, id, req.GetInt("limit", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(related)
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
