package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/orchestrator"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Ledger       *ledger.Store
}

// NewMCPServer creates an MCP server exposing phone-tree exploration as
// tools, plus the leg ledger as a readable resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ivrmap",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ivrmap — maps a business's IVR phone tree by placing exploratory calls and documenting every menu it reaches."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("explore_tree",
			mcp.WithDescription("Start an asynchronous exploration of a phone tree. Returns a job id immediately; poll job_status for progress."),
			mcp.WithString("phoneNumber", mcp.Description("Target phone number to map"), mcp.Required()),
			mcp.WithString("callbackUrl", mcp.Description("Optional webhook URL to receive progress events")),
		),
		mcpExploreTree(deps),
	)

	s.AddTool(
		mcp.NewTool("job_status",
			mcp.WithDescription("Fetch the current status of an exploration job, including the synthesized context document once completed."),
			mcp.WithString("jobId", mcp.Description("Job id returned by explore_tree"), mcp.Required()),
		),
		mcpJobStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("cancel_job",
			mcp.WithDescription("Cancel a running exploration job. Calls already in flight finish on their own; no further calls are placed."),
			mcp.WithString("jobId", mcp.Description("Job id to cancel"), mcp.Required()),
		),
		mcpCancelJob(deps),
	)

	s.AddTool(
		mcp.NewTool("list_legs",
			mcp.WithDescription("List documented exploration legs from the ledger, optionally filtered by status or path."),
			mcp.WithString("status", mcp.Description("Filter by leg status: COMPLETED, IN_PROGRESS or FAILED")),
			mcp.WithString("path", mcp.Description("Filter by exact DTMF path, e.g. 1-2")),
		),
		mcpListLegs(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ivr://ledger",
			"Leg Ledger",
			mcp.WithResourceDescription("Every documented exploration leg as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLedger(deps),
	)

	return s
}

func mcpExploreTree(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		phoneNumber, err := req.RequireString("phoneNumber")
		if err != nil {
			return mcpError("phoneNumber is required"), nil
		}
		callbackURL := req.GetString("callbackUrl", "")

		id, err := deps.Orchestrator.Submit(orchestrator.Request{
			PhoneNumber: phoneNumber,
			CallbackURL: callbackURL,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start exploration: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Started exploration job %s", id)), nil
	}
}

func mcpJobStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("jobId")
		if err != nil {
			return mcpError("jobId is required"), nil
		}

		snap, err := deps.Orchestrator.Status(id)
		if errors.Is(err, orchestrator.ErrNotFound) {
			return mcpError(fmt.Sprintf("job %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get job status: %v", err)), nil
		}

		b, err := json.Marshal(snap)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCancelJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("jobId")
		if err != nil {
			return mcpError("jobId is required"), nil
		}

		err = deps.Orchestrator.Cancel(id)
		switch {
		case errors.Is(err, orchestrator.ErrNotFound):
			return mcpError(fmt.Sprintf("job %s not found", id)), nil
		case errors.Is(err, orchestrator.ErrTerminal):
			return mcpError(fmt.Sprintf("job %s already finished", id)), nil
		case err != nil:
			return mcpError(fmt.Sprintf("failed to cancel: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Cancelled job %s", id)), nil
	}
}

func mcpListLegs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := ledger.Status(req.GetString("status", ""))
		path := req.GetString("path", "")

		legs := ledger.Filter(deps.Ledger.Load(), status, path)
		if len(legs) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(legs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal legs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceLedger(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		legs := deps.Ledger.Load()

		b, err := json.Marshal(legs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ledger: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
