// Command pagelens-mcp exposes a running pagelens instance as MCP tools over
// stdio, so agent runtimes can render pages without speaking HTTP directly.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("PAGELENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	token := os.Getenv("PAGELENS_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "PAGELENS_TOKEN is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"pagelens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	renderTool := mcp.NewTool("render_page",
		mcp.WithDescription("Render a URL in a real browser with anti-bot evasions and return the final HTML after JavaScript execution."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to render"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Hard timeout in milliseconds (default 30000, max 120000)"),
		),
	)
	s.AddTool(renderTool, handleArtifact(apiURL, token, "/api/html"))

	contentTool := mcp.NewTool("extract_content",
		mcp.WithDescription("Render a URL in a real browser and return its readable plain-text content in reading order."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to extract"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Hard timeout in milliseconds (default 30000, max 120000)"),
		),
	)
	s.AddTool(contentTool, handleArtifact(apiURL, token, "/api/content"))

	markdownTool := mcp.NewTool("extract_markdown",
		mcp.WithDescription("Render a URL in a real browser and return the page converted to Markdown."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to convert"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Hard timeout in milliseconds (default 30000, max 120000)"),
		),
	)
	s.AddTool(markdownTool, handleArtifact(apiURL, token, "/api/markdown"))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// handleArtifact proxies a tool call onto one of the raw artifact endpoints
// and returns the body verbatim.
func handleArtifact(apiURL, token, path string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		q := url.Values{}
		q.Set("url", target)
		if timeout := request.GetInt("timeout", 0); timeout > 0 {
			q.Set("timeout", fmt.Sprintf("%d", timeout))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("X-Token", token)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}
		if resp.StatusCode != http.StatusOK {
			return mcp.NewToolResultError(fmt.Sprintf("render failed (HTTP %d): %s", resp.StatusCode, body)), nil
		}

		return mcp.NewToolResultText(string(body)), nil
	}
}
