package pykernel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ExecuteToolName is the tool name advertised to language models.
const ExecuteToolName = "python"

// executeToolDescription tells the model what the tool does and that state
// persists between calls.
const executeToolDescription = "Execute Python code in a persistent session. " +
	"Variables, imports, and definitions persist across calls. " +
	"Returns printed output and the value of the final expression."

// ExecuteToolSchema returns the JSON Schema for the execute tool input.
func ExecuteToolSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"code": {
				Type:        "string",
				Description: "Python source code to execute",
			},
			"cwd": {
				Type:        "string",
				Description: "Optional working directory for this execution",
			},
		},
		Required: []string{"code"},
	}
}

// NewExecuteTool builds the MCP tool definition and handler exposing the
// session's execute capability to a tool-calling front-end.
//
// The handler renders the normalized result as tool content: successful
// output becomes text content (with image artifacts attached), failures
// become error results carrying the failure message. System faults never
// escape as handler errors.
//
// Register the pair on any MCP server:
//
//	tool, handler := pykernel.NewExecuteTool(session)
//	mcp.AddTool(server, tool, handler)
func NewExecuteTool(session Session) (*mcp.Tool, mcp.ToolHandler) {
	tool := &mcp.Tool{
		Name:        ExecuteToolName,
		Description: executeToolDescription,
		InputSchema: ExecuteToolSchema(),
	}

	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := parseToolArguments(req)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		code, _ := args["code"].(string)
		if strings.TrimSpace(code) == "" {
			return errorResult("missing required argument: code"), nil
		}

		cwd, _ := args["cwd"].(string)

		result, err := session.Execute(ctx, ExecutionRequest{Code: code, Cwd: cwd})
		if err != nil {
			return nil, err
		}

		if !result.Success() {
			return errorResult(result.Err.Message), nil
		}

		return successResult(result), nil
	}

	return tool, handler
}

// successResult renders a successful execution as tool content.
func successResult(result *ExecutionResult) *mcp.CallToolResult {
	content := []mcp.Content{&mcp.TextContent{Text: result.Output}}

	for _, artifact := range result.Artifacts {
		if !strings.HasPrefix(artifact.MIME, "image/") {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(artifact.Data)
		if err != nil {
			continue
		}

		content = append(content, &mcp.ImageContent{
			Data:     data,
			MIMEType: artifact.MIME,
		})
	}

	return &mcp.CallToolResult{Content: content}
}

// errorResult creates a CallToolResult indicating an error.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// parseToolArguments unmarshals CallToolRequest arguments into a map.
func parseToolArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
