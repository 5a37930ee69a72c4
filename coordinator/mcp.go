package coordinator

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/veilbit/otprelay/codes"
	"github.com/veilbit/otprelay/kit"
)

// RegisterMCP registers the relay's read tools on an MCP server, so agent
// tooling can ask "what codes are available" without touching the browser.
func (c *Coordinator) RegisterMCP(srv *mcp.Server) {
	c.registerLatestTool(srv)
	c.registerListTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (c *Coordinator) registerLatestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "otp_latest",
		Description: "Return the most recently detected one-time passcode, or a waiting indicator when none is buffered.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		// No push channel: an MCP caller polls, it never registers pending.
		return c.Handle(ctx, codes.Envelope{Type: codes.MsgRequestCode})
	}

	decode := func(*mcp.CallToolRequest) (any, error) { return nil, nil }

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

type listRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (c *Coordinator) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "otp_list",
		Description: "List buffered one-time passcodes in recency order, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default: all)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		all, err := c.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		if r.Limit > 0 && len(all) > r.Limit {
			all = all[:r.Limit]
		}
		return codes.Reply{Codes: all}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r listRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
