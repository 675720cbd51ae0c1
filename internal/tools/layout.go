package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/layout"
)

// LayoutTools exposes the collision resolver to layout collaborators.
type LayoutTools struct{}

type ResolveOverlapsInput struct {
	Nodes   []*layout.Node  `json:"nodes" jsonschema:"Nodes with current positions and optional measured sizes"`
	Options *layout.Options `json:"options,omitempty" jsonschema:"Resolver tuning (defaults applied when omitted)"`
}

// ResolveOverlaps runs the post-layout collision pass over the supplied
// node positions and returns the adjusted list in the same order.
func (t *LayoutTools) ResolveOverlaps(_ context.Context, _ *mcp.CallToolRequest, input ResolveOverlapsInput) (*mcp.CallToolResult, any, error) {
	opts := layout.DefaultOptions()
	if input.Options != nil {
		opts = *input.Options
	}
	resolved := layout.Resolve(input.Nodes, opts)
	return toolJSON(resolved)
}
