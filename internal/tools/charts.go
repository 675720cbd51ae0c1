package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/graph"
	"relmap/internal/storage"
)

// ChartTools holds references needed by chart-lifecycle tool handlers.
type ChartTools struct {
	Store *graph.Store
}

// --- Input types ---

type CreateChartInput struct {
	Name string `json:"name,omitempty" jsonschema:"Name for the new chart (defaults to Untitled Chart)"`
}

type SwitchChartInput struct {
	ID string `json:"id" jsonschema:"ID of the chart to make active"`
}

type RenameChartInput struct {
	ID   string `json:"id" jsonschema:"ID of the chart to rename"`
	Name string `json:"name" jsonschema:"New chart name"`
}

type DeleteChartInput struct {
	ID string `json:"id" jsonschema:"ID of the chart to delete"`
}

// --- Handlers ---

func (t *ChartTools) ListCharts(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Store.ChartMetas())
}

func (t *ChartTools) CreateChart(ctx context.Context, _ *mcp.CallToolRequest, input CreateChartInput) (*mcp.CallToolResult, any, error) {
	chart, err := t.Store.CreateChart(ctx, input.Name)
	if err != nil {
		return toolError("Failed to create chart: %v", err), nil, nil
	}
	return toolJSON(chart.Meta())
}

func (t *ChartTools) SwitchChart(ctx context.Context, _ *mcp.CallToolRequest, input SwitchChartInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Chart id is required"), nil, nil
	}
	if err := t.Store.SwitchChart(ctx, input.ID); err != nil {
		if errors.Is(err, storage.ErrChartNotFound) {
			return toolError("Chart %q not found", input.ID), nil, nil
		}
		return toolError("Failed to switch chart: %v", err), nil, nil
	}
	return toolJSON(t.Store.ActiveChart())
}

func (t *ChartTools) RenameChart(ctx context.Context, _ *mcp.CallToolRequest, input RenameChartInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" || input.Name == "" {
		return toolError("Chart id and name are required"), nil, nil
	}
	if err := t.Store.RenameChart(ctx, input.ID, input.Name); err != nil {
		if errors.Is(err, storage.ErrChartNotFound) {
			return toolError("Chart %q not found", input.ID), nil, nil
		}
		return toolError("Failed to rename chart: %v", err), nil, nil
	}
	return toolJSON(t.Store.ChartMetas())
}

func (t *ChartTools) DeleteChart(ctx context.Context, _ *mcp.CallToolRequest, input DeleteChartInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Chart id is required"), nil, nil
	}
	if err := t.Store.DeleteChart(ctx, input.ID); err != nil {
		if errors.Is(err, storage.ErrChartNotFound) {
			return toolError("Chart %q not found", input.ID), nil, nil
		}
		return toolError("Failed to delete chart: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Chart %q deleted. Active chart is now %q.", input.ID, t.Store.ActiveChartID())), nil, nil
}

func (t *ChartTools) GetActiveChart(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Store.ActiveChart())
}

// --- Helpers shared by all tool files ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
