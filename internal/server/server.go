package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/graph"
	"relmap/internal/tools"
)

// New creates a fully configured MCP server with all tools registered.
func New(store *graph.Store) *mcp.Server {
	ct := &tools.ChartTools{Store: store}
	dt := &tools.DiagramTools{Store: store}
	lt := &tools.LayoutTools{}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "relmap",
		Version: "0.1.0",
	}, nil)

	// Chart lifecycle tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_charts",
		Description: "List all charts as lightweight summaries, most recently updated first",
	}, ct.ListCharts)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_chart",
		Description: "Create a new empty chart and make it the active chart",
	}, ct.CreateChart)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "switch_chart",
		Description: "Flush the active chart and load another chart by id",
	}, ct.SwitchChart)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rename_chart",
		Description: "Rename a chart by id (active or not)",
	}, ct.RenameChart)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_chart",
		Description: "Delete a chart by id; the sole remaining chart is emptied in place instead",
	}, ct.DeleteChart)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_active_chart",
		Description: "Read the full active chart including persons and relationships",
	}, ct.GetActiveChart)

	// Diagram mutation tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_person",
		Description: "Add a person or item node to the active chart",
	}, dt.AddPerson)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_person",
		Description: "Update fields of a person on the active chart",
	}, dt.UpdatePerson)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remove_person",
		Description: "Remove a person and every relationship touching it",
	}, dt.RemovePerson)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_relationship",
		Description: "Connect two persons; a pair can hold at most one relationship",
	}, dt.AddRelationship)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_relationship",
		Description: "Update a relationship's type and labels (endpoints are immutable)",
	}, dt.UpdateRelationship)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remove_relationship",
		Description: "Remove a relationship by id",
	}, dt.RemoveRelationship)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_chart",
		Description: "Read the full active chart",
	}, dt.ReadChart)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_persons",
		Description: "Full-text search over person names on the active chart",
	}, dt.SearchPersons)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "undo",
		Description: "Undo the last data mutation on the active chart",
	}, dt.Undo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "redo",
		Description: "Redo the last undone data mutation on the active chart",
	}, dt.Redo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_layout_params",
		Description: "Replace the active chart's layout tuning (not undoable)",
	}, dt.SetLayoutParams)

	// Layout tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "resolve_overlaps",
		Description: "Push overlapping diagram nodes apart without disturbing separated nodes",
	}, lt.ResolveOverlaps)

	return srv
}
