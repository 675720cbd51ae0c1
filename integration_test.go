package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/graph"
	"relmap/internal/layout"
	"relmap/internal/models"
	"relmap/internal/server"
	"relmap/internal/storage"
)

// setupIntegration creates a real MCP server with in-memory transport and returns a connected client session.
func setupIntegration(t *testing.T) (*mcp.ClientSession, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "relmap-integration-*")
	if err != nil {
		t.Fatal(err)
	}

	repo, err := storage.Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}

	store := graph.New(repo, log.New(io.Discard), 0)

	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		store.Close()
		repo.Close()
		os.RemoveAll(dir)
		t.Fatalf("load: %v", err)
	}

	srv := server.New(store)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		store.Close()
		repo.Close()
		os.RemoveAll(dir)
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		store.Close()
		repo.Close()
		os.RemoveAll(dir)
		t.Fatalf("client connect: %v", err)
	}

	cleanup := func() {
		session.Close()
		store.Close()
		repo.Close()
		os.RemoveAll(dir)
	}
	return session, cleanup
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

// callToolExpectError calls a tool and expects an error response (IsError=true).
func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	if !result.IsError {
		tc := result.Content[0].(*mcp.TextContent)
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	tc := result.Content[0].(*mcp.TextContent)
	return tc.Text
}

func TestIntegration_ListTools(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"list_charts", "create_chart", "switch_chart", "rename_chart",
		"delete_chart", "get_active_chart",
		"add_person", "update_person", "remove_person",
		"add_relationship", "update_relationship", "remove_relationship",
		"read_chart", "search_persons", "undo", "redo",
		"set_layout_params", "resolve_overlaps",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	// Step 1: startup leaves exactly one default chart.
	text := callTool(t, session, "list_charts", nil)
	var metas []models.ChartMeta
	if err := json.Unmarshal([]byte(text), &metas); err != nil {
		t.Fatalf("parse list_charts: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 chart on startup, got %d", len(metas))
	}
	firstID := metas[0].ID
	if metas[0].Name != "Untitled Chart" {
		t.Errorf("default chart name = %q, want %q", metas[0].Name, "Untitled Chart")
	}

	// Step 2: add two persons.
	text = callTool(t, session, "add_person", map[string]any{"name": "Ada"})
	var ada models.Person
	if err := json.Unmarshal([]byte(text), &ada); err != nil {
		t.Fatalf("parse add_person: %v", err)
	}
	if ada.ID == "" || ada.Kind != "person" {
		t.Errorf("add_person returned %+v", ada)
	}

	text = callTool(t, session, "add_person", map[string]any{"name": "Ben"})
	var ben models.Person
	if err := json.Unmarshal([]byte(text), &ben); err != nil {
		t.Fatal(err)
	}

	// Step 3: connect them, then try the reversed duplicate.
	text = callTool(t, session, "add_relationship", map[string]any{
		"source_person_id":       ada.ID,
		"target_person_id":       ben.ID,
		"source_to_target_label": "friend",
	})
	var rel models.Relationship
	if err := json.Unmarshal([]byte(text), &rel); err != nil {
		t.Fatalf("parse add_relationship: %v", err)
	}
	if rel.Type != "one-way" {
		t.Errorf("default relationship type = %q, want %q", rel.Type, "one-way")
	}

	text = callTool(t, session, "add_relationship", map[string]any{
		"source_person_id":       ben.ID,
		"target_person_id":       ada.ID,
		"source_to_target_label": "colleague",
	})
	if !strings.Contains(text, "not added") {
		t.Errorf("reversed duplicate should be refused, got %q", text)
	}

	// Step 4: read_chart shows both persons and the single relationship.
	text = callTool(t, session, "read_chart", nil)
	var chart models.Chart
	if err := json.Unmarshal([]byte(text), &chart); err != nil {
		t.Fatalf("parse read_chart: %v", err)
	}
	if len(chart.Persons) != 2 || len(chart.Relationships) != 1 {
		t.Fatalf("chart has %d persons, %d relationships; want 2, 1", len(chart.Persons), len(chart.Relationships))
	}
	if chart.Relationships[0].SourceToTargetLabel != "friend" {
		t.Errorf("surviving label = %q, want %q", chart.Relationships[0].SourceToTargetLabel, "friend")
	}

	// Step 5: undo removes the relationship, redo brings it back.
	text = callTool(t, session, "undo", nil)
	if err := json.Unmarshal([]byte(text), &chart); err != nil {
		t.Fatalf("parse undo: %v", err)
	}
	if len(chart.Relationships) != 0 || len(chart.Persons) != 2 {
		t.Errorf("after undo: %d persons, %d relationships; want 2, 0", len(chart.Persons), len(chart.Relationships))
	}

	text = callTool(t, session, "redo", nil)
	if err := json.Unmarshal([]byte(text), &chart); err != nil {
		t.Fatal(err)
	}
	if len(chart.Relationships) != 1 {
		t.Errorf("redo should restore the relationship, got %d", len(chart.Relationships))
	}

	text = callTool(t, session, "redo", nil)
	if text != "Nothing to redo." {
		t.Errorf("exhausted redo should say so, got %q", text)
	}

	// Step 6: rename a person and find them via search.
	callTool(t, session, "update_person", map[string]any{
		"id":   ada.ID,
		"name": "Ada Lovelace",
	})
	text = callTool(t, session, "search_persons", map[string]any{"query": "Lovelace"})
	var found []models.Person
	if err := json.Unmarshal([]byte(text), &found); err != nil {
		t.Fatalf("parse search_persons: %v", err)
	}
	if len(found) != 1 || found[0].ID != ada.ID {
		t.Errorf("search_persons('Lovelace') = %+v, want Ada", found)
	}

	// Step 7: create a second chart; it becomes active and empty.
	text = callTool(t, session, "create_chart", map[string]any{"name": "work"})
	var workMeta models.ChartMeta
	if err := json.Unmarshal([]byte(text), &workMeta); err != nil {
		t.Fatalf("parse create_chart: %v", err)
	}
	if workMeta.Name != "work" {
		t.Errorf("chart name = %q, want %q", workMeta.Name, "work")
	}

	text = callTool(t, session, "read_chart", nil)
	json.Unmarshal([]byte(text), &chart)
	if chart.ID != workMeta.ID || len(chart.Persons) != 0 {
		t.Errorf("new chart should be active and empty, got id=%q persons=%d", chart.ID, len(chart.Persons))
	}

	text = callTool(t, session, "undo", nil)
	if text != "Nothing to undo." {
		t.Errorf("history must not leak across charts, got %q", text)
	}

	// Step 8: switch back; the first chart kept its data.
	text = callTool(t, session, "switch_chart", map[string]any{"id": firstID})
	if err := json.Unmarshal([]byte(text), &chart); err != nil {
		t.Fatalf("parse switch_chart: %v", err)
	}
	if chart.ID != firstID || len(chart.Persons) != 2 {
		t.Errorf("switch back lost data: id=%q persons=%d", chart.ID, len(chart.Persons))
	}

	// Step 9: rename the inactive chart.
	text = callTool(t, session, "rename_chart", map[string]any{
		"id":   workMeta.ID,
		"name": "clients",
	})
	if err := json.Unmarshal([]byte(text), &metas); err != nil {
		t.Fatalf("parse rename_chart: %v", err)
	}
	renamed := false
	for _, m := range metas {
		if m.ID == workMeta.ID && m.Name == "clients" {
			renamed = true
		}
	}
	if !renamed {
		t.Errorf("rename_chart did not stick: %+v", metas)
	}

	// Step 10: delete the inactive chart.
	text = callTool(t, session, "delete_chart", map[string]any{"id": workMeta.ID})
	if !strings.Contains(text, "deleted") {
		t.Errorf("expected deletion confirmation, got %q", text)
	}
	text = callTool(t, session, "list_charts", nil)
	json.Unmarshal([]byte(text), &metas)
	if len(metas) != 1 {
		t.Fatalf("expected 1 chart after delete, got %d", len(metas))
	}

	// Step 11: deleting the sole chart empties it in place.
	callTool(t, session, "delete_chart", map[string]any{"id": firstID})
	text = callTool(t, session, "read_chart", nil)
	json.Unmarshal([]byte(text), &chart)
	if chart.ID != firstID {
		t.Errorf("sole chart should keep its id, got %q", chart.ID)
	}
	if len(chart.Persons) != 0 || len(chart.Relationships) != 0 {
		t.Errorf("sole chart should be emptied, got %d persons, %d relationships", len(chart.Persons), len(chart.Relationships))
	}

	// Step 12: layout tuning round-trips.
	text = callTool(t, session, "set_layout_params", map[string]any{
		"layout": map[string]any{
			"link_distance":    220,
			"charge_strength":  -500,
			"collision_radius": 100,
			"center_gravity":   0.1,
		},
	})
	var params models.LayoutParams
	if err := json.Unmarshal([]byte(text), &params); err != nil {
		t.Fatalf("parse set_layout_params: %v", err)
	}
	if params.LinkDistance != 220 || params.ChargeStrength != -500 {
		t.Errorf("layout params = %+v", params)
	}
}

func TestIntegration_ResolveOverlaps(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	// Two coincident unmeasured nodes must be pushed apart.
	text := callTool(t, session, "resolve_overlaps", map[string]any{
		"nodes": []any{
			map[string]any{"id": "a", "position": map[string]any{"x": 100, "y": 100}},
			map[string]any{"id": "b", "position": map[string]any{"x": 100, "y": 100}},
		},
	})
	var nodes []*layout.Node
	if err := json.Unmarshal([]byte(text), &nodes); err != nil {
		t.Fatalf("parse resolve_overlaps: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Position == nodes[1].Position {
		t.Error("coincident nodes should be separated")
	}

	// Separated nodes come back untouched.
	text = callTool(t, session, "resolve_overlaps", map[string]any{
		"nodes": []any{
			map[string]any{"id": "a", "position": map[string]any{"x": 0, "y": 0}},
			map[string]any{"id": "b", "position": map[string]any{"x": 900, "y": 900}},
		},
	})
	if err := json.Unmarshal([]byte(text), &nodes); err != nil {
		t.Fatal(err)
	}
	if nodes[0].Position.X != 0 || nodes[1].Position.X != 900 {
		t.Errorf("separated nodes moved: %+v", nodes)
	}
}

func TestIntegration_ErrorCases(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	errText := callToolExpectError(t, session, "switch_chart", map[string]any{
		"id": "no-such-chart",
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	errText = callToolExpectError(t, session, "rename_chart", map[string]any{
		"id":   "no-such-chart",
		"name": "x",
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	errText = callToolExpectError(t, session, "delete_chart", map[string]any{
		"id": "no-such-chart",
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	errText = callToolExpectError(t, session, "add_person", map[string]any{
		"name": "",
	})
	if !strings.Contains(errText, "required") {
		t.Errorf("expected 'required', got %q", errText)
	}

	errText = callToolExpectError(t, session, "switch_chart", map[string]any{"id": ""})
	if !strings.Contains(errText, "required") {
		t.Errorf("expected 'required', got %q", errText)
	}

	// Dangling endpoints are a quiet refusal, not a protocol error.
	text := callTool(t, session, "add_relationship", map[string]any{
		"source_person_id":       "ghost-a",
		"target_person_id":       "ghost-b",
		"source_to_target_label": "haunts",
	})
	if !strings.Contains(text, "not added") {
		t.Errorf("expected quiet refusal, got %q", text)
	}

	// Stale ids on updates are quiet no-ops too.
	text = callTool(t, session, "update_person", map[string]any{
		"id":   "stale",
		"name": "x",
	})
	if !strings.Contains(text, "nothing changed") {
		t.Errorf("expected no-op message, got %q", text)
	}
	text = callTool(t, session, "remove_relationship", map[string]any{"id": "stale"})
	if !strings.Contains(text, "nothing changed") {
		t.Errorf("expected no-op message, got %q", text)
	}
}
