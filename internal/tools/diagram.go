package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/graph"
	"relmap/internal/models"
)

// DiagramTools holds references needed by graph-mutation tool handlers.
type DiagramTools struct {
	Store *graph.Store
}

// --- Input types ---

type AddPersonInput struct {
	Name         string `json:"name" jsonschema:"Display name of the person or item"`
	ImageDataURL string `json:"image_data_url,omitempty" jsonschema:"Optional embedded image as a data URL"`
	Kind         string `json:"kind,omitempty" jsonschema:"Node kind: person or item (defaults to person)"`
}

type UpdatePersonInput struct {
	ID           string  `json:"id" jsonschema:"ID of the person to update"`
	Name         *string `json:"name,omitempty" jsonschema:"New display name"`
	ImageDataURL *string `json:"image_data_url,omitempty" jsonschema:"New embedded image data URL"`
	Kind         *string `json:"kind,omitempty" jsonschema:"New kind: person or item"`
}

type RemovePersonInput struct {
	ID string `json:"id" jsonschema:"ID of the person to remove (cascades to relationships)"`
}

type AddRelationshipInput struct {
	SourcePersonID      string  `json:"source_person_id" jsonschema:"ID of the source person"`
	TargetPersonID      string  `json:"target_person_id" jsonschema:"ID of the target person"`
	Type                string  `json:"type,omitempty" jsonschema:"Relationship type: one-way, bidirectional, dual-directed or undirected"`
	SourceToTargetLabel string  `json:"source_to_target_label" jsonschema:"Label read from source to target"`
	TargetToSourceLabel *string `json:"target_to_source_label,omitempty" jsonschema:"Reverse label (dual-directed only)"`
}

type UpdateRelationshipInput struct {
	ID                  string  `json:"id" jsonschema:"ID of the relationship to update"`
	Type                *string `json:"type,omitempty" jsonschema:"New relationship type"`
	SourceToTargetLabel *string `json:"source_to_target_label,omitempty" jsonschema:"New forward label"`
	TargetToSourceLabel *string `json:"target_to_source_label,omitempty" jsonschema:"New reverse label (dual-directed only)"`
}

type RemoveRelationshipInput struct {
	ID string `json:"id" jsonschema:"ID of the relationship to remove"`
}

type SearchPersonsInput struct {
	Query string `json:"query" jsonschema:"Search query over person names (supports FTS5 syntax: AND, OR, NOT, prefix*)"`
}

type SetLayoutParamsInput struct {
	Layout models.LayoutParams `json:"layout" jsonschema:"New layout tuning parameters for the active chart"`
}

// --- Handlers ---

func (t *DiagramTools) AddPerson(_ context.Context, _ *mcp.CallToolRequest, input AddPersonInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Person name is required"), nil, nil
	}
	p := t.Store.AddPerson(graph.PersonInput{
		Name:         input.Name,
		ImageDataURL: input.ImageDataURL,
		Kind:         input.Kind,
	})
	return toolJSON(p)
}

func (t *DiagramTools) UpdatePerson(_ context.Context, _ *mcp.CallToolRequest, input UpdatePersonInput) (*mcp.CallToolResult, any, error) {
	p, ok := t.Store.UpdatePerson(input.ID, graph.PersonPatch{
		Name:         input.Name,
		ImageDataURL: input.ImageDataURL,
		Kind:         input.Kind,
	})
	if !ok {
		return toolText(fmt.Sprintf("No person with id %q; nothing changed.", input.ID)), nil, nil
	}
	return toolJSON(p)
}

func (t *DiagramTools) RemovePerson(_ context.Context, _ *mcp.CallToolRequest, input RemovePersonInput) (*mcp.CallToolResult, any, error) {
	if t.Store.RemovePerson(input.ID) {
		return toolText(fmt.Sprintf("Removed person %q and its relationships.", input.ID)), nil, nil
	}
	return toolText(fmt.Sprintf("No person with id %q; nothing changed.", input.ID)), nil, nil
}

func (t *DiagramTools) AddRelationship(_ context.Context, _ *mcp.CallToolRequest, input AddRelationshipInput) (*mcp.CallToolResult, any, error) {
	rel, ok := t.Store.AddRelationship(graph.RelationshipInput{
		SourcePersonID:      input.SourcePersonID,
		TargetPersonID:      input.TargetPersonID,
		Type:                input.Type,
		SourceToTargetLabel: input.SourceToTargetLabel,
		TargetToSourceLabel: input.TargetToSourceLabel,
	})
	if !ok {
		// Already-connected pairs are a deliberate silent no-op.
		return toolText("Relationship not added (pair already connected, or an endpoint is unknown)."), nil, nil
	}
	return toolJSON(rel)
}

func (t *DiagramTools) UpdateRelationship(_ context.Context, _ *mcp.CallToolRequest, input UpdateRelationshipInput) (*mcp.CallToolResult, any, error) {
	rel, ok := t.Store.UpdateRelationship(input.ID, graph.RelationshipPatch{
		Type:                input.Type,
		SourceToTargetLabel: input.SourceToTargetLabel,
		TargetToSourceLabel: input.TargetToSourceLabel,
	})
	if !ok {
		return toolText(fmt.Sprintf("No relationship with id %q; nothing changed.", input.ID)), nil, nil
	}
	return toolJSON(rel)
}

func (t *DiagramTools) RemoveRelationship(_ context.Context, _ *mcp.CallToolRequest, input RemoveRelationshipInput) (*mcp.CallToolResult, any, error) {
	if t.Store.RemoveRelationship(input.ID) {
		return toolText(fmt.Sprintf("Removed relationship %q.", input.ID)), nil, nil
	}
	return toolText(fmt.Sprintf("No relationship with id %q; nothing changed.", input.ID)), nil, nil
}

func (t *DiagramTools) ReadChart(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Store.ActiveChart())
}

func (t *DiagramTools) SearchPersons(ctx context.Context, _ *mcp.CallToolRequest, input SearchPersonsInput) (*mcp.CallToolResult, any, error) {
	persons, err := t.Store.SearchPersons(ctx, input.Query)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	if persons == nil {
		persons = []models.Person{}
	}
	return toolJSON(persons)
}

func (t *DiagramTools) Undo(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	if !t.Store.Undo() {
		return toolText("Nothing to undo."), nil, nil
	}
	return toolJSON(t.Store.ActiveChart())
}

func (t *DiagramTools) Redo(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	if !t.Store.Redo() {
		return toolText("Nothing to redo."), nil, nil
	}
	return toolJSON(t.Store.ActiveChart())
}

func (t *DiagramTools) SetLayoutParams(_ context.Context, _ *mcp.CallToolRequest, input SetLayoutParamsInput) (*mcp.CallToolResult, any, error) {
	t.Store.SetLayoutParams(input.Layout)
	return toolJSON(t.Store.LayoutParams())
}
