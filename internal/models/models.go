package models

import "time"

// PersonKind distinguishes people from inanimate items on a chart.
const (
	KindPerson = "person"
	KindItem   = "item"
)

// Relationship types. A one-way edge carries a single directed label,
// bidirectional and undirected edges mirror one label both ways, and a
// dual-directed edge carries an independent label per direction.
const (
	RelOneWay        = "one-way"
	RelBidirectional = "bidirectional"
	RelDualDirected  = "dual-directed"
	RelUndirected    = "undirected"
)

// ValidKind reports whether k is a known person kind.
func ValidKind(k string) bool {
	return k == KindPerson || k == KindItem
}

// ValidRelationshipType reports whether t is a known relationship type.
func ValidRelationshipType(t string) bool {
	switch t {
	case RelOneWay, RelBidirectional, RelDualDirected, RelUndirected:
		return true
	}
	return false
}

// Person is an entity node on a chart. A person is owned by exactly one
// chart and never shared across charts.
type Person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageDataURL string `json:"image_data_url,omitempty"`
	Kind         string `json:"kind"`
	CreatedAt    string `json:"created_at"`
}

// Relationship is a typed edge between two persons on the same chart.
// Endpoints are immutable after creation. TargetToSourceLabel is nil unless
// the type is dual-directed, where each direction labels itself.
type Relationship struct {
	ID                  string  `json:"id"`
	SourcePersonID      string  `json:"source_person_id"`
	TargetPersonID      string  `json:"target_person_id"`
	Type                string  `json:"type"`
	SourceToTargetLabel string  `json:"source_to_target_label"`
	TargetToSourceLabel *string `json:"target_to_source_label,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

// LayoutParams are the per-chart tuning knobs of the force layout. Durable
// chart state, but deliberately outside the undo history.
type LayoutParams struct {
	LinkDistance    float64 `json:"link_distance"`
	ChargeStrength  float64 `json:"charge_strength"`
	CollisionRadius float64 `json:"collision_radius"`
	CenterGravity   float64 `json:"center_gravity"`
}

// DefaultLayoutParams returns the tuning applied to every new chart.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		LinkDistance:    180,
		ChargeStrength:  -300,
		CollisionRadius: 90,
		CenterGravity:   0.05,
	}
}

// Chart is one complete diagram.
type Chart struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Persons       []Person       `json:"persons"`
	Relationships []Relationship `json:"relationships"`
	Layout        LayoutParams   `json:"layout"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// ChartMeta is the denormalized summary kept for every chart so a chart
// browser can list without loading full payloads.
type ChartMeta struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PersonCount       int    `json:"person_count"`
	RelationshipCount int    `json:"relationship_count"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// Meta derives the summary record for c.
func (c *Chart) Meta() ChartMeta {
	return ChartMeta{
		ID:                c.ID,
		Name:              c.Name,
		PersonCount:       len(c.Persons),
		RelationshipCount: len(c.Relationships),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// TimeFormat is RFC3339 with fixed-width milliseconds, so timestamp strings
// sort lexicographically in time order.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Now returns the timestamp format shared by all records.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}
