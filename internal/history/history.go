// Package history implements the undo/redo stack for chart data. Snapshots
// hold persons and relationships only: selection, layout tuning and chart
// identity never enter the stack, so undo can never disturb view state or
// cross a chart boundary.
package history

import "relmap/internal/models"

// DefaultLimit bounds the stack depth when no limit is configured.
const DefaultLimit = 100

// Snapshot is one durable-data state of the active chart.
type Snapshot struct {
	Persons       []models.Person
	Relationships []models.Relationship
}

// clone deep-copies a snapshot so later mutations of store slices cannot
// reach into recorded history.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{}
	if s.Persons != nil {
		out.Persons = make([]models.Person, len(s.Persons))
		copy(out.Persons, s.Persons)
	}
	if s.Relationships != nil {
		out.Relationships = make([]models.Relationship, len(s.Relationships))
		for i, rel := range s.Relationships {
			if rel.TargetToSourceLabel != nil {
				label := *rel.TargetToSourceLabel
				rel.TargetToSourceLabel = &label
			}
			out.Relationships[i] = rel
		}
	}
	return out
}

// Controller maintains a bounded stack of snapshots with a cursor. The
// snapshot at the cursor is the current state; Record truncates any redo
// tail beyond it.
type Controller struct {
	stack  []Snapshot
	cursor int
	limit  int
}

// New creates a controller. limit <= 0 uses DefaultLimit.
func New(limit int) *Controller {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Controller{cursor: -1, limit: limit}
}

// Record pushes a new current snapshot, discarding any redo tail. When the
// stack exceeds the limit the oldest entry is dropped.
func (c *Controller) Record(s Snapshot) {
	c.stack = c.stack[:c.cursor+1]
	c.stack = append(c.stack, s.clone())
	if len(c.stack) > c.limit {
		c.stack = c.stack[1:]
	}
	c.cursor = len(c.stack) - 1
}

// Undo moves the cursor back one snapshot. ok is false at the oldest
// recorded state.
func (c *Controller) Undo() (Snapshot, bool) {
	if c.cursor <= 0 {
		return Snapshot{}, false
	}
	c.cursor--
	return c.stack[c.cursor].clone(), true
}

// Redo moves the cursor forward one snapshot. ok is false at the newest.
func (c *Controller) Redo() (Snapshot, bool) {
	if c.cursor < 0 || c.cursor >= len(c.stack)-1 {
		return Snapshot{}, false
	}
	c.cursor++
	return c.stack[c.cursor].clone(), true
}

// CanUndo reports whether Undo would succeed.
func (c *Controller) CanUndo() bool {
	return c.cursor > 0
}

// CanRedo reports whether Redo would succeed.
func (c *Controller) CanRedo() bool {
	return c.cursor >= 0 && c.cursor < len(c.stack)-1
}

// Clear empties the stack. Every chart-lifecycle operation calls this so
// history never crosses from one chart into another.
func (c *Controller) Clear() {
	c.stack = nil
	c.cursor = -1
}

// Len returns the number of recorded snapshots.
func (c *Controller) Len() int {
	return len(c.stack)
}
