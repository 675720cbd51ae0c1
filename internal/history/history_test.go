package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relmap/internal/models"
)

func snap(personIDs ...string) Snapshot {
	s := Snapshot{}
	for _, id := range personIDs {
		s.Persons = append(s.Persons, models.Person{ID: id, Name: id, Kind: models.KindPerson})
	}
	return s
}

func TestUndoRedoWalk(t *testing.T) {
	c := New(0)
	c.Record(snap())
	c.Record(snap("a"))
	c.Record(snap("a", "b"))

	require.True(t, c.CanUndo())
	require.False(t, c.CanRedo())

	s, ok := c.Undo()
	require.True(t, ok)
	require.Len(t, s.Persons, 1)

	s, ok = c.Undo()
	require.True(t, ok)
	require.Empty(t, s.Persons)

	_, ok = c.Undo()
	require.False(t, ok, "undo at the baseline must report false")

	s, ok = c.Redo()
	require.True(t, ok)
	require.Len(t, s.Persons, 1)

	s, ok = c.Redo()
	require.True(t, ok)
	require.Len(t, s.Persons, 2)

	_, ok = c.Redo()
	require.False(t, ok)
}

func TestRecordTruncatesRedoTail(t *testing.T) {
	c := New(0)
	c.Record(snap())
	c.Record(snap("a"))
	c.Record(snap("a", "b"))

	_, ok := c.Undo()
	require.True(t, ok)
	require.True(t, c.CanRedo())

	c.Record(snap("a", "c"))
	require.False(t, c.CanRedo(), "a new mutation discards the redo branch")

	s, ok := c.Undo()
	require.True(t, ok)
	require.Len(t, s.Persons, 1)
	require.Equal(t, "a", s.Persons[0].ID)
}

func TestBoundedDepthDropsOldest(t *testing.T) {
	c := New(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		c.Record(snap(id))
	}
	require.Equal(t, 3, c.Len())

	// Only two undo steps remain within the bound.
	_, ok := c.Undo()
	require.True(t, ok)
	_, ok = c.Undo()
	require.True(t, ok)
	_, ok = c.Undo()
	require.False(t, ok)
}

func TestClearEmptiesStack(t *testing.T) {
	c := New(0)
	c.Record(snap())
	c.Record(snap("a"))
	c.Clear()

	require.Equal(t, 0, c.Len())
	require.False(t, c.CanUndo())
	require.False(t, c.CanRedo())
	_, ok := c.Undo()
	require.False(t, ok)
}

func TestSnapshotsAreIsolatedFromCallers(t *testing.T) {
	c := New(0)
	live := []models.Person{{ID: "a", Name: "Ada"}}
	c.Record(Snapshot{Persons: live})
	c.Record(Snapshot{Persons: append(live, models.Person{ID: "b", Name: "Ben"})})

	// Mutating the caller's slice must not reach recorded history.
	live[0].Name = "changed"

	s, ok := c.Undo()
	require.True(t, ok)
	require.Equal(t, "Ada", s.Persons[0].Name)

	// Mutating a returned snapshot must not corrupt the stack either.
	s.Persons[0].Name = "scribbled"
	r, ok := c.Redo()
	require.True(t, ok)
	require.Equal(t, "Ada", r.Persons[0].Name)

	s, ok = c.Undo()
	require.True(t, ok)
	require.Equal(t, "Ada", s.Persons[0].Name)
}

func TestReverseLabelsDeepCopied(t *testing.T) {
	label := "mentor of"
	rel := models.Relationship{
		ID:                  "r1",
		SourcePersonID:      "a",
		TargetPersonID:      "b",
		Type:                models.RelDualDirected,
		SourceToTargetLabel: "student of",
		TargetToSourceLabel: &label,
	}
	c := New(0)
	c.Record(Snapshot{Relationships: []models.Relationship{rel}})
	c.Record(Snapshot{})

	label = "scribbled"

	s, ok := c.Undo()
	require.True(t, ok)
	require.Equal(t, "mentor of", *s.Relationships[0].TargetToSourceLabel)
}
