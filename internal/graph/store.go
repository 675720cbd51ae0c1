// Package graph holds the in-memory authority for the active chart. All
// entity and relationship mutation runs through the Store, which records
// undo snapshots after every data mutation and persists opportunistically
// through a single serialized flush queue.
package graph

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"relmap/internal/history"
	"relmap/internal/models"
	"relmap/internal/storage"
)

// Store owns the single active-chart slot. Exactly one chart's data is
// resident at a time; all other charts live only in the repository.
type Store struct {
	mu sync.Mutex

	// lifecycleMu serializes chart-lifecycle operations. Per-field
	// mutations are not awaited by callers and stay off this lock.
	lifecycleMu sync.Mutex

	repo    *storage.Repository
	history *history.Controller
	log     *log.Logger

	activeID      string
	name          string
	layout        models.LayoutParams
	createdAt     string
	updatedAt     string
	persons       []models.Person
	relationships []models.Relationship

	// selection is transient UI-boundary state: excluded from undo
	// snapshots and never persisted.
	selection mapset.Set[string]

	metas []models.ChartMeta

	// flushPaused suppresses saves of the resident chart while that chart
	// is being deleted from the repository. Guarded by mu.
	flushPaused bool

	flushc   chan struct{}
	barrierc chan chan error
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a store around an open repository. Call Load before using it
// and Close when done. historyLimit <= 0 uses the default undo depth.
func New(repo *storage.Repository, logger *log.Logger, historyLimit int) *Store {
	s := &Store{
		repo:      repo,
		history:   history.New(historyLimit),
		log:       logger,
		selection: mapset.NewSet[string](),
		flushc:    make(chan struct{}, 1),
		barrierc:  make(chan chan error),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

// Close stops the flush worker. A final flush barrier should be issued by
// the caller beforehand if unsaved edits matter.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
}

// --- Person mutations ---

// PersonInput is the caller-supplied part of a new person.
type PersonInput struct {
	Name         string
	ImageDataURL string
	Kind         string
}

// PersonPatch updates individual person fields; nil fields are untouched.
type PersonPatch struct {
	Name         *string
	ImageDataURL *string
	Kind         *string
}

// AddPerson assigns a fresh id and creation timestamp and appends the
// person to the active chart.
func (s *Store) AddPerson(in PersonInput) models.Person {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := in.Kind
	if !models.ValidKind(kind) {
		kind = models.KindPerson
	}
	p := models.Person{
		ID:           gonanoid.Must(),
		Name:         in.Name,
		ImageDataURL: in.ImageDataURL,
		Kind:         kind,
		CreatedAt:    models.Now(),
	}
	s.persons = append(s.persons, p)
	s.recordAndFlush()
	return p
}

// UpdatePerson merges patch into the matching person. Unknown ids are a
// silent no-op since the UI may race a stale id after another mutation. An
// empty name in the patch is ignored; a persisted person keeps a non-empty
// name.
func (s *Store) UpdatePerson(id string, patch PersonPatch) (models.Person, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.personIndex(id)
	if i < 0 {
		return models.Person{}, false
	}
	if patch.Name != nil && *patch.Name != "" {
		s.persons[i].Name = *patch.Name
	}
	if patch.ImageDataURL != nil {
		s.persons[i].ImageDataURL = *patch.ImageDataURL
	}
	if patch.Kind != nil && models.ValidKind(*patch.Kind) {
		s.persons[i].Kind = *patch.Kind
	}
	s.recordAndFlush()
	return s.persons[i], true
}

// RemovePerson deletes the person, cascades deletion of every relationship
// touching it in the same mutation, and drops the id from the selection.
func (s *Store) RemovePerson(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.personIndex(id)
	if i < 0 {
		return false
	}
	s.persons = append(s.persons[:i], s.persons[i+1:]...)

	kept := s.relationships[:0]
	for _, rel := range s.relationships {
		if rel.SourcePersonID == id || rel.TargetPersonID == id {
			continue
		}
		kept = append(kept, rel)
	}
	s.relationships = kept

	s.selection.Remove(id)
	s.recordAndFlush()
	return true
}

// --- Relationship mutations ---

// RelationshipInput is the caller-supplied part of a new relationship.
type RelationshipInput struct {
	SourcePersonID      string
	TargetPersonID      string
	Type                string
	SourceToTargetLabel string
	TargetToSourceLabel *string
}

// RelationshipPatch updates type and labels. Endpoints are immutable and
// deliberately absent, so a patch cannot carry them.
type RelationshipPatch struct {
	Type                *string
	SourceToTargetLabel *string
	TargetToSourceLabel *string
}

// AddRelationship appends a relationship after checking the unordered-pair
// uniqueness invariant. A pair already connected in either direction is
// rejected silently (ok=false, nothing mutated), as are dangling endpoints,
// self-loops and unknown types.
func (s *Store) AddRelationship(in RelationshipInput) (models.Relationship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.personIndex(in.SourcePersonID) < 0 || s.personIndex(in.TargetPersonID) < 0 {
		return models.Relationship{}, false
	}
	if in.SourcePersonID == in.TargetPersonID {
		return models.Relationship{}, false
	}
	for _, rel := range s.relationships {
		if samePair(rel, in.SourcePersonID, in.TargetPersonID) {
			return models.Relationship{}, false
		}
	}

	relType := in.Type
	if relType == "" {
		relType = models.RelOneWay
	}
	if !models.ValidRelationshipType(relType) {
		return models.Relationship{}, false
	}

	rel := models.Relationship{
		ID:                  gonanoid.Must(),
		SourcePersonID:      in.SourcePersonID,
		TargetPersonID:      in.TargetPersonID,
		Type:                relType,
		SourceToTargetLabel: in.SourceToTargetLabel,
		CreatedAt:           models.Now(),
	}
	if relType == models.RelDualDirected && in.TargetToSourceLabel != nil {
		label := *in.TargetToSourceLabel
		rel.TargetToSourceLabel = &label
	}

	s.relationships = append(s.relationships, rel)
	s.recordAndFlush()
	return rel, true
}

// UpdateRelationship applies patch to the matching relationship. The
// reverse label survives only on dual-directed relationships; changing the
// type away from dual-directed drops it.
func (s *Store) UpdateRelationship(id string, patch RelationshipPatch) (models.Relationship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(id)
	if i < 0 {
		return models.Relationship{}, false
	}
	rel := &s.relationships[i]

	if patch.Type != nil && models.ValidRelationshipType(*patch.Type) {
		rel.Type = *patch.Type
	}
	if patch.SourceToTargetLabel != nil {
		rel.SourceToTargetLabel = *patch.SourceToTargetLabel
	}
	if patch.TargetToSourceLabel != nil {
		label := *patch.TargetToSourceLabel
		rel.TargetToSourceLabel = &label
	}
	if rel.Type != models.RelDualDirected {
		rel.TargetToSourceLabel = nil
	}

	s.recordAndFlush()
	return *rel, true
}

// RemoveRelationship removes by id; a silent no-op when absent.
func (s *Store) RemoveRelationship(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(id)
	if i < 0 {
		return false
	}
	s.relationships = append(s.relationships[:i], s.relationships[i+1:]...)
	s.recordAndFlush()
	return true
}

// --- Undo / redo ---

// Undo restores the previous data snapshot. Only persons and relationships
// are replaced; selection and layout tuning stay as they are.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.applySnapshot(snap)
	return true
}

// Redo restores the next data snapshot.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.applySnapshot(snap)
	return true
}

// CanUndo reports whether an undo step exists.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a redo step exists.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

func (s *Store) applySnapshot(snap history.Snapshot) {
	s.persons = snap.Persons
	s.relationships = snap.Relationships
	s.updatedAt = models.Now()
	s.syncActiveMeta()
	s.notifyFlush()
}

// --- Layout params and selection ---

// SetLayoutParams replaces the chart's layout tuning. Durable state, so it
// is persisted, but it never enters the undo history.
func (s *Store) SetLayoutParams(p models.LayoutParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = p
	s.updatedAt = models.Now()
	s.syncActiveMeta()
	s.notifyFlush()
}

// Select adds a person id to the transient selection set.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.personIndex(id) < 0 {
		return false
	}
	s.selection.Add(id)
	return true
}

// Deselect removes a person id from the selection set.
func (s *Store) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Remove(id)
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// Selection returns the selected person ids in stable order.
func (s *Store) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.selection.ToSlice()
	sort.Strings(ids)
	return ids
}

// --- Read surface ---

// ActiveChartID returns the id of the resident chart.
func (s *Store) ActiveChartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveChartName returns the name of the resident chart.
func (s *Store) ActiveChartName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// LayoutParams returns the resident chart's layout tuning.
func (s *Store) LayoutParams() models.LayoutParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Persons returns a copy of the resident chart's persons.
func (s *Store) Persons() []models.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Person, len(s.persons))
	copy(out, s.persons)
	return out
}

// Relationships returns a copy of the resident chart's relationships.
func (s *Store) Relationships() []models.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRelationships(s.relationships)
}

// ChartMetas returns the cached meta list, most recently updated first.
func (s *Store) ChartMetas() []models.ChartMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChartMeta, len(s.metas))
	copy(out, s.metas)
	return out
}

// ActiveChart returns a full copy of the resident chart.
func (s *Store) ActiveChart() models.Chart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chartLocked()
}

// --- internals ---

// chartLocked builds a chart record from current state. Caller holds mu.
func (s *Store) chartLocked() models.Chart {
	chart := models.Chart{
		ID:        s.activeID,
		Name:      s.name,
		Layout:    s.layout,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	chart.Persons = make([]models.Person, len(s.persons))
	copy(chart.Persons, s.persons)
	chart.Relationships = copyRelationships(s.relationships)
	return chart
}

// recordAndFlush stamps the chart, records an undo snapshot of the new
// state and schedules an opportunistic flush. Caller holds mu.
func (s *Store) recordAndFlush() {
	s.updatedAt = models.Now()
	s.history.Record(history.Snapshot{Persons: s.persons, Relationships: s.relationships})
	s.syncActiveMeta()
	s.notifyFlush()
}

// syncActiveMeta keeps the cached meta entry for the active chart in step
// with in-memory counts. Caller holds mu.
func (s *Store) syncActiveMeta() {
	for i := range s.metas {
		if s.metas[i].ID != s.activeID {
			continue
		}
		s.metas[i].Name = s.name
		s.metas[i].PersonCount = len(s.persons)
		s.metas[i].RelationshipCount = len(s.relationships)
		s.metas[i].UpdatedAt = s.updatedAt
		break
	}
	sort.SliceStable(s.metas, func(a, b int) bool {
		return s.metas[a].UpdatedAt > s.metas[b].UpdatedAt
	})
}

func (s *Store) personIndex(id string) int {
	for i := range s.persons {
		if s.persons[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) relationshipIndex(id string) int {
	for i := range s.relationships {
		if s.relationships[i].ID == id {
			return i
		}
	}
	return -1
}

func samePair(rel models.Relationship, a, b string) bool {
	return (rel.SourcePersonID == a && rel.TargetPersonID == b) ||
		(rel.SourcePersonID == b && rel.TargetPersonID == a)
}

func copyRelationships(rels []models.Relationship) []models.Relationship {
	out := make([]models.Relationship, len(rels))
	for i, rel := range rels {
		if rel.TargetToSourceLabel != nil {
			label := *rel.TargetToSourceLabel
			rel.TargetToSourceLabel = &label
		}
		out[i] = rel
	}
	return out
}
