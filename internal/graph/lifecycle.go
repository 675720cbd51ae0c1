package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"relmap/internal/history"
	"relmap/internal/models"
	"relmap/internal/storage"
)

// DefaultChartName is used when a chart is created without a name.
const DefaultChartName = "Untitled Chart"

// Chart-lifecycle operations. Each one completes the flush of the previous
// active chart before any in-memory state changes, so edits made just
// before a switch can never be dropped. The operations are serialized; they
// are not reentrant.

// Load brings up the store on start: the last-active pointer wins, then the
// most recently updated chart, then a fresh default chart.
func (s *Store) Load(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	lastID, err := s.repo.LastActiveChartID(ctx)
	if err != nil {
		return fmt.Errorf("read last active pointer: %w", err)
	}
	if lastID != "" {
		chart, err := s.repo.GetChart(ctx, lastID)
		if err == nil {
			s.install(chart)
			s.log.Info("loaded last active chart", "chart", chart.ID, "name", chart.Name)
			return s.refreshMetas(ctx)
		}
		s.log.Warn("last active chart missing, falling back", "chart", lastID)
	}

	metas, err := s.repo.ListMetas(ctx)
	if err != nil {
		return fmt.Errorf("list charts: %w", err)
	}
	if len(metas) > 0 {
		chart, err := s.repo.GetChart(ctx, metas[0].ID)
		if err != nil {
			return fmt.Errorf("load chart %q: %w", metas[0].ID, err)
		}
		s.install(chart)
		if err := s.repo.SetLastActiveChartID(ctx, chart.ID); err != nil {
			return err
		}
		return s.refreshMetas(ctx)
	}

	_, err = s.createChartLocked(ctx, DefaultChartName)
	return err
}

// CreateChart flushes the active chart, persists a new empty chart and
// makes it active with empty undo history.
func (s *Store) CreateChart(ctx context.Context, name string) (models.Chart, error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if err := s.flushBarrier(ctx); err != nil {
		return models.Chart{}, fmt.Errorf("flush active chart: %w", err)
	}
	return s.createChartLocked(ctx, name)
}

func (s *Store) createChartLocked(ctx context.Context, name string) (models.Chart, error) {
	if name == "" {
		name = DefaultChartName
	}
	now := models.Now()
	chart := &models.Chart{
		ID:        uuid.New().String(),
		Name:      name,
		Layout:    models.DefaultLayoutParams(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.SaveChart(ctx, chart); err != nil {
		return models.Chart{}, fmt.Errorf("persist new chart: %w", err)
	}
	s.install(chart)
	if err := s.repo.SetLastActiveChartID(ctx, chart.ID); err != nil {
		return models.Chart{}, err
	}
	if err := s.refreshMetas(ctx); err != nil {
		return models.Chart{}, err
	}
	s.log.Info("created chart", "chart", chart.ID, "name", chart.Name)
	return *chart, nil
}

// SwitchChart flushes the active chart, loads the target and replaces the
// resident state. An unknown id aborts with ErrChartNotFound and leaves the
// old chart as the visible truth.
func (s *Store) SwitchChart(ctx context.Context, id string) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if err := s.flushBarrier(ctx); err != nil {
		return fmt.Errorf("flush active chart: %w", err)
	}
	if s.ActiveChartID() == id {
		return nil
	}

	chart, err := s.repo.GetChart(ctx, id)
	if err != nil {
		return err
	}
	s.install(chart)
	if err := s.repo.SetLastActiveChartID(ctx, id); err != nil {
		return err
	}
	s.log.Info("switched chart", "chart", chart.ID, "name", chart.Name)
	return s.refreshMetas(ctx)
}

// DeleteChart removes a chart. The sole remaining chart is never removed;
// its data is emptied in place instead, so the editor can never reach a
// zero-chart state. Deleting the active chart loads the next most recently
// updated chart.
func (s *Store) DeleteChart(ctx context.Context, id string) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	metas, err := s.repo.ListMetas(ctx)
	if err != nil {
		return fmt.Errorf("list charts: %w", err)
	}

	if len(metas) <= 1 {
		if len(metas) == 0 || metas[0].ID != id {
			return fmt.Errorf("chart %q: %w", id, storage.ErrChartNotFound)
		}
		s.mu.Lock()
		s.persons = nil
		s.relationships = nil
		s.selection.Clear()
		s.updatedAt = models.Now()
		s.history.Clear()
		s.history.Record(history.Snapshot{})
		s.syncActiveMeta()
		s.mu.Unlock()
		if err := s.flushBarrier(ctx); err != nil {
			return fmt.Errorf("persist reset chart: %w", err)
		}
		s.log.Info("reset sole chart in place", "chart", id)
		return s.refreshMetas(ctx)
	}

	if s.ActiveChartID() != id {
		if err := s.repo.DeleteChart(ctx, id); err != nil {
			return err
		}
		s.log.Info("deleted chart", "chart", id)
		return s.refreshMetas(ctx)
	}

	// Deleting the resident chart: its edits go with it, so the chart is
	// not flushed. Saves of the doomed chart are suspended first and a
	// barrier waits out the worker, so a coalesced save snapshotted before
	// this point can never commit after the repository delete and resurrect
	// the chart.
	s.mu.Lock()
	s.flushPaused = true
	s.mu.Unlock()
	if err := s.flushBarrier(ctx); err != nil {
		s.resumeFlush()
		return fmt.Errorf("drain pending saves: %w", err)
	}
	if err := s.repo.DeleteChart(ctx, id); err != nil {
		s.resumeFlush()
		return err
	}
	metas, err = s.repo.ListMetas(ctx)
	if err != nil {
		s.resumeFlush()
		return fmt.Errorf("list charts: %w", err)
	}
	next, err := s.repo.GetChart(ctx, metas[0].ID)
	if err != nil {
		s.resumeFlush()
		return fmt.Errorf("load next chart: %w", err)
	}
	s.install(next)
	if err := s.repo.SetLastActiveChartID(ctx, next.ID); err != nil {
		return err
	}
	s.log.Info("deleted active chart", "chart", id, "next", next.ID)
	return s.refreshMetas(ctx)
}

// RenameChart rewrites a chart's name, which may target a chart that is not
// active. The meta list is re-sorted by the bumped update time.
func (s *Store) RenameChart(ctx context.Context, id, newName string) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.ActiveChartID() == id {
		s.mu.Lock()
		s.name = newName
		s.updatedAt = models.Now()
		s.syncActiveMeta()
		s.mu.Unlock()
		if err := s.flushBarrier(ctx); err != nil {
			return fmt.Errorf("persist rename: %w", err)
		}
		return s.refreshMetas(ctx)
	}

	chart, err := s.repo.GetChart(ctx, id)
	if err != nil {
		return err
	}
	chart.Name = newName
	chart.UpdatedAt = models.Now()
	if err := s.repo.SaveChart(ctx, chart); err != nil {
		return fmt.Errorf("persist rename: %w", err)
	}
	return s.refreshMetas(ctx)
}

// ResetActiveChart empties the resident chart's data and clears undo
// history, persisting the emptied chart before returning.
func (s *Store) ResetActiveChart(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	s.persons = nil
	s.relationships = nil
	s.selection.Clear()
	s.updatedAt = models.Now()
	s.history.Clear()
	s.history.Record(history.Snapshot{})
	s.syncActiveMeta()
	s.mu.Unlock()

	if err := s.flushBarrier(ctx); err != nil {
		return fmt.Errorf("persist reset chart: %w", err)
	}
	return s.refreshMetas(ctx)
}

// SearchPersons runs a full-text search over the active chart's person
// names. A flush barrier runs first so the index reflects edits that have
// not opportunistically landed yet.
func (s *Store) SearchPersons(ctx context.Context, query string) ([]models.Person, error) {
	if err := s.flushBarrier(ctx); err != nil {
		return nil, fmt.Errorf("flush active chart: %w", err)
	}
	return s.repo.SearchPersons(ctx, s.ActiveChartID(), query)
}

// install replaces the resident chart slot. Undo history and selection
// never survive a chart boundary; the installed state becomes the undo
// baseline.
func (s *Store) install(chart *models.Chart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = chart.ID
	s.name = chart.Name
	s.layout = chart.Layout
	s.createdAt = chart.CreatedAt
	s.updatedAt = chart.UpdatedAt
	s.persons = make([]models.Person, len(chart.Persons))
	copy(s.persons, chart.Persons)
	s.relationships = copyRelationships(chart.Relationships)
	s.selection.Clear()
	s.history.Clear()
	s.history.Record(history.Snapshot{Persons: s.persons, Relationships: s.relationships})
	s.flushPaused = false
}

func (s *Store) refreshMetas(ctx context.Context) error {
	metas, err := s.repo.ListMetas(ctx)
	if err != nil {
		return fmt.Errorf("list charts: %w", err)
	}
	s.mu.Lock()
	s.metas = metas
	s.mu.Unlock()
	return nil
}
