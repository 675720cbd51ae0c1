package graph

import "context"

// Persistence policy: per-field mutations are not awaited by callers, so
// every save, opportunistic or barrier, runs on the single flush worker.
// Writes can never reorder, and a flush that has started always runs to
// completion; cancellation of in-flight persistence is not supported. A
// chart being deleted from the repository is never saved: DeleteChart
// pauses saves before the repository delete so a coalesced save of the
// doomed chart cannot commit afterwards and resurrect it.

// notifyFlush schedules an opportunistic flush. The signal channel has
// capacity one, so back-to-back mutations coalesce into a single save of
// the latest state.
func (s *Store) notifyFlush() {
	select {
	case s.flushc <- struct{}{}:
	default:
	}
}

// flushBarrier persists the current state through the worker and waits for
// the result. Because the worker is the only writer, completion of the
// barrier implies every earlier opportunistic save has also landed, and the
// worker drains any still-pending opportunistic signal before answering.
func (s *Store) flushBarrier(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case s.barrierc <- done:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return context.Canceled
	}
	return <-done
}

func (s *Store) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.flushc:
			if err := s.flushActive(); err != nil {
				s.log.Error("opportunistic flush failed", "chart", s.ActiveChartID(), "err", err)
			}
		case done := <-s.barrierc:
			// The barrier save supersedes any pending opportunistic signal.
			select {
			case <-s.flushc:
			default:
			}
			done <- s.flushActive()
		case <-s.done:
			return
		}
	}
}

// resumeFlush lifts the save suspension set while deleting the resident
// chart.
func (s *Store) resumeFlush() {
	s.mu.Lock()
	s.flushPaused = false
	s.mu.Unlock()
}

// flushActive snapshots the resident chart and saves it. A store with no
// resident chart yet has nothing to flush, and saves stay off while the
// resident chart is being deleted.
func (s *Store) flushActive() error {
	s.mu.Lock()
	if s.activeID == "" || s.flushPaused {
		s.mu.Unlock()
		return nil
	}
	chart := s.chartLocked()
	s.mu.Unlock()

	return s.repo.SaveChart(context.Background(), &chart)
}
