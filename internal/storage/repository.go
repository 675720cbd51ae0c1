package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"relmap/internal/models"
)

// ErrChartNotFound is returned when a chart id has no record in the store.
var ErrChartNotFound = errors.New("chart not found")

// Repository is the durable store for whole-chart records, their meta
// summaries and the last-active-chart pointer. Every exported call is a
// single transaction; callers own cross-call ordering.
type Repository struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens charts.db and runs the
// schema.
func Open(dataDir string) (*Repository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "charts.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)")
	if err != nil {
		return nil, fmt.Errorf("open charts db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping charts db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate charts db: %w", err)
	}
	if _, err := db.Exec(Triggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fts triggers: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveChart writes the full chart record and its meta summary in one
// transaction. Existing rows for the chart are replaced wholesale.
func (r *Repository) SaveChart(ctx context.Context, chart *models.Chart) error {
	layoutJSON, err := json.Marshal(chart.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout params: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO charts (id, name, layout_params, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     layout_params = excluded.layout_params,
		     updated_at = excluded.updated_at`,
		chart.ID, chart.Name, string(layoutJSON), chart.CreatedAt, chart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE chart_id = ?`, chart.ID); err != nil {
		return fmt.Errorf("clear persons: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE chart_id = ?`, chart.ID); err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}

	for i, p := range chart.Persons {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO persons (id, chart_id, name, image_data_url, kind, created_at, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, chart.ID, p.Name, p.ImageDataURL, p.Kind, p.CreatedAt, i,
		)
		if err != nil {
			return fmt.Errorf("insert person %q: %w", p.ID, err)
		}
	}

	for i, rel := range chart.Relationships {
		var reverse sql.NullString
		if rel.TargetToSourceLabel != nil {
			reverse = sql.NullString{String: *rel.TargetToSourceLabel, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (id, chart_id, source_person_id, target_person_id, rel_type, source_to_target_label, target_to_source_label, created_at, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rel.ID, chart.ID, rel.SourcePersonID, rel.TargetPersonID, rel.Type,
			rel.SourceToTargetLabel, reverse, rel.CreatedAt, i,
		)
		if err != nil {
			return fmt.Errorf("insert relationship %q: %w", rel.ID, err)
		}
	}

	meta := chart.Meta()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chart_metas (id, name, person_count, relationship_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     person_count = excluded.person_count,
		     relationship_count = excluded.relationship_count,
		     updated_at = excluded.updated_at`,
		meta.ID, meta.Name, meta.PersonCount, meta.RelationshipCount, meta.CreatedAt, meta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chart meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetChart loads a full chart record in one read transaction, so the chart
// row and its person and relationship rows come from a single snapshot.
// Returns ErrChartNotFound for an unknown id.
func (r *Repository) GetChart(ctx context.Context, id string) (*models.Chart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var chart models.Chart
	var layoutJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, layout_params, created_at, updated_at FROM charts WHERE id = ?`, id,
	).Scan(&chart.ID, &chart.Name, &layoutJSON, &chart.CreatedAt, &chart.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chart %q: %w", id, ErrChartNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query chart: %w", err)
	}
	if err := json.Unmarshal([]byte(layoutJSON), &chart.Layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout params: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, image_data_url, kind, created_at FROM persons WHERE chart_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageDataURL, &p.Kind, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		chart.Persons = append(chart.Persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	relRows, err := tx.QueryContext(ctx,
		`SELECT id, source_person_id, target_person_id, rel_type, source_to_target_label, target_to_source_label, created_at
		 FROM relationships WHERE chart_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var rel models.Relationship
		var reverse sql.NullString
		if err := relRows.Scan(&rel.ID, &rel.SourcePersonID, &rel.TargetPersonID, &rel.Type,
			&rel.SourceToTargetLabel, &reverse, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		if reverse.Valid {
			label := reverse.String
			rel.TargetToSourceLabel = &label
		}
		chart.Relationships = append(chart.Relationships, rel)
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	return &chart, nil
}

// ListMetas returns every chart summary, most recently updated first.
func (r *Repository) ListMetas(ctx context.Context) ([]models.ChartMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, person_count, relationship_count, created_at, updated_at
		 FROM chart_metas ORDER BY updated_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list chart metas: %w", err)
	}
	defer rows.Close()

	var metas []models.ChartMeta
	for rows.Next() {
		var m models.ChartMeta
		if err := rows.Scan(&m.ID, &m.Name, &m.PersonCount, &m.RelationshipCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chart meta: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// DeleteChart removes a chart and, via cascade, its persons, relationships
// and meta entry. Returns ErrChartNotFound for an unknown id.
func (r *Repository) DeleteChart(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM charts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("chart %q: %w", id, ErrChartNotFound)
	}
	return nil
}

// LastActiveChartID reads the last-active pointer. Returns "" when unset.
func (r *Repository) LastActiveChartID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, lastActiveKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last active chart: %w", err)
	}
	return id, nil
}

// SetLastActiveChartID writes the last-active pointer.
func (r *Repository) SetLastActiveChartID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastActiveKey, id,
	)
	if err != nil {
		return fmt.Errorf("write last active chart: %w", err)
	}
	return nil
}
