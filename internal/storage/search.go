package storage

import (
	"context"
	"fmt"

	"relmap/internal/models"
)

// SearchPersons performs FTS5 full-text search over person names within a
// single chart.
func (r *Repository) SearchPersons(ctx context.Context, chartID, query string) ([]models.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.image_data_url, p.kind, p.created_at
		 FROM persons p
		 JOIN persons_fts ON persons_fts.rowid = p.rowid
		 WHERE persons_fts MATCH ? AND p.chart_id = ?
		 ORDER BY p.position`,
		query, chartID,
	)
	if err != nil {
		return nil, fmt.Errorf("search persons fts: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageDataURL, &p.Kind, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}
