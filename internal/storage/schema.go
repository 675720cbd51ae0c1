package storage

// Schema is the SQL schema for charts.db. chart_metas is written in the
// same transaction as every chart write so the summary can never drift
// from the chart it describes.
const Schema = `
CREATE TABLE IF NOT EXISTS charts (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    layout_params   TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
    id              TEXT PRIMARY KEY,
    chart_id        TEXT NOT NULL REFERENCES charts(id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    image_data_url  TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL DEFAULT 'person'
                    CHECK(kind IN ('person', 'item')),
    created_at      TEXT NOT NULL,
    position        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relationships (
    id                      TEXT PRIMARY KEY,
    chart_id                TEXT NOT NULL REFERENCES charts(id) ON DELETE CASCADE,
    source_person_id        TEXT NOT NULL,
    target_person_id        TEXT NOT NULL,
    rel_type                TEXT NOT NULL
                            CHECK(rel_type IN ('one-way', 'bidirectional', 'dual-directed', 'undirected')),
    source_to_target_label  TEXT NOT NULL DEFAULT '',
    target_to_source_label  TEXT NULL,
    created_at              TEXT NOT NULL,
    position                INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chart_metas (
    id                  TEXT PRIMARY KEY REFERENCES charts(id) ON DELETE CASCADE,
    name                TEXT NOT NULL,
    person_count        INTEGER NOT NULL DEFAULT 0,
    relationship_count  INTEGER NOT NULL DEFAULT 0,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key     TEXT PRIMARY KEY,
    value   TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS persons_fts USING fts5(
    name,
    content='persons',
    content_rowid='rowid'
);

CREATE INDEX IF NOT EXISTS idx_persons_chart ON persons(chart_id);
CREATE INDEX IF NOT EXISTS idx_relationships_chart ON relationships(chart_id);
CREATE INDEX IF NOT EXISTS idx_metas_updated ON chart_metas(updated_at);
`

// Triggers keeps persons_fts in sync with the persons table.
const Triggers = `
CREATE TRIGGER IF NOT EXISTS persons_ai AFTER INSERT ON persons BEGIN
    INSERT INTO persons_fts(rowid, name) VALUES (new.rowid, new.name);
END;
CREATE TRIGGER IF NOT EXISTS persons_ad AFTER DELETE ON persons BEGIN
    INSERT INTO persons_fts(persons_fts, rowid, name) VALUES('delete', old.rowid, old.name);
END;
CREATE TRIGGER IF NOT EXISTS persons_au AFTER UPDATE ON persons BEGIN
    INSERT INTO persons_fts(persons_fts, rowid, name) VALUES('delete', old.rowid, old.name);
    INSERT INTO persons_fts(rowid, name) VALUES (new.rowid, new.name);
END;
`

// lastActiveKey is the settings row holding the last active chart pointer.
const lastActiveKey = "last_active_chart"
