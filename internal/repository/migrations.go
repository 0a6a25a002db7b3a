package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// schemaDDL is applied in order on every Migrate; each statement is idempotent.
// {{ts}} is replaced with the dialect's timestamp type.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		uploaded_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bim_models (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		translation_status TEXT NOT NULL,
		translation_progress TEXT,
		urn TEXT,
		metadata_json TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extractions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		file_id TEXT REFERENCES files(id),
		bim_model_id TEXT REFERENCES bim_models(id),
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		extracted_data TEXT,
		summary TEXT,
		tier_used TEXT,
		processing_time_ms BIGINT,
		error_message TEXT,
		language TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		completed_at {{ts}},
		CHECK ((file_id IS NULL) <> (bim_model_id IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_project ON extractions (project_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS import_manifests (
		id TEXT PRIMARY KEY,
		extraction_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		imported_count INTEGER NOT NULL,
		skipped_count INTEGER NOT NULL,
		created_ids TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_manifests_extraction ON import_manifests (extraction_id)`,
	`CREATE TABLE IF NOT EXISTS equipment_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_en TEXT NOT NULL DEFAULT '',
		name_he TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		aliases TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS material_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_en TEXT NOT NULL DEFAULT '',
		name_he TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		aliases TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		area_type TEXT NOT NULL,
		parent_id TEXT,
		floor_number INTEGER,
		area_sqm DOUBLE PRECISION,
		source_extraction_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_areas_project ON areas (project_id)`,
	`CREATE TABLE IF NOT EXISTS equipment (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		equipment_type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		template_id TEXT,
		source_extraction_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_equipment_project ON equipment (project_id)`,
	`CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		material_type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		template_id TEXT,
		source_extraction_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_materials_project ON materials (project_id)`,
}

// Migrate creates all tables and indexes if they don't exist.
func (d *DB) Migrate(ctx context.Context) error {
	ts := "DATETIME"
	if d.Dialect == dialect.Postgres {
		ts = "TIMESTAMPTZ"
	}
	for i, stmt := range schemaDDL {
		stmt = strings.ReplaceAll(stmt, "{{ts}}", ts)
		if err := d.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			d.logger.Error("migration failed", "step", i, "error", err)
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	d.logger.Info("database schema up to date", "statements", len(schemaDDL))
	return nil
}
