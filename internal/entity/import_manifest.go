package entity

import (
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// ImportManifest is the immutable audit record of one import call.
type ImportManifest struct {
	ID            string               `json:"id"`
	ExtractionID  string               `json:"extraction_id"`
	ProjectID     string               `json:"project_id"`
	EntityType    constants.EntityType `json:"entity_type"`
	ImportedCount int                  `json:"imported_count"`
	SkippedCount  int                  `json:"skipped_count"`
	CreatedIDs    []string             `json:"created_ids"`
	Actor         string               `json:"actor,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
