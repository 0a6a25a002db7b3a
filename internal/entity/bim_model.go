package entity

import (
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// BimModel is one uploaded 3D file translated by the cloud viewer service.
type BimModel struct {
	ID                  string                      `json:"id"`
	ProjectID           string                      `json:"project_id"`
	Filename            string                      `json:"filename"`
	StoragePath         string                      `json:"storage_path"`
	TranslationStatus   constants.TranslationStatus `json:"translation_status"`
	TranslationProgress string                      `json:"translation_progress,omitempty"`
	URN                 string                      `json:"urn,omitempty"`
	Metadata            *BimMetadata                `json:"metadata_json,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// BimMetadata caches a prior extraction of the model. The cache is a hit only
// when ExtractedAt is set.
type BimMetadata struct {
	ExtractedAt *time.Time        `json:"extracted_at,omitempty"`
	ViewGUID    string            `json:"view_guid,omitempty"`
	Result      *ExtractionResult `json:"result,omitempty"`
}

// CachedResult returns the memoized extraction when present.
func (m *BimModel) CachedResult() (*ExtractionResult, bool) {
	if m == nil || m.Metadata == nil || m.Metadata.ExtractedAt == nil || m.Metadata.Result == nil {
		return nil, false
	}
	return m.Metadata.Result, true
}
