package entity

import (
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// Extraction is one attempt to extract data from one document or BIM model.
type Extraction struct {
	ID               string                     `json:"id"`
	ProjectID        string                     `json:"project_id"`
	FileID           *string                    `json:"file_id,omitempty"`
	BimModelID       *string                    `json:"bim_model_id,omitempty"`
	Source           constants.ExtractionSource `json:"source"`
	Status           constants.ExtractionStatus `json:"status"`
	ExtractedData    *ExtractionResult          `json:"extracted_data,omitempty"`
	Summary          map[string]any             `json:"summary,omitempty"`
	TierUsed         *string                    `json:"tier_used,omitempty"`
	ProcessingTimeMs *int64                     `json:"processing_time_ms,omitempty"`
	ErrorMessage     *string                    `json:"error_message,omitempty"`
	Language         string                     `json:"language"`
	Version          int                        `json:"version"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
	CompletedAt      *time.Time                 `json:"completed_at,omitempty"`
}

// OwnsFile reports whether deleting the extraction should also remove a stored file.
func (e *Extraction) OwnsFile() bool {
	return e.FileID != nil && *e.FileID != ""
}

// StoredFile is an uploaded document held in the byte store.
type StoredFile struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
