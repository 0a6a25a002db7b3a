package entity

import (
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// Area is a project area row (a floor or a room under it).
type Area struct {
	ID                 string             `json:"id"`
	ProjectID          string             `json:"project_id"`
	Name               string             `json:"name"`
	AreaType           constants.AreaType `json:"area_type"`
	ParentID           *string            `json:"parent_id,omitempty"`
	FloorNumber        *int               `json:"floor_number,omitempty"`
	AreaSqm            *float64           `json:"area_sqm,omitempty"`
	SourceExtractionID *string            `json:"source_extraction_id,omitempty"`
	CreatedBy          string             `json:"created_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Equipment is a project equipment row.
type Equipment struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	Name               string    `json:"name"`
	EquipmentType      string    `json:"equipment_type,omitempty"`
	Category           string    `json:"category,omitempty"`
	Manufacturer       string    `json:"manufacturer,omitempty"`
	Model              string    `json:"model,omitempty"`
	Level              string    `json:"level,omitempty"`
	TemplateID         *string   `json:"template_id,omitempty"`
	SourceExtractionID *string   `json:"source_extraction_id,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Material is a project material row.
type Material struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	Name               string    `json:"name"`
	MaterialType       string    `json:"material_type,omitempty"`
	Category           string    `json:"category,omitempty"`
	Level              string    `json:"level,omitempty"`
	TemplateID         *string   `json:"template_id,omitempty"`
	SourceExtractionID *string   `json:"source_extraction_id,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
