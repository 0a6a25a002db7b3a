package entity

// ExtractionResult is the source-agnostic normalized shape every extractor
// produces. PDF and image sources fill Floors and Summary; BIM sources fill
// Areas, Equipment and Materials.
type ExtractionResult struct {
	Floors         []Floor         `json:"floors"`
	Summary        map[string]any  `json:"summary"`
	Areas          []AreaItem      `json:"areas"`
	Equipment      []EquipmentItem `json:"equipment"`
	Materials      []MaterialItem  `json:"materials"`
	RawObjectCount int             `json:"raw_object_count"`
}

// Floor is one storey read from a quantity takeoff or plan image.
type Floor struct {
	Name        string   `json:"name"`
	FloorNumber *int     `json:"floor_number,omitempty"`
	TotalArea   *float64 `json:"total_area,omitempty"`
	Rooms       []Room   `json:"rooms"`
}

// Room is a measured room inside a Floor.
type Room struct {
	Name     string   `json:"name"`
	Area     *float64 `json:"area,omitempty"`
	RoomType string   `json:"room_type,omitempty"`
}

// AreaItem is a room or space extracted from a BIM model.
type AreaItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Number      string   `json:"number,omitempty"`
	Level       string   `json:"level,omitempty"`
	FloorNumber *int     `json:"floor_number,omitempty"`
	AreaSqm     *float64 `json:"area_sqm,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// TemplateMatch is the matcher's verdict attached to an extracted item.
type TemplateMatch struct {
	MatchedTemplateID   *string `json:"matched_template_id"`
	MatchedTemplateName *string `json:"matched_template_name"`
	MatchConfidence     float64 `json:"match_confidence"`
}

// EquipmentItem is a piece of equipment extracted from a BIM model.
type EquipmentItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Category     string `json:"category,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Level        string `json:"level,omitempty"`
	TemplateMatch
}

// MaterialItem is a material or finish extracted from a BIM model.
type MaterialItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Level    string `json:"level,omitempty"`
	TemplateMatch
}

// NewExtractionResult returns a result with every collection non-nil, so the
// persisted JSON always carries lists rather than nulls.
func NewExtractionResult() *ExtractionResult {
	r := &ExtractionResult{}
	r.Normalize()
	return r
}

// Normalize replaces nil collections with empty ones.
func (r *ExtractionResult) Normalize() {
	if r.Floors == nil {
		r.Floors = []Floor{}
	}
	for i := range r.Floors {
		if r.Floors[i].Rooms == nil {
			r.Floors[i].Rooms = []Room{}
		}
	}
	if r.Summary == nil {
		r.Summary = map[string]any{}
	}
	if r.Areas == nil {
		r.Areas = []AreaItem{}
	}
	if r.Equipment == nil {
		r.Equipment = []EquipmentItem{}
	}
	if r.Materials == nil {
		r.Materials = []MaterialItem{}
	}
}
