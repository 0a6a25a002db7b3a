package constants

import "strings"

// EntityType is the kind of project row an import creates.
type EntityType string

const (
	EntityArea      EntityType = "area"
	EntityEquipment EntityType = "equipment"
	EntityMaterial  EntityType = "material"
)

// AreaType distinguishes parent floors from rooms in the areas table.
type AreaType string

const (
	AreaFloor AreaType = "floor"
	AreaRoom  AreaType = "room"
	AreaSpace AreaType = "space"
)

// TemplateKind selects a template catalog.
type TemplateKind string

const (
	TemplateEquipment TemplateKind = "equipment"
	TemplateMaterial  TemplateKind = "material"
)

// ParseEntityType canonicalizes user input such as "Equipment" or "materials".
func ParseEntityType(input string) (EntityType, bool) {
	normalized := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(input)), "s")
	switch normalized {
	case "area":
		return EntityArea, true
	case "equipment":
		return EntityEquipment, true
	case "material":
		return EntityMaterial, true
	}
	return "", false
}
