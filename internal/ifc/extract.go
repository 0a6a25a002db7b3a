package ifc

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/takeoff-tracker/internal/bim"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// equipmentClasses maps IFC element classes treated as equipment to a
// readable category.
var equipmentClasses = map[string]string{
	"IFCFLOWTERMINAL":              "Flow Terminal",
	"IFCFLOWMOVINGDEVICE":          "Flow Moving Device",
	"IFCFLOWCONTROLLER":            "Flow Controller",
	"IFCFLOWSTORAGEDEVICE":         "Flow Storage Device",
	"IFCFLOWTREATMENTDEVICE":       "Flow Treatment Device",
	"IFCENERGYCONVERSIONDEVICE":    "Energy Conversion Device",
	"IFCPUMP":                      "Pump",
	"IFCFAN":                       "Fan",
	"IFCCOMPRESSOR":                "Compressor",
	"IFCBOILER":                    "Boiler",
	"IFCCHILLER":                   "Chiller",
	"IFCCOOLINGTOWER":              "Cooling Tower",
	"IFCUNITARYEQUIPMENT":          "Unitary Equipment",
	"IFCAIRTERMINAL":               "Air Terminal",
	"IFCVALVE":                     "Valve",
	"IFCTANK":                      "Tank",
	"IFCSANITARYTERMINAL":          "Sanitary Terminal",
	"IFCFIRESUPPRESSIONTERMINAL":   "Fire Suppression Terminal",
	"IFCLIGHTFIXTURE":              "Light Fixture",
	"IFCELECTRICAPPLIANCE":         "Electric Appliance",
	"IFCELECTRICDISTRIBUTIONBOARD": "Electric Distribution Board",
	"IFCTRANSFORMER":               "Transformer",
	"IFCELECTRICGENERATOR":         "Electric Generator",
	"IFCTRANSPORTELEMENT":          "Transport Element",
}

var areaQuantityPreference = []string{"NetFloorArea", "GrossFloorArea", "NetArea", "GrossArea", "Area"}

type index struct {
	m        *Model
	storeyOf map[int]*Entity
	areaOf   map[int]float64
	props    map[int]map[string]string
}

// Extract reads spaces, equipment and materials out of a parsed model.
// Template matching is left to the caller.
func Extract(m *Model) *entity.ExtractionResult {
	ix := buildIndex(m)
	res := entity.NewExtractionResult()
	res.RawObjectCount = m.Len()

	for _, sp := range m.ByType("IFCSPACE") {
		name, number := sp.String(7), sp.String(2)
		if name == "" {
			name, number = number, ""
		}
		level := ix.levelName(sp.ID)
		item := entity.AreaItem{
			ID:          globalID(sp),
			Name:        name,
			Number:      number,
			Level:       level,
			FloorNumber: bim.ParseLevelToFloor(level),
			Category:    "IfcSpace",
		}
		if a, ok := ix.areaOf[sp.ID]; ok {
			item.AreaSqm = &a
		}
		res.Areas = append(res.Areas, item)
	}

	classes := make([]string, 0, len(equipmentClasses))
	for c := range equipmentClasses {
		classes = append(classes, c)
	}
	for _, el := range m.ByType(classes...) {
		p := ix.props[el.ID]
		res.Equipment = append(res.Equipment, entity.EquipmentItem{
			ID:           globalID(el),
			Name:         firstNonEmpty(el.String(2), equipmentClasses[el.Type]),
			Type:         firstNonEmpty(el.String(4), predefinedType(el)),
			Category:     equipmentClasses[el.Type],
			Manufacturer: p["Manufacturer"],
			Model:        firstNonEmpty(p["ModelLabel"], p["ModelReference"]),
			Level:        ix.levelName(el.ID),
		})
	}

	for _, mat := range m.ByType("IFCMATERIAL") {
		res.Materials = append(res.Materials, entity.MaterialItem{
			ID:       fmt.Sprintf("#%d", mat.ID),
			Name:     mat.String(0),
			Category: mat.String(2),
		})
	}
	for _, cov := range m.ByType("IFCCOVERING") {
		res.Materials = append(res.Materials, entity.MaterialItem{
			ID:       globalID(cov),
			Name:     firstNonEmpty(cov.String(2), "Covering"),
			Type:     firstNonEmpty(cov.String(4), predefinedType(cov)),
			Category: "Covering",
			Level:    ix.levelName(cov.ID),
		})
	}

	res.Summary = map[string]any{
		"total_objects":   res.RawObjectCount,
		"total_storeys":   len(m.ByType("IFCBUILDINGSTOREY")),
		"total_areas":     len(res.Areas),
		"total_equipment": len(res.Equipment),
		"total_materials": len(res.Materials),
	}
	return res
}

func buildIndex(m *Model) *index {
	ix := &index{
		m:        m,
		storeyOf: make(map[int]*Entity),
		areaOf:   make(map[int]float64),
		props:    make(map[int]map[string]string),
	}

	spaceParent := make(map[int]int)
	for _, rel := range m.ByType("IFCRELAGGREGATES") {
		parentRef, ok := rel.Ref(4)
		if !ok {
			continue
		}
		parent := m.Get(parentRef)
		for _, child := range rel.Refs(5) {
			if parent != nil && parent.Type == "IFCBUILDINGSTOREY" {
				ix.storeyOf[int(child)] = parent
			} else {
				spaceParent[int(child)] = int(parentRef)
			}
		}
	}
	for _, rel := range m.ByType("IFCRELCONTAINEDINSPATIALSTRUCTURE") {
		structRef, ok := rel.Ref(5)
		if !ok {
			continue
		}
		for _, el := range rel.Refs(4) {
			spaceParent[int(el)] = int(structRef)
		}
	}
	// elements contained in spaces (or sub-spaces) inherit the storey
	for id := range spaceParent {
		seen := map[int]bool{}
		cur := id
		for !seen[cur] {
			seen[cur] = true
			if s, ok := ix.storeyOf[cur]; ok {
				ix.storeyOf[id] = s
				break
			}
			parent, ok := spaceParent[cur]
			if !ok {
				break
			}
			if e := m.Entities[parent]; e != nil && e.Type == "IFCBUILDINGSTOREY" {
				ix.storeyOf[id] = e
				break
			}
			cur = parent
		}
	}

	for _, rel := range m.ByType("IFCRELDEFINESBYPROPERTIES") {
		defRef, ok := rel.Ref(5)
		if !ok {
			continue
		}
		def := m.Get(defRef)
		if def == nil {
			continue
		}
		switch def.Type {
		case "IFCELEMENTQUANTITY":
			if area, ok := ix.preferredArea(def); ok {
				for _, obj := range rel.Refs(4) {
					ix.areaOf[int(obj)] = area
				}
			}
		case "IFCPROPERTYSET":
			values := ix.propertyValues(def)
			for _, obj := range rel.Refs(4) {
				dst := ix.props[int(obj)]
				if dst == nil {
					dst = make(map[string]string)
					ix.props[int(obj)] = dst
				}
				for k, v := range values {
					if _, seen := dst[k]; !seen {
						dst[k] = v
					}
				}
			}
		}
	}
	return ix
}

func (ix *index) preferredArea(q *Entity) (float64, bool) {
	found := map[string]float64{}
	for _, r := range q.Refs(5) {
		qa := ix.m.Get(r)
		if qa == nil || qa.Type != "IFCQUANTITYAREA" {
			continue
		}
		if v, ok := qa.Float(3); ok {
			found[qa.String(0)] = v
		}
	}
	for _, name := range areaQuantityPreference {
		if v, ok := found[name]; ok {
			return v, true
		}
	}
	return 0, false
}

func (ix *index) propertyValues(pset *Entity) map[string]string {
	out := map[string]string{}
	for _, r := range pset.Refs(4) {
		p := ix.m.Get(r)
		if p == nil || p.Type != "IFCPROPERTYSINGLEVALUE" {
			continue
		}
		if v := strings.TrimSpace(p.String(2)); v != "" {
			out[p.String(0)] = v
		}
	}
	return out
}

func (ix *index) levelName(id int) string {
	if s, ok := ix.storeyOf[id]; ok {
		return s.String(2)
	}
	return ""
}

func globalID(e *Entity) string {
	if g := e.String(0); g != "" {
		return g
	}
	return fmt.Sprintf("#%d", e.ID)
}

// predefinedType reads the trailing enum of an element, ignoring the
// placeholder values.
func predefinedType(e *Entity) string {
	if len(e.Args) == 0 {
		return ""
	}
	v, ok := e.Args[len(e.Args)-1].(Enum)
	if !ok || v == "NOTDEFINED" || v == "USERDEFINED" {
		return ""
	}
	return string(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
