package bim

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/matching"
)

// Ordered property aliases; the first non-empty value wins.
var (
	nameKeys         = []string{"Name", "name"}
	levelKeys        = []string{"Level", "Base Constraint", "Reference Level", "Schedule Level", "Base Level"}
	typeKeys         = []string{"Type Name", "Type", "Family and Type", "Family"}
	manufacturerKeys = []string{"Manufacturer", "manufacturer"}
	modelKeys        = []string{"Model", "model"}
	numberKeys       = []string{"Number", "Mark"}
	areaKeys         = []string{"Area", "Computed Area"}
)

var leadingNumberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Templates are the catalogs equipment and materials are scored against.
type Templates struct {
	Equipment []entity.Template
	Materials []entity.Template
}

// Mapper turns an object tree plus flat properties into extracted items.
type Mapper struct {
	taxonomy *Taxonomy
	logger   *slog.Logger
}

// NewMapper indexes taxonomy once so the mapper can be shared between
// goroutines. An invalid taxonomy is logged and replaced by the default.
func NewMapper(taxonomy *Taxonomy, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	} else if err := taxonomy.Validate(); err != nil {
		logger.Error("bim.taxonomy.invalid", "error", err)
		taxonomy = DefaultTaxonomy()
	}
	return &Mapper{taxonomy: taxonomy, logger: logger}
}

type leaf struct {
	node     Node
	category string
}

// Map walks tree depth-first and classifies every leaf by the name of its
// nearest ancestor group.
func (m *Mapper) Map(tree []Node, props []ObjectProperties, templates Templates) *entity.ExtractionResult {
	byID := make(map[int]map[string]string, len(props))
	for _, p := range props {
		byID[p.ObjectID] = Flatten(p.Properties)
	}

	var leaves []leaf
	var walk func(nodes []Node, category string)
	walk = func(nodes []Node, category string) {
		for _, n := range nodes {
			if len(n.Children) == 0 {
				leaves = append(leaves, leaf{node: n, category: category})
				continue
			}
			walk(n.Children, n.Name)
		}
	}
	walk(tree, "")

	res := entity.NewExtractionResult()
	res.RawObjectCount = CountNodes(tree)
	dropped := 0
	for _, l := range leaves {
		p := byID[l.node.ObjectID]
		id := strconv.Itoa(l.node.ObjectID)
		name := firstOf(p, nameKeys)
		if name == "" {
			name = l.node.Name
		}
		level := firstOf(p, levelKeys)

		switch m.taxonomy.Classify(l.category) {
		case KindRoom:
			res.Areas = append(res.Areas, entity.AreaItem{
				ID:          id,
				Name:        name,
				Number:      firstOf(p, numberKeys),
				Level:       level,
				FloorNumber: ParseLevelToFloor(level),
				AreaSqm:     parseQuantity(firstOf(p, areaKeys)),
				Category:    l.category,
			})
		case KindEquipment:
			item := entity.EquipmentItem{
				ID:           id,
				Name:         name,
				Type:         firstOf(p, typeKeys),
				Category:     l.category,
				Manufacturer: firstOf(p, manufacturerKeys),
				Model:        firstOf(p, modelKeys),
				Level:        level,
			}
			matching.FindBest(item.Name, item.Type, templates.Equipment).Apply(&item.TemplateMatch)
			res.Equipment = append(res.Equipment, item)
		case KindMaterial:
			item := entity.MaterialItem{
				ID:       id,
				Name:     name,
				Type:     firstOf(p, typeKeys),
				Category: l.category,
				Level:    level,
			}
			matching.FindBest(item.Name, item.Type, templates.Materials).Apply(&item.TemplateMatch)
			res.Materials = append(res.Materials, item)
		default:
			dropped++
		}
	}

	res.Summary = map[string]any{
		"total_objects":   res.RawObjectCount,
		"total_areas":     len(res.Areas),
		"total_equipment": len(res.Equipment),
		"total_materials": len(res.Materials),
	}
	m.logger.Debug("bim.map.done",
		"objects", res.RawObjectCount,
		"leaves", len(leaves),
		"areas", len(res.Areas),
		"equipment", len(res.Equipment),
		"materials", len(res.Materials),
		"dropped", dropped)
	return res
}

// Flatten merges property groups into one map. Groups are visited in sorted
// order and the first non-empty value for a key wins.
func Flatten(groups map[string]map[string]any) map[string]string {
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	out := make(map[string]string)
	for _, g := range names {
		for k, v := range groups[g] {
			if _, seen := out[k]; seen {
				continue
			}
			if s := strings.TrimSpace(stringify(v)); s != "" {
				out[k] = s
			}
		}
	}
	return out
}

func firstOf(props map[string]string, keys []string) string {
	for _, k := range keys {
		if v := props[k]; v != "" {
			return v
		}
	}
	return ""
}

// parseQuantity reads the leading number of values such as "25.4 m²".
func parseQuantity(s string) *float64 {
	m := leadingNumberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
