package matching

import (
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// DisplayThreshold is the confidence below which callers should flag a match
// for review. Match itself never filters.
const DisplayThreshold = 0.80

const (
	typeWeight     = 0.9
	categoryWeight = 0.7
)

// Match is the best template for an item. The zero value means no winner.
type Match struct {
	TemplateID   string
	TemplateName string
	Confidence   float64
}

// Found reports whether a template was selected.
func (m Match) Found() bool { return m.TemplateID != "" }

// Apply copies the match onto an extracted item.
func (m Match) Apply(tm *entity.TemplateMatch) {
	if !m.Found() {
		*tm = entity.TemplateMatch{}
		return
	}
	id, name := m.TemplateID, m.TemplateName
	tm.MatchedTemplateID = &id
	tm.MatchedTemplateName = &name
	tm.MatchConfidence = m.Confidence
}

// FindBest scores every template and keeps the highest; ties go to the one
// seen first.
func FindBest(name, typ string, templates []entity.Template) Match {
	var best Match
	for _, t := range templates {
		aliases := expandAliases(t.Names())

		s := BestMatchScore(name, aliases)
		if typ != "" {
			s = max(s, typeWeight*BestMatchScore(typ, aliases))
			if t.Category != "" {
				s = max(s, categoryWeight*BestMatchScore(typ, []string{t.Category}))
			}
		}
		if s > best.Confidence {
			best = Match{TemplateID: t.ID, TemplateName: t.Name, Confidence: s}
		}
	}
	return best
}

// MatchEquipment attaches the best template to every equipment item.
func MatchEquipment(items []entity.EquipmentItem, templates []entity.Template) {
	for i := range items {
		FindBest(items[i].Name, items[i].Type, templates).Apply(&items[i].TemplateMatch)
	}
}

// MatchMaterials attaches the best template to every material item.
func MatchMaterials(items []entity.MaterialItem, templates []entity.Template) {
	for i := range items {
		FindBest(items[i].Name, items[i].Type, templates).Apply(&items[i].TemplateMatch)
	}
}
