package entity

import "github.com/joseph-ayodele/takeoff-tracker/constants"

// Template is a read-only catalog entry extracted items are matched against.
type Template struct {
	ID       string                 `json:"id"`
	Kind     constants.TemplateKind `json:"kind"`
	Name     string                 `json:"name"`
	NameEn   string                 `json:"name_en,omitempty"`
	NameHe   string                 `json:"name_he,omitempty"`
	Category string                 `json:"category,omitempty"`
	Aliases  []string               `json:"aliases,omitempty"`
}

// Names returns the canonical name followed by every non-empty alias.
func (t Template) Names() []string {
	out := make([]string, 0, 3+len(t.Aliases))
	for _, s := range append([]string{t.Name, t.NameEn, t.NameHe}, t.Aliases...) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
