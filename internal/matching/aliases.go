package matching

// crossLanguage pairs common Hebrew trade terms with their English names.
// Keys and values are normalized; lookups go both ways.
var crossLanguage = map[string]string{
	"משאבה":          "pump",
	"משאבת כיבוי אש": "fire pump",
	"מאוורר":         "fan",
	"מפוח":           "blower",
	"גנרטור":         "generator",
	"מזגן":           "air conditioner",
	"צ'ילר":          "chiller",
	"דוד":            "boiler",
	"מעלית":          "elevator",
	"לוח חשמל":       "electrical panel",
	"שנאי":           "transformer",
	"מפזר":           "diffuser",
	"ספרינקלר":       "sprinkler",
	"מדחס":           "compressor",
	"מחליף חום":      "heat exchanger",
	"בטון":           "concrete",
	"פלדה":           "steel",
	"גבס":            "gypsum",
	"זכוכית":         "glass",
	"עץ":             "wood",
	"אלומיניום":      "aluminum",
	"קרמיקה":         "ceramic",
	"אריחים":         "tiles",
	"בידוד":          "insulation",
	"טיח":            "plaster",
	"שיש":            "marble",
}

var crossLanguageReverse = func() map[string]string {
	out := make(map[string]string, len(crossLanguage))
	for he, en := range crossLanguage {
		out[en] = he
	}
	return out
}()

// Translate returns the other-language term for s, if the table has one.
func Translate(s string) (string, bool) {
	n := Normalize(s)
	if v, ok := crossLanguage[n]; ok {
		return v, true
	}
	v, ok := crossLanguageReverse[n]
	return v, ok
}

// expandAliases appends table translations of every name.
func expandAliases(names []string) []string {
	out := append([]string(nil), names...)
	for _, n := range names {
		if t, ok := Translate(n); ok {
			out = append(out, t)
		}
	}
	return out
}
