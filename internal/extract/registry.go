package extract

import (
	"fmt"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

// Registry dispatches a source to its extractor.
type Registry struct {
	bySource map[constants.ExtractionSource]Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{bySource: make(map[constants.ExtractionSource]Extractor, len(extractors))}
	for _, x := range extractors {
		if x != nil {
			r.bySource[x.Source()] = x
		}
	}
	return r
}

// Get returns the extractor for source or a configuration error.
func (r *Registry) Get(source constants.ExtractionSource) (Extractor, error) {
	if r != nil {
		if x, ok := r.bySource[source]; ok {
			return x, nil
		}
	}
	return nil, common.ConfigurationError(fmt.Sprintf("no extractor registered for source %q", source))
}
