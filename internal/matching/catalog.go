package matching

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// TemplateSource loads a full catalog for one kind.
type TemplateSource interface {
	List(ctx context.Context, kind constants.TemplateKind) ([]entity.Template, error)
}

// Catalog memoizes template lists per kind for a TTL.
type Catalog struct {
	source TemplateSource
	cache  *cache.Cache
	logger *slog.Logger
}

func NewCatalog(source TemplateSource, ttl time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Templates returns the catalog for kind, loading it on a cache miss.
func (c *Catalog) Templates(ctx context.Context, kind constants.TemplateKind) ([]entity.Template, error) {
	if v, ok := c.cache.Get(string(kind)); ok {
		return v.([]entity.Template), nil
	}
	list, err := c.source.List(ctx, kind)
	if err != nil {
		c.logger.Error("catalog.load.failed", "kind", kind, "error", err)
		return nil, err
	}
	c.cache.SetDefault(string(kind), list)
	c.logger.Debug("catalog.load", "kind", kind, "count", len(list))
	return list, nil
}

// Invalidate drops every cached catalog.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
