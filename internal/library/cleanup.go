package library

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/monitoring"
)

// ExpiryTarget is one entity eligible for time-to-live eviction
type ExpiryTarget struct {
	ID string
	// Kind labels the entity for metrics ("playlist", "job")
	Kind string
	// ContentAt is the timestamp the TTL is measured from; nil means
	// nothing to evict
	ContentAt *time.Time
	// Evict removes the entity's content
	Evict func() error
}

// ExpirySource yields the current eviction candidates of a collection
type ExpirySource interface {
	ExpiryTargets() []ExpiryTarget
}

// Cleaner evicts downloaded content past its time-to-live. The same sweep is
// applied to every registered source; a failure on one entity never aborts
// the sweep for the others.
type Cleaner struct {
	ttl     time.Duration
	sources []ExpirySource
	logger  *zap.Logger
}

// NewCleaner creates a cleaner sweeping the given sources
func NewCleaner(ttl time.Duration, logger *zap.Logger, sources ...ExpirySource) *Cleaner {
	return &Cleaner{
		ttl:     ttl,
		sources: sources,
		logger:  logger,
	}
}

// RunOnce sweeps all sources and returns the number of evictions performed
func (c *Cleaner) RunOnce(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}

	evicted := 0
	for _, src := range c.sources {
		for _, target := range src.ExpiryTargets() {
			if target.ContentAt == nil || now.Sub(*target.ContentAt) <= c.ttl {
				continue
			}
			if err := target.Evict(); err != nil {
				monitoring.RecordError("filesystem")
				c.logger.Warn("content eviction failed",
					zap.String("kind", target.Kind),
					zap.String("id", target.ID),
					zap.Error(err))
				continue
			}
			monitoring.CleanupEvictionsTotal.WithLabelValues(target.Kind).Inc()
			c.logger.Info("evicted expired content",
				zap.String("kind", target.Kind),
				zap.String("id", target.ID))
			evicted++
		}
	}
	return evicted
}

// ExpiryTargets implements ExpirySource for the playlist registry. Playlists
// are reset in place: the directory is recreated empty and the entry stays.
func (r *Registry) ExpiryTargets() []ExpiryTarget {
	all := r.All()
	targets := make([]ExpiryTarget, 0, len(all))
	for _, p := range all {
		p := p
		targets = append(targets, ExpiryTarget{
			ID:        p.ID,
			Kind:      "playlist",
			ContentAt: p.contentStamp(),
			Evict: func() error {
				return p.ResetContent(recreateDir)
			},
		})
	}
	return targets
}

// recreateDir removes a directory tree and recreates it empty
func recreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
