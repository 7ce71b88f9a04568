package publishers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with the built-in http and queue types.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.Register(TypeHTTP, newHTTPPublisher)
	r.Register(TypeQueue, newQueuePublisher)
	return r
}

// Register replaces the builder for typ.
func (r *Registry) Register(typ string, b Builder) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" || b == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = b
	r.mu.Unlock()
}

func (r *Registry) build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	r.mu.RLock()
	b := r.builders[cfg.Type]
	r.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return b(ctx, cfg, log)
}

// Build instantiates every enabled entry and wraps them in a Fanout.
func (r *Registry) Build(ctx context.Context, cfgs []PublisherConfig, zone *time.Location, log Logger) (*Fanout, error) {
	log = ensureLogger(log)
	var pubs []Publisher
	for _, cfg := range Enabled(cfgs) {
		p, err := r.build(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		log.InfoObj("publisher ready", "publisher_ready", map[string]any{
			"publisher_id": p.ID(),
			"type":         p.Type(),
		})
		pubs = append(pubs, p)
	}
	return NewFanout(pubs, zone, log), nil
}

// FromFile loads path and builds its publishers. An empty path yields an
// empty Fanout.
func FromFile(ctx context.Context, path string, zone *time.Location, log Logger) (*Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return NewFanout(nil, zone, log), nil
	}
	cfgs, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry().Build(ctx, cfgs, zone, log)
}
