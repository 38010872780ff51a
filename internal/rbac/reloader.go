package rbac

import (
	"bytes"
	"context"
	"time"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// Reloader periodically re-reads a Source and swaps the Registry snapshot
// when the document changes. A document that fails to load or parse leaves
// the current snapshot in place.
type Reloader struct {
	registry *Registry
	source   Source
	interval time.Duration
	logger   *logger.Logger

	last []byte
}

func NewReloader(registry *Registry, source Source, interval time.Duration, logger *logger.Logger) *Reloader {
	return &Reloader{
		registry: registry,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Reload loads the source once. It reports whether a new snapshot was
// installed. Reload is not safe for concurrent use with Run.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	data, err := r.source.Load(ctx)
	if err != nil {
		return false, err
	}
	if r.last != nil && bytes.Equal(data, r.last) {
		return false, nil
	}

	p, err := ParsePolicy(data)
	if err != nil {
		return false, err
	}

	if !p.HasRole(model.DefaultRole) {
		r.logger.Warn("Policy reloader: policy has no default role, new accounts get no permissions",
			"source", r.source.String(),
			"role", model.DefaultRole)
	}

	r.registry.Swap(p)
	r.last = data

	r.logger.Info("Policy reloader: policy installed",
		"source", r.source.String(),
		"roles", len(p.Roles()))

	return true, nil
}

// Run reloads every interval until ctx is done. A non-positive interval
// returns immediately.
func (r *Reloader) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reload(ctx); err != nil {
				r.logger.Warn("Policy reloader: keeping previous policy",
					"source", r.source.String(),
					"error", err.Error())
			}
		}
	}
}
