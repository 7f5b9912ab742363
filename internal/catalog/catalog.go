// Package catalog keeps the list of model identifiers the inference server
// reports as available.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"LocalChat/internal/backend"
	"LocalChat/internal/telemetry"
)

// Lister is the subset of the Ollama client the catalog needs
type Lister interface {
	ListModels(ctx context.Context) ([]backend.OllamaModel, error)
}

// Catalog fetches and caches model identifiers. It never returns an error to
// callers; the most recent failure is kept for diagnostics.
type Catalog struct {
	lister Lister
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	models    []string
	fetched   bool
	fetchedAt time.Time
	lastErr   error
}

// New creates a catalog backed by lister
func New(lister Lister, logger *slog.Logger, tracer trace.Tracer) *Catalog {
	return &Catalog{
		lister: lister,
		logger: telemetry.Logger(logger),
		tracer: telemetry.Tracer(tracer),
	}
}

// ListModels queries the server and returns the model names in the order the
// server lists them. On failure it returns an empty slice, logs the problem and
// records it for LastError.
func (c *Catalog) ListModels(ctx context.Context) []string {
	ctx, span := c.tracer.Start(ctx, "list_models")
	defer span.End()

	models, err := c.lister.ListModels(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched = true
	c.fetchedAt = time.Now()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("failed to get models", "error", err)
		c.models = []string{}
		c.lastErr = err
		return []string{}
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	span.SetAttributes(attribute.Int("models.count", len(names)))
	c.logger.Info("fetched model catalog", "count", len(names))

	c.models = names
	c.lastErr = nil
	return slices.Clone(names)
}

// Models returns the last fetched list. fetched is false until ListModels has
// run at least once, so an empty catalog can be told apart from an unknown one.
func (c *Catalog) Models() (models []string, fetched bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fetched {
		return nil, false
	}
	return slices.Clone(c.models), true
}

// Contains reports whether id was in the last fetched list
func (c *Catalog) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.models, id)
}

// FetchedAt returns when the catalog was last fetched
func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// LastError returns the failure from the most recent fetch, if any
func (c *Catalog) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
