package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lattelab/reliamap/pkg/cache"
	"github.com/lattelab/reliamap/pkg/layout"
	"github.com/lattelab/reliamap/pkg/observability"
	"github.com/lattelab/reliamap/pkg/relmap"
	"github.com/lattelab/reliamap/pkg/render"
	"github.com/lattelab/reliamap/pkg/source"
	"github.com/lattelab/reliamap/pkg/view"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// A nil keyer gets a DefaultKeyer; a nil cache gets a NullCache.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete fetch → layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Fetch
	fetchStart := time.Now()
	m, fetchHit, err := r.FetchWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	result.Map = m
	result.Stats.FetchTime = time.Since(fetchStart)
	result.Stats.NodeCount = len(m.Nodes)
	result.Stats.LinkCount = len(m.Links)
	result.CacheInfo.FetchHit = fetchHit

	if data, err := relmap.MarshalMap(m); err == nil {
		result.MapHash = cache.Hash(data)
	}

	r.Logger.Info("fetched reliability map",
		"nodes", len(m.Nodes),
		"links", len(m.Links),
		"duration", result.Stats.FetchTime)

	// Stage 2: Layout
	layoutStart := time.Now()
	positions, layoutHit, err := r.ComputeLayoutWithCacheInfo(ctx, m, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Positions = positions
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	r.Logger.Info("computed layout",
		"positions", len(positions),
		"duration", result.Stats.LayoutTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, m, positions, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// FetchWithCacheInfo retrieves the payload with caching and returns cache
// hit info.
func (r *Runner) FetchWithCacheInfo(ctx context.Context, opts Options) (*relmap.Map, bool, error) {
	if err := opts.ValidateForFetch(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	if opts.File != "" {
		m, err := source.FileSource{Path: opts.File}.Fetch(ctx)
		return m, false, err
	}

	cacheKey := r.Keyer.MapKey(opts.BaseURL, cache.MapKeyOpts{
		APIKeyHash: cache.Hash([]byte(opts.APIKey)),
	})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if m, err := relmap.UnmarshalMap(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "map")
				return m, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "map")
	}

	src := source.NewMapSource(opts.BaseURL, opts.APIKey)
	m, err := src.Fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if !opts.Refresh {
		if data, err := relmap.MarshalMap(m); err == nil {
			_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLMap)
			observability.Cache().OnCacheSet(ctx, "map", len(data))
		}
	}

	return m, false, nil
}

// Fetch calls FetchWithCacheInfo and discards the cache hit info.
func (r *Runner) Fetch(ctx context.Context, opts Options) (*relmap.Map, error) {
	m, _, err := r.FetchWithCacheInfo(ctx, opts)
	return m, err
}

// ComputeLayoutWithCacheInfo computes positions with caching and returns
// cache hit info.
func (r *Runner) ComputeLayoutWithCacheInfo(ctx context.Context, m *relmap.Map, opts Options) (map[string]layout.Point, bool, error) {
	opts.SetLayoutDefaults()
	r.applyLogger(&opts)

	mapData, _ := relmap.MarshalMap(m)
	mapHash := cache.Hash(mapData)
	cacheKey := r.Keyer.LayoutKey(mapHash, opts.LayoutKeyOpts())

	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		var cached map[string]layout.Point
		if err := json.Unmarshal(data, &cached); err == nil {
			observability.Cache().OnCacheHit(ctx, "layout")
			return cached, true, nil
		}
		// Corrupt entry, fall through to recompute
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	layoutStart := time.Now()
	observability.Pipeline().OnLayoutStart(ctx, len(m.Nodes))
	positions, err := layout.Radial(m.Nodes, opts.LayoutOptions())
	observability.Pipeline().OnLayoutComplete(ctx, time.Since(layoutStart), err)
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(positions); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout)
		observability.Cache().OnCacheSet(ctx, "layout", len(data))
	}

	return positions, false, nil
}

// ComputeLayout calls ComputeLayoutWithCacheInfo and discards the cache
// hit info.
func (r *Runner) ComputeLayout(ctx context.Context, m *relmap.Map, opts Options) (map[string]layout.Point, error) {
	positions, _, err := r.ComputeLayoutWithCacheInfo(ctx, m, opts)
	return positions, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache
// hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, m *relmap.Map, positions map[string]layout.Point, opts Options) (map[string][]byte, bool, error) {
	opts.SetLayoutDefaults()
	opts.SetRenderDefaults()
	r.applyLogger(&opts)
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	if err := ValidateEngine(opts.Engine); err != nil {
		return nil, false, err
	}

	layoutData, err := json.Marshal(positions)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	cacheKeyHash := cache.Hash(layoutData)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(cacheKeyHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil
	}

	rendered, err := r.renderAll(ctx, m, positions, opts)
	if err != nil {
		return nil, false, err
	}

	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(cacheKeyHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
	}

	return rendered, false, nil
}

// Render calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, m *relmap.Map, positions map[string]layout.Point, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, m, positions, opts)
	return artifacts, err
}

func (r *Runner) renderAll(ctx context.Context, m *relmap.Map, positions map[string]layout.Point, opts Options) (map[string][]byte, error) {
	theme, err := opts.ResolveTheme()
	if err != nil {
		return nil, err
	}

	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		data, err := r.renderOne(ctx, m, positions, theme, format, opts)
		if err != nil {
			observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), err)
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), nil)
	return artifacts, nil
}

func (r *Runner) renderOne(ctx context.Context, m *relmap.Map, positions map[string]layout.Point, theme render.Theme, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatSVG:
		if opts.Engine == EngineGraphviz {
			return render.RenderGraphvizSVG(ctx, render.ToDOT(m, theme))
		}
		scene := view.BuildScene(m, positions, opts.Width, opts.Height)
		svgOpts := []render.SVGOption{render.WithTheme(theme)}
		if opts.Tooltips {
			svgOpts = append(svgOpts, render.WithTooltips())
		}
		return render.RenderSVG(scene, svgOpts...), nil
	case FormatDOT:
		return []byte(render.ToDOT(m, theme)), nil
	case FormatJSON:
		return relmap.MarshalMap(m)
	default:
		return nil, fmt.Errorf("invalid format: %q", format)
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
