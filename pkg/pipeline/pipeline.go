// Package pipeline provides the core reliability map pipeline.
//
// This package implements the complete fetch → layout → render pipeline
// shared by the CLI and the server. Centralizing it keeps behavior
// consistent across entry points.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Fetch: Retrieve and validate the reliability map payload
//  2. Layout: Compute radial positions anchored on the agent node
//  3. Render: Generate artifacts in the requested formats
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    BaseURL: "http://localhost:8000",
//	    APIKey:  key,
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lattelab/reliamap/pkg/cache"
	"github.com/lattelab/reliamap/pkg/layout"
	"github.com/lattelab/reliamap/pkg/relmap"
	"github.com/lattelab/reliamap/pkg/render"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 800.0

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = 600.0

	// DefaultTheme is the default color theme.
	DefaultTheme = "light"
)

// Format constants for output formats.
const (
	FormatSVG  = render.FormatSVG
	FormatDOT  = render.FormatDOT
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatDOT:  true,
	FormatJSON: true,
}

// ValidThemes is the set of supported color themes.
var ValidThemes = map[string]bool{
	"light": true,
	"dark":  true,
}

// SVG engine constants.
const (
	EngineNative   = "native"
	EngineGraphviz = "graphviz"
)

// ValidEngines is the set of supported SVG engines.
var ValidEngines = map[string]bool{
	EngineNative:   true,
	EngineGraphviz: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the reliability map pipeline.
// The struct supports JSON serialization for API requests.
type Options struct {
	// Fetch options
	BaseURL string `json:"base_url,omitempty"`
	File    string `json:"file,omitempty"` // Local payload instead of HTTP fetch
	Refresh bool   `json:"refresh,omitempty"`

	// Layout options
	CenterX float64 `json:"center_x,omitempty"`
	CenterY float64 `json:"center_y,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`

	// Render options
	Formats   []string `json:"formats,omitempty"`
	Theme     string   `json:"theme,omitempty"`
	ThemeFile string   `json:"theme_file,omitempty"`
	Tooltips  bool     `json:"tooltips,omitempty"`
	Engine    string   `json:"engine,omitempty"` // SVG engine: native (default) or graphviz

	// Runtime options (not serialized)
	APIKey string      `json:"-"`
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Map is the fetched reliability map payload.
	Map *relmap.Map

	// MapHash is the content hash of the payload.
	MapHash string

	// Positions maps node ids to computed coordinates.
	Positions map[string]layout.Point

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	LinkCount  int
	FetchTime  time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	FetchHit  bool // Whether the payload came from cache
	LayoutHit bool // Whether positions came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: svg, dot, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEngine checks that an SVG engine is valid.
func ValidateEngine(engine string) error {
	if engine != "" && !ValidEngines[engine] {
		return fmt.Errorf("invalid engine: %q (must be one of: native, graphviz)", engine)
	}
	return nil
}

// ValidateTheme checks that a theme name is valid.
// A theme file bypasses the built-in name check.
func ValidateTheme(theme string) error {
	if theme != "" && !ValidThemes[theme] {
		return fmt.Errorf("invalid theme: %q (must be one of: light, dark)", theme)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for
// the full pipeline. Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForFetch(); err != nil {
		return err
	}
	o.SetLayoutDefaults()
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := ValidateEngine(o.Engine); err != nil {
		return err
	}
	if o.ThemeFile == "" {
		if err := ValidateTheme(o.Theme); err != nil {
			return err
		}
	}
	o.validated = true
	return nil
}

// ValidateForFetch checks required fields for fetching.
func (o *Options) ValidateForFetch() error {
	if o.BaseURL == "" && o.File == "" {
		return fmt.Errorf("base_url or file is required")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.CenterX == 0 {
		o.CenterX = layout.DefaultCenterX
	}
	if o.CenterY == 0 {
		o.CenterY = layout.DefaultCenterY
	}
	if o.Radius == 0 {
		o.Radius = layout.DefaultRadius
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Theme == "" && o.ThemeFile == "" {
		o.Theme = DefaultTheme
	}
	if o.Engine == "" {
		o.Engine = EngineNative
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// LayoutOptions returns the layout geometry for this run.
func (o *Options) LayoutOptions() layout.Options {
	return layout.Options{
		CenterX: o.CenterX,
		CenterY: o.CenterY,
		Radius:  o.Radius,
	}
}

// ResolveTheme loads the configured theme, preferring a theme file over a
// built-in name.
func (o *Options) ResolveTheme() (render.Theme, error) {
	if o.ThemeFile != "" {
		return render.LoadTheme(o.ThemeFile)
	}
	return render.ThemeByName(o.Theme)
}

// LayoutKeyOpts returns cache key options for layout computation.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		CenterX: o.CenterX,
		CenterY: o.CenterY,
		Radius:  o.Radius,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	theme := o.Theme
	if o.ThemeFile != "" {
		theme = o.ThemeFile
	}
	return cache.ArtifactKeyOpts{
		Format:   format,
		Theme:    theme,
		Engine:   o.Engine,
		Tooltips: o.Tooltips,
	}
}
