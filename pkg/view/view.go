// Package view composes layout, encoding, and interaction into a
// renderable scene and owns the load/error/empty presentation states.
//
// The View is the single owner of the derived position map: positions are
// recomputed from scratch whenever a new payload lands and discarded
// whenever a new load begins, so stale positions never render against a
// fresh payload. All methods are synchronous; the only suspension point
// is the data fetch inside Load.
package view

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/interact"
	"github.com/lattelab/reliamap/pkg/layout"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// State is the presentation state of the view.
type State int

// View states. Loading is the initial state; the other three are terminal
// until the next Load resets the cycle.
const (
	StateLoading State = iota
	StateReady
	StateEmpty
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Source supplies a validated reliability map payload. A nil map with a
// nil error means the source resolved to no data (the Empty state).
type Source interface {
	Fetch(ctx context.Context) (*relmap.Map, error)
}

// View owns one render cycle of the reliability map.
type View struct {
	state   State
	errMsg  string
	payload *relmap.Map

	// positions is derived state, recomputed per payload, never mutated
	// in place.
	positions map[string]layout.Point

	opts           layout.Options
	width, height  float64
	onNodeSelected interact.NodeSelectedFunc
	logger         *log.Logger
}

// Option configures a View.
type Option func(*View)

// WithLayout sets the layout frame geometry.
func WithLayout(opts layout.Options) Option {
	return func(v *View) { v.opts = opts }
}

// WithFrame sets the scene dimensions.
func WithFrame(width, height float64) Option {
	return func(v *View) { v.width = width; v.height = height }
}

// WithNodeSelected injects the selection callback, replacing the default
// diagnostic-only handler.
func WithNodeSelected(fn interact.NodeSelectedFunc) Option {
	return func(v *View) { v.onNodeSelected = fn }
}

// WithLogger sets the logger used by the default selection handler.
func WithLogger(l *log.Logger) Option {
	return func(v *View) { v.logger = l }
}

// New creates a View in the Loading state.
func New(options ...Option) *View {
	v := &View{
		state:  StateLoading,
		opts:   layout.DefaultOptions(),
		width:  2 * layout.DefaultCenterX,
		height: 2 * layout.DefaultCenterY,
		logger: log.Default(),
	}
	for _, opt := range options {
		opt(v)
	}
	if v.onNodeSelected == nil {
		logger := v.logger
		v.onNodeSelected = func(n relmap.Node) {
			logger.Debug("node selected", "id", n.ID, "type", n.Type)
		}
	}
	return v
}

// State returns the current presentation state.
func (v *View) State() State { return v.state }

// Err returns the surfaced failure message, valid only in StateError.
func (v *View) Err() string { return v.errMsg }

// Payload returns the current payload, valid only in StateReady.
func (v *View) Payload() *relmap.Map { return v.payload }

// Positions returns the derived position map, valid only in StateReady.
func (v *View) Positions() map[string]layout.Point { return v.positions }

// Load performs one fetch cycle: reset to Loading (discarding any prior
// position map), fetch, then transition to Ready, Empty, or Error.
//
// If ctx is cancelled while the fetch is outstanding - the consuming
// surface was torn down - the resolution is discarded and the view stays
// in Loading rather than applying a stale update.
func (v *View) Load(ctx context.Context, src Source) State {
	v.state = StateLoading
	v.errMsg = ""
	v.payload = nil
	v.positions = nil

	m, err := src.Fetch(ctx)

	// Guard against a late resolution landing on a torn-down view.
	if ctx.Err() != nil {
		return v.state
	}

	if err != nil {
		v.state = StateError
		v.errMsg = errors.UserMessage(err)
		return v.state
	}
	if m == nil {
		v.state = StateEmpty
		return v.state
	}
	return v.apply(m)
}

// SetPayload applies an already-fetched payload, running layout
// immediately. Useful for surfaces that fetch out-of-band.
func (v *View) SetPayload(m *relmap.Map) State {
	v.positions = nil
	if m == nil {
		v.state = StateEmpty
		v.payload = nil
		return v.state
	}
	return v.apply(m)
}

func (v *View) apply(m *relmap.Map) State {
	positions, err := layout.Radial(m.Nodes, v.opts)
	if err != nil {
		v.state = StateError
		v.errMsg = errors.UserMessage(err)
		return v.state
	}
	v.payload = m
	v.positions = positions
	v.state = StateReady
	return v.state
}

// Scene builds the renderable scene. ok is false unless the view is Ready.
func (v *View) Scene() (Scene, bool) {
	if v.state != StateReady {
		return Scene{}, false
	}
	return BuildScene(v.payload, v.positions, v.width, v.height), true
}

// SelectNode fires the node-selected callback with the full node entity.
// Unknown ids are ignored.
func (v *View) SelectNode(id string) {
	if v.payload == nil {
		return
	}
	if n, ok := v.payload.NodeByID(id); ok {
		v.onNodeSelected(n)
	}
}
