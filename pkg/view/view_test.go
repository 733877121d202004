package view

import (
	"context"
	"testing"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/layout"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// stubSource resolves to a fixed payload or error.
type stubSource struct {
	m   *relmap.Map
	err error
}

func (s stubSource) Fetch(ctx context.Context) (*relmap.Map, error) { return s.m, s.err }

func testMap() *relmap.Map {
	return &relmap.Map{
		Nodes: []relmap.Node{
			{ID: "agent", Type: relmap.TypeAgent},
			{ID: "s1", Type: relmap.TypeSuite, Score: relmap.Score(0.9)},
			{ID: "p1", Type: relmap.TypePersona},
		},
		Links: []relmap.Link{
			{Source: "agent", Target: "s1", Strength: 0.8, Drift: 0.1},
			{Source: "agent", Target: "p1", Strength: 0.4, Drift: 0.0},
		},
	}
}

func TestLoadReady(t *testing.T) {
	v := New()
	state := v.Load(context.Background(), stubSource{m: testMap()})
	if state != StateReady {
		t.Fatalf("Load() = %v, want ready", state)
	}
	if v.Payload() == nil {
		t.Fatal("Payload() = nil in ready state")
	}
	positions := v.Positions()
	if len(positions) != 3 {
		t.Errorf("len(Positions()) = %d, want 3", len(positions))
	}
	center := positions["agent"]
	if center.X != layout.DefaultCenterX || center.Y != layout.DefaultCenterY {
		t.Errorf("agent position = %v, want frame center", center)
	}
}

func TestLoadEmpty(t *testing.T) {
	v := New()
	if state := v.Load(context.Background(), stubSource{}); state != StateEmpty {
		t.Fatalf("Load() = %v, want empty", state)
	}
	if _, ok := v.Scene(); ok {
		t.Error("Scene() ok in empty state")
	}
}

func TestLoadErrorSurfacesMessageVerbatim(t *testing.T) {
	const msg = "Failed to fetch reliability map data"
	err := errors.Wrap(errors.ErrCodeFetchFailed, context.DeadlineExceeded, msg)

	v := New()
	if state := v.Load(context.Background(), stubSource{err: err}); state != StateError {
		t.Fatalf("Load() = %v, want error", state)
	}
	// The surfaced message carries no code prefix and no cause chain.
	if v.Err() != msg {
		t.Errorf("Err() = %q, want %q", v.Err(), msg)
	}
}

func TestLoadMissingCenter(t *testing.T) {
	m := &relmap.Map{Nodes: []relmap.Node{{ID: "s1", Type: relmap.TypeSuite}}}
	v := New()
	if state := v.Load(context.Background(), stubSource{m: m}); state != StateError {
		t.Fatalf("Load() = %v, want error", state)
	}
	if v.Err() == "" {
		t.Error("Err() = empty for missing center")
	}
}

func TestLoadCancelledContextDiscardsResolution(t *testing.T) {
	v := New()
	v.Load(context.Background(), stubSource{m: testMap()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := v.Load(ctx, stubSource{m: testMap()})
	if state != StateLoading {
		t.Fatalf("Load() with cancelled ctx = %v, want loading", state)
	}
	// The stale resolution must not have been applied.
	if v.Payload() != nil {
		t.Error("Payload() applied after cancellation")
	}
	if v.Positions() != nil {
		t.Error("Positions() retained after cancellation")
	}
}

func TestReLoadDiscardsPositions(t *testing.T) {
	v := New()
	v.Load(context.Background(), stubSource{m: testMap()})
	if v.Positions() == nil {
		t.Fatal("no positions after first load")
	}

	// A failing reload must not leave the prior cycle's positions around.
	v.Load(context.Background(), stubSource{err: errors.New(errors.ErrCodeNetwork, "boom")})
	if v.Positions() != nil {
		t.Error("Positions() survived a reload")
	}
	if v.Payload() != nil {
		t.Error("Payload() survived a reload")
	}
}

func TestScene(t *testing.T) {
	v := New(WithFrame(800, 600))
	v.Load(context.Background(), stubSource{m: testMap()})

	s, ok := v.Scene()
	if !ok {
		t.Fatal("Scene() not ok in ready state")
	}
	if s.Width != 800 || s.Height != 600 {
		t.Errorf("frame = %vx%v, want 800x600", s.Width, s.Height)
	}
	if len(s.Edges) != 2 {
		t.Errorf("len(Edges) = %d, want 2", len(s.Edges))
	}
	if len(s.Nodes) != 3 || len(s.Labels) != 3 {
		t.Errorf("got %d nodes, %d labels, want 3, 3", len(s.Nodes), len(s.Labels))
	}
	// Labels sit below their markers.
	for i, l := range s.Labels {
		n := s.Nodes[i]
		if l.Y <= n.Y {
			t.Errorf("label %s at y=%v not below marker y=%v", l.NodeID, l.Y, n.Y)
		}
	}
}

func TestSceneSkipsDanglingLinks(t *testing.T) {
	m := testMap()
	m.Links = append(m.Links, relmap.Link{Source: "agent", Target: "ghost", Strength: 0.5})

	v := New()
	if state := v.SetPayload(m); state != StateReady {
		t.Fatalf("SetPayload() = %v, want ready", state)
	}
	s, _ := v.Scene()
	// The dangling link is skipped; every resolvable element still renders.
	if len(s.Edges) != 2 {
		t.Errorf("len(Edges) = %d, want 2", len(s.Edges))
	}
	if len(s.Nodes) != 3 {
		t.Errorf("len(Nodes) = %d, want 3", len(s.Nodes))
	}
}

func TestSceneSingleAgent(t *testing.T) {
	m := &relmap.Map{Nodes: []relmap.Node{{ID: "agent", Type: relmap.TypeAgent}}}
	v := New()
	if state := v.SetPayload(m); state != StateReady {
		t.Fatalf("SetPayload() = %v, want ready", state)
	}
	s, _ := v.Scene()
	if len(s.Nodes) != 1 || len(s.Edges) != 0 {
		t.Errorf("got %d nodes, %d edges, want 1, 0", len(s.Nodes), len(s.Edges))
	}
}

func TestSelectNode(t *testing.T) {
	var selected []string
	v := New(WithNodeSelected(func(n relmap.Node) {
		selected = append(selected, n.ID)
	}))
	v.SetPayload(testMap())

	v.SelectNode("s1")
	v.SelectNode("ghost") // ignored
	v.SelectNode("agent")

	if len(selected) != 2 || selected[0] != "s1" || selected[1] != "agent" {
		t.Errorf("selected = %v, want [s1 agent]", selected)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateEmpty, "empty"},
		{StateError, "error"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
