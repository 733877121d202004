package server

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/lattelab/reliamap/pkg/relmap"
)

// suiteTemplate describes a mock node before jitter is applied.
type suiteTemplate struct {
	id        string
	label     string
	nodeType  string
	baseScore float64
	strength  float64
	drift     float64
}

// Templates mirror the demo suites used by the upstream lab backend, plus
// persona and memory nodes so every node type appears in the mock map.
var mockTemplates = []suiteTemplate{
	{id: "suite-calculator", label: "Calculator Demo Suite", nodeType: relmap.TypeSuite, baseScore: 0.93, strength: 0.9, drift: 0.05},
	{id: "suite-custom", label: "Custom Agents Suite", nodeType: relmap.TypeSuite, baseScore: 0.79, strength: 0.75, drift: 0.2},
	{id: "suite-crisis", label: "Crisis Command Suite", nodeType: relmap.TypeSuite, baseScore: 0.77, strength: 0.7, drift: 0.25},
	{id: "persona-analyst", label: "Analyst Persona", nodeType: relmap.TypePersona, baseScore: 0.85, strength: 0.8, drift: 0.1},
	{id: "persona-support", label: "Support Persona", nodeType: relmap.TypePersona, baseScore: 0.72, strength: 0.65, drift: 0.3},
	{id: "memory-episodic", label: "Episodic Memory", nodeType: relmap.TypeMemory, baseScore: 0.88, strength: 0.85, drift: 0.08},
	{id: "memory-vector", label: "Vector Store", nodeType: relmap.TypeMemory, baseScore: 0.91, strength: 0.88, drift: 0.04},
}

// MockGenerator produces randomized reliability maps for demo mode.
// Scores and link weights jitter around the template baselines, clamped
// to the unit interval.
type MockGenerator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewMockGenerator creates a generator seeded from seed. Use a fixed seed
// in tests for reproducible payloads.
func NewMockGenerator(seed int64) *MockGenerator {
	return &MockGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Generate builds a fresh mock reliability map with the agent at the
// center and jittered suite, persona, and memory nodes around it.
func (g *MockGenerator) Generate() *relmap.Map {
	now := g.now().UTC().Truncate(time.Second)

	m := &relmap.Map{
		Nodes: make([]relmap.Node, 0, len(mockTemplates)+1),
		Links: make([]relmap.Link, 0, len(mockTemplates)),
	}

	m.Nodes = append(m.Nodes, relmap.Node{
		ID:    relmap.CenterNodeID,
		Label: "Agent",
		Type:  relmap.TypeAgent,
	})

	for i, t := range mockTemplates {
		lastRun := now.Add(-time.Duration(i*5) * time.Minute).Format(time.RFC3339)
		m.Nodes = append(m.Nodes, relmap.Node{
			ID:      t.id,
			Label:   t.label,
			Type:    t.nodeType,
			Score:   relmap.Score(g.jitter(t.baseScore, 0.05)),
			LastRun: lastRun,
		})
		m.Links = append(m.Links, relmap.Link{
			Source:   relmap.CenterNodeID,
			Target:   t.id,
			Strength: g.jitter(t.strength, 0.08),
			Drift:    g.jitter(t.drift, 0.05),
		})
	}

	return m
}

// RunID returns a unique identifier for a generated payload.
func (g *MockGenerator) RunID() string {
	return uuid.NewString()
}

// jitter perturbs base by up to ±spread, clamped to [0, 1].
func (g *MockGenerator) jitter(base, spread float64) float64 {
	return bounded(base + (g.rng.Float64()*2-1)*spread)
}

func bounded(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
