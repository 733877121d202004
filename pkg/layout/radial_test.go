package layout

import (
	"fmt"
	"math"
	"testing"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/relmap"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func mapWith(surrounding int) []relmap.Node {
	nodes := []relmap.Node{{ID: relmap.CenterNodeID, Type: relmap.TypeAgent}}
	for i := 0; i < surrounding; i++ {
		nodes = append(nodes, relmap.Node{ID: fmt.Sprintf("n%d", i), Type: relmap.TypeSuite})
	}
	return nodes
}

func TestRadialCenterInvariant(t *testing.T) {
	for _, count := range []int{0, 1, 2, 5, 10} {
		t.Run(fmt.Sprintf("Surrounding%d", count), func(t *testing.T) {
			positions, err := Radial(mapWith(count), DefaultOptions())
			if err != nil {
				t.Fatalf("Radial() error = %v", err)
			}
			center, ok := positions[relmap.CenterNodeID]
			if !ok {
				t.Fatal("center node has no position")
			}
			if center.X != DefaultCenterX || center.Y != DefaultCenterY {
				t.Errorf("center = (%v, %v), want (%v, %v)",
					center.X, center.Y, DefaultCenterX, DefaultCenterY)
			}
			if len(positions) != count+1 {
				t.Errorf("len(positions) = %d, want %d", len(positions), count+1)
			}
		})
	}
}

func TestRadialCenterNotFirst(t *testing.T) {
	// The center anchors the layout regardless of where it appears in
	// the node sequence.
	nodes := []relmap.Node{
		{ID: "s1", Type: relmap.TypeSuite},
		{ID: relmap.CenterNodeID, Type: relmap.TypeAgent},
		{ID: "s2", Type: relmap.TypeSuite},
	}
	positions, err := Radial(nodes, DefaultOptions())
	if err != nil {
		t.Fatalf("Radial() error = %v", err)
	}
	center := positions[relmap.CenterNodeID]
	if center.X != DefaultCenterX || center.Y != DefaultCenterY {
		t.Errorf("center = %v, want (%v, %v)", center, DefaultCenterX, DefaultCenterY)
	}
	// s1 is the first surrounding node, so it sits at angle 0.
	if got := positions["s1"]; !approxEqual(got.X, DefaultCenterX+DefaultRadius) || !approxEqual(got.Y, DefaultCenterY) {
		t.Errorf("s1 = %v, want (%v, %v)", got, DefaultCenterX+DefaultRadius, DefaultCenterY)
	}
}

func TestRadialAngles(t *testing.T) {
	for _, count := range []int{1, 2, 3, 10} {
		t.Run(fmt.Sprintf("Surrounding%d", count), func(t *testing.T) {
			opts := Options{CenterX: 100, CenterY: 50, Radius: 30}
			positions, err := Radial(mapWith(count), opts)
			if err != nil {
				t.Fatalf("Radial() error = %v", err)
			}
			for i := 0; i < count; i++ {
				angle := float64(i) / float64(count) * 2 * math.Pi
				want := Point{
					X: opts.CenterX + opts.Radius*math.Cos(angle),
					Y: opts.CenterY + opts.Radius*math.Sin(angle),
				}
				got := positions[fmt.Sprintf("n%d", i)]
				if !approxEqual(got.X, want.X) || !approxEqual(got.Y, want.Y) {
					t.Errorf("node %d = %v, want %v", i, got, want)
				}
				// Every node sits exactly on the circle.
				dist := math.Hypot(got.X-opts.CenterX, got.Y-opts.CenterY)
				if !approxEqual(dist, opts.Radius) {
					t.Errorf("node %d distance = %v, want %v", i, dist, opts.Radius)
				}
			}
		})
	}
}

func TestRadialMissingCenter(t *testing.T) {
	nodes := []relmap.Node{{ID: "s1", Type: relmap.TypeSuite}}
	_, err := Radial(nodes, DefaultOptions())
	if err != ErrMissingCenter {
		t.Fatalf("Radial() error = %v, want ErrMissingCenter", err)
	}
	if !errors.Is(err, errors.ErrCodeMissingCenter) {
		t.Errorf("error code = %v, want MISSING_CENTER_NODE", errors.GetCode(err))
	}
}

func TestRadialZeroRadiusUsesDefaults(t *testing.T) {
	positions, err := Radial(mapWith(1), Options{})
	if err != nil {
		t.Fatalf("Radial() error = %v", err)
	}
	got := positions["n0"]
	if !approxEqual(got.X, DefaultCenterX+DefaultRadius) || !approxEqual(got.Y, DefaultCenterY) {
		t.Errorf("n0 = %v, want default frame position", got)
	}
}

func TestRadialFreshMapPerCall(t *testing.T) {
	nodes := mapWith(2)
	first, err := Radial(nodes, DefaultOptions())
	if err != nil {
		t.Fatalf("Radial() error = %v", err)
	}
	first["n0"] = Point{X: -1, Y: -1}

	second, err := Radial(nodes, DefaultOptions())
	if err != nil {
		t.Fatalf("Radial() error = %v", err)
	}
	if second["n0"].X == -1 {
		t.Error("second call observed mutation of the first result")
	}
}

func TestRadialDeterministic(t *testing.T) {
	nodes := mapWith(7)
	a, _ := Radial(nodes, DefaultOptions())
	b, _ := Radial(nodes, DefaultOptions())
	for id, p := range a {
		if b[id] != p {
			t.Errorf("node %s: %v != %v across identical runs", id, p, b[id])
		}
	}
}
