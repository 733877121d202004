package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lattelab/reliamap/pkg/relmap"
	"github.com/lattelab/reliamap/pkg/source"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(cfg, nil, nil, quietLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path, apiKey string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if apiKey != "" {
		req.Header.Set(source.APIKeyHeader, apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	resp, body := get(t, srv, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / = %d, want 200", resp.StatusCode)
	}
	var root map[string]string
	json.Unmarshal(body, &root)
	if root["message"] != "Welcome to Reliamap" {
		t.Errorf("root message = %q", root["message"])
	}

	resp, body = get(t, srv, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", resp.StatusCode)
	}
	var health map[string]string
	json.Unmarshal(body, &health)
	if health["status"] != "ok" {
		t.Errorf("health status = %q, want ok", health["status"])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	srv := newTestServer(t, cfg)

	t.Run("MissingKey", func(t *testing.T) {
		resp, body := get(t, srv, "/api/reliability_map", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		var e map[string]string
		json.Unmarshal(body, &e)
		if e["code"] != "UNAUTHORIZED" {
			t.Errorf("code = %q, want UNAUTHORIZED", e["code"])
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		resp, _ := get(t, srv, "/api/reliability_map", "wrong")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("ValidKey", func(t *testing.T) {
		resp, _ := get(t, srv, "/api/reliability_map", "secret")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("HealthStaysPublic", func(t *testing.T) {
		resp, _ := get(t, srv, "/healthz", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func TestReliabilityMapMockMode(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	for _, path := range []string{"/api/reliability_map", "/reliability_map"} {
		resp, body := get(t, srv, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, resp.StatusCode)
		}
		m, err := relmap.UnmarshalMap(body)
		if err != nil {
			t.Fatalf("GET %s returned invalid payload: %v", path, err)
		}
		if _, ok := m.Center(); !ok {
			t.Errorf("GET %s payload has no center node", path)
		}
		if len(m.Links) == 0 {
			t.Errorf("GET %s payload has no links", path)
		}
	}
}

func TestReliabilityMapStoredMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MockMode = false
	store := NewMemoryStore()
	srv := httptest.NewServer(New(cfg, store, nil, quietLogger()).Handler())
	defer srv.Close()

	t.Run("EmptyStore", func(t *testing.T) {
		resp, body := get(t, srv, "/api/reliability_map", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
		var e map[string]string
		json.Unmarshal(body, &e)
		if e["code"] != "SNAPSHOT_NOT_FOUND" {
			t.Errorf("code = %q, want SNAPSHOT_NOT_FOUND", e["code"])
		}
	})

	t.Run("ServesLatest", func(t *testing.T) {
		m := &relmap.Map{Nodes: []relmap.Node{{ID: "agent", Type: relmap.TypeAgent}}}
		store.Save(context.Background(), Snapshot{ID: "snap-1", CreatedAt: time.Now().UTC(), Map: m})

		resp, body := get(t, srv, "/api/reliability_map", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		got, err := relmap.UnmarshalMap(body)
		if err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if len(got.Nodes) != 1 || got.Nodes[0].ID != "agent" {
			t.Errorf("payload = %+v", got)
		}
	})
}

func TestSnapshotEndpoints(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	payload := `{
		"nodes": [
			{"id": "agent", "type": "agent"},
			{"id": "s1", "type": "suite", "score": 0.9}
		],
		"links": [{"source": "agent", "target": "s1", "strength": 0.8, "drift": 0.1}]
	}`

	resp, err := http.Post(srv.URL+"/api/snapshots", "application/json", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/snapshots = %d, want 201: %s", resp.StatusCode, body)
	}
	var created Snapshot
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode created snapshot: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created snapshot has no id")
	}

	t.Run("GetByID", func(t *testing.T) {
		resp, body := get(t, srv, "/api/snapshots/"+created.ID, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var snap Snapshot
		json.Unmarshal(body, &snap)
		if snap.ID != created.ID || len(snap.Map.Nodes) != 2 {
			t.Errorf("snapshot = %+v", snap)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		resp, _ := get(t, srv, "/api/snapshots/no-such-id", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("List", func(t *testing.T) {
		resp, body := get(t, srv, "/api/snapshots", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out struct {
			Snapshots []Snapshot `json:"snapshots"`
		}
		json.Unmarshal(body, &out)
		if len(out.Snapshots) == 0 {
			t.Error("list returned no snapshots")
		}
	})

	t.Run("RejectsInvalidPayload", func(t *testing.T) {
		bad := `{"nodes": [{"id": "x", "type": "starship"}]}`
		resp, err := http.Post(srv.URL+"/api/snapshots", "application/json", bytes.NewReader([]byte(bad)))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestConfigEndpoint(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	resp, body := get(t, srv, "/api/config", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var cfg struct {
		MockMode bool `json:"mock_mode"`
	}
	json.Unmarshal(body, &cfg)
	if !cfg.MockMode {
		t.Error("mock_mode = false, want true")
	}
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator(42)
	m := g.Generate()

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, ok := m.Center(); !ok {
		t.Fatal("no center node")
	}
	if len(m.Nodes) != len(mockTemplates)+1 {
		t.Errorf("len(Nodes) = %d, want %d", len(m.Nodes), len(mockTemplates)+1)
	}
	if len(m.Links) != len(mockTemplates) {
		t.Errorf("len(Links) = %d, want %d", len(m.Links), len(mockTemplates))
	}

	types := map[string]bool{}
	for _, n := range m.Nodes {
		types[n.Type] = true
	}
	for _, want := range []string{relmap.TypeAgent, relmap.TypeSuite, relmap.TypePersona, relmap.TypeMemory} {
		if !types[want] {
			t.Errorf("no node of type %s", want)
		}
	}

	// Every link fans out from the agent with bounded weights.
	for _, l := range m.Links {
		if l.Source != relmap.CenterNodeID {
			t.Errorf("link source = %s, want agent", l.Source)
		}
		if l.Strength < 0 || l.Strength > 1 || l.Drift < 0 || l.Drift > 1 {
			t.Errorf("link %s weights out of range: %+v", l.Target, l)
		}
	}

	if g.RunID() == g.RunID() {
		t.Error("RunID() not unique")
	}
}

func TestMockGeneratorDeterministicSeed(t *testing.T) {
	a := NewMockGenerator(7).Generate()
	b := NewMockGenerator(7).Generate()
	for i := range a.Links {
		if a.Links[i].Strength != b.Links[i].Strength {
			t.Fatalf("link %d strength differs across identical seeds", i)
		}
	}
}

func TestBounded(t *testing.T) {
	if bounded(-0.2) != 0 || bounded(1.7) != 1 || bounded(0.4) != 0.4 {
		t.Error("bounded() clamp incorrect")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Latest(ctx); err != ErrNoSnapshots {
		t.Errorf("Latest() on empty store = %v, want ErrNoSnapshots", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		s.Save(ctx, Snapshot{ID: id, CreatedAt: time.Now().UTC()})
	}

	latest, err := s.Latest(ctx)
	if err != nil || latest.ID != "c" {
		t.Errorf("Latest() = %v, %v, want c", latest, err)
	}

	snap, err := s.Get(ctx, "b")
	if err != nil || snap.ID != "b" {
		t.Errorf("Get(b) = %v, %v", snap, err)
	}
	if _, err := s.Get(ctx, "zzz"); err == nil {
		t.Error("Get(zzz) = nil, want error")
	}

	list, err := s.List(ctx, 2)
	if err != nil || len(list) != 2 || list[0].ID != "c" {
		t.Errorf("List(2) = %v, %v", list, err)
	}
	all, _ := s.List(ctx, 0)
	if len(all) != 3 {
		t.Errorf("List(0) = %d entries, want 3", len(all))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Addr != ":8000" || !cfg.MockMode {
			t.Errorf("defaults = %+v", cfg)
		}
	})

	t.Run("TOMLFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := "addr = \":9000\"\napi_key = \"k\"\nmock_mode = false\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Addr != ":9000" || cfg.APIKey != "k" || cfg.MockMode {
			t.Errorf("config = %+v", cfg)
		}
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("RELIAMAP_ADDR", ":7000")
		t.Setenv("RELIAMAP_MOCK_MODE", "false")
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Addr != ":7000" || cfg.MockMode {
			t.Errorf("env overrides not applied: %+v", cfg)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("LoadConfig() = nil for missing named file")
		}
	})
}
