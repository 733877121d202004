// Package render turns a composed scene into display artifacts: a native
// SVG renderer and a Graphviz-based node-link export.
package render

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lattelab/reliamap/pkg/encode"
	"github.com/lattelab/reliamap/pkg/errors"
)

// Theme maps color roles to concrete hex values plus the scene chrome.
type Theme struct {
	Name       string `toml:"name"`
	Background string `toml:"background"`
	Edge       string `toml:"edge"`
	Label      string `toml:"label"`
	Primary    string `toml:"primary"`
	Secondary  string `toml:"secondary"`
	Accent     string `toml:"accent"`
	Muted      string `toml:"muted"`
}

// Built-in themes.
var (
	Light = Theme{
		Name:       "light",
		Background: "#ffffff",
		Edge:       "#94a3b8",
		Label:      "#1e293b",
		Primary:    "#4f46e5",
		Secondary:  "#0ea5e9",
		Accent:     "#f59e0b",
		Muted:      "#64748b",
	}

	Dark = Theme{
		Name:       "dark",
		Background: "#0f172a",
		Edge:       "#475569",
		Label:      "#e2e8f0",
		Primary:    "#818cf8",
		Secondary:  "#38bdf8",
		Accent:     "#fbbf24",
		Muted:      "#94a3b8",
	}
)

// ThemeByName resolves a built-in theme by name.
func ThemeByName(name string) (Theme, error) {
	switch name {
	case "", "light":
		return Light, nil
	case "dark":
		return Dark, nil
	default:
		return Theme{}, errors.New(errors.ErrCodeInvalidTheme, "unknown theme %q (valid: light, dark)", name)
	}
}

// LoadTheme reads a theme from a TOML file. Unset fields fall back to the
// light theme so partial overrides stay usable.
func LoadTheme(path string) (Theme, error) {
	t := Light
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, errors.Wrap(errors.ErrCodeInvalidTheme, err, "read theme %s", path)
	}
	if err := toml.Unmarshal(data, &t); err != nil {
		return Theme{}, errors.Wrap(errors.ErrCodeInvalidTheme, err, "parse theme %s", path)
	}
	return t, nil
}

// Color resolves a node color role against the theme.
func (t Theme) Color(role encode.Role) string {
	switch role {
	case encode.RolePrimary:
		return t.Primary
	case encode.RoleSecondary:
		return t.Secondary
	case encode.RoleAccent:
		return t.Accent
	default:
		return t.Muted
	}
}
