package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lattelab/reliamap/pkg/interact"
	"github.com/lattelab/reliamap/pkg/relmap"
	"github.com/lattelab/reliamap/pkg/source"
	"github.com/lattelab/reliamap/pkg/view"
)

// viewCommand creates the view command for interactive exploration.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Explore a reliability map interactively",
		Long: `Explore a reliability map in an interactive terminal view.

The view fetches the payload, computes the radial layout, and presents
the nodes with their scores and link health. Selecting a node shows its
full tooltip.

Use --file to explore a local payload instead of fetching.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src view.Source
			if file != "" {
				src = source.FileSource{Path: file}
			} else {
				src = source.NewMapSource(baseURL, apiKeyFromEnv(apiKey))
			}
			return c.runView(cmd.Context(), src)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8000", "base URL of the reliability map API")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or set RELIAMAP_API_KEY)")
	cmd.Flags().StringVar(&file, "file", "", "local payload file instead of fetching")

	return cmd
}

func (c *CLI) runView(ctx context.Context, src view.Source) error {
	v := view.New(view.WithLogger(c.Logger))
	model := newMapModel(ctx, v, src)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// =============================================================================
// MapModel - Interactive reliability map explorer
// =============================================================================

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// loadedMsg carries the view state after a load cycle completes.
type loadedMsg struct {
	state view.State
}

// MapModel is the bubbletea model wrapping a View.
type MapModel struct {
	ctx    context.Context
	view   *view.View
	src    view.Source
	cursor int
	scene  view.Scene
}

// newMapModel creates a model that loads from src on startup.
func newMapModel(ctx context.Context, v *view.View, src view.Source) MapModel {
	return MapModel{ctx: ctx, view: v, src: src}
}

func (m MapModel) Init() tea.Cmd {
	return m.load()
}

// load runs one fetch cycle. The view is only touched from this command
// and from Update after the message lands, so there is no concurrent
// access.
func (m MapModel) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{state: m.view.Load(m.ctx, m.src)}
	}
}

func (m MapModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.cursor = 0
		m.scene = view.Scene{}
		if msg.state == view.StateReady {
			m.scene, _ = m.view.Scene()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.scene.Nodes)-1 {
				m.cursor++
			}
		case "r":
			return m, m.load()
		case "enter":
			if m.cursor < len(m.scene.Nodes) {
				m.view.SelectNode(m.scene.Nodes[m.cursor].Node.ID)
			}
		}
	}
	return m, nil
}

func (m MapModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Reliability Map"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  r reload  q quit"))
	b.WriteString("\n\n")

	switch m.view.State() {
	case view.StateLoading:
		b.WriteString(StyleDim.Render("Loading reliability map..."))
	case view.StateError:
		b.WriteString(styleIconError.Render(iconError) + " " + m.view.Err())
	case view.StateEmpty:
		b.WriteString(StyleDim.Render("No reliability data available"))
	case view.StateReady:
		m.renderNodes(&b)
	}

	b.WriteString("\n")
	return b.String()
}

func (m MapModel) renderNodes(b *strings.Builder) {
	for i, n := range m.scene.Nodes {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		marker := "●"
		if n.Node.IsCenter() {
			marker = "◉"
		}

		line := fmt.Sprintf("%s%s %-24s %-8s %s",
			cursor, marker, n.Node.DisplayLabel(), n.Node.Type,
			interact.PercentOrNA(n.Node.Score))

		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(strings.Repeat("-", 48)))
	b.WriteString("\n")

	if m.cursor < len(m.scene.Nodes) {
		m.renderTooltip(b, m.scene.Nodes[m.cursor])
	}
}

func (m MapModel) renderTooltip(b *strings.Builder, n view.SceneNode) {
	t := n.Tooltip
	b.WriteString("  " + StyleValue.Render(t.Label) + "\n")
	b.WriteString("  " + StyleDim.Render("type:") + " " + t.Type + "\n")
	b.WriteString("  " + StyleDim.Render("score:") + " " + t.Score + "\n")
	b.WriteString("  " + StyleDim.Render("last run:") + " " + t.LastRun + "\n")
	m.renderLinks(b, n.Node)
}

// renderLinks lists the selected node's links with strength and drift.
func (m MapModel) renderLinks(b *strings.Builder, n relmap.Node) {
	payload := m.view.Payload()
	if payload == nil {
		return
	}
	for _, e := range m.scene.Edges {
		if e.Link.Source != n.ID && e.Link.Target != n.ID {
			continue
		}
		t := e.Tooltip
		b.WriteString("  " + StyleDim.Render(iconArrow) + " " +
			fmt.Sprintf("%s %s %s  strength %s  drift %s",
				t.SourceLabel, iconArrow, t.TargetLabel, t.Strength, t.Drift))
		b.WriteString("\n")
	}
}
