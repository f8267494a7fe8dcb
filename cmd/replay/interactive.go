package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/engine"
	"github.com/wippyai/replica/wire"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateStepping modelState = iota
	stateInspect
)

type replayModel struct {
	eng      *engine.Engine
	filename string
	msgs     []wire.Message
	next     int
	lastErr  error
	input    textinput.Model
	inspect  string
	state    modelState
}

func newReplayModel(filename string, msgs []wire.Message) *replayModel {
	ti := textinput.New()
	ti.Placeholder = "entity id"
	ti.Prompt = "inspect: "
	ti.Width = 20

	return &replayModel{
		eng:      engine.New(engine.Options{}),
		filename: filename,
		msgs:     msgs,
		input:    ti,
	}
}

func (m *replayModel) Init() tea.Cmd {
	return nil
}

func (m *replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateInspect {
		switch key.String() {
		case "ctrl+c":
			m.eng.Close()
			return m, tea.Quit
		case "esc":
			m.state = stateStepping
			m.inspect = ""
			m.input.Blur()
			return m, nil
		case "enter":
			m.inspect = m.renderInspect(m.input.Value())
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		m.eng.Close()
		return m, tea.Quit

	case "enter", " ":
		m.step()

	case "a":
		for m.next < len(m.msgs) {
			m.step()
		}

	case "i":
		m.state = stateInspect
		m.input.SetValue("")
		m.input.Focus()
	}

	return m, nil
}

// step applies the next message, recording its error without stopping.
func (m *replayModel) step() {
	if m.next >= len(m.msgs) {
		return
	}
	m.lastErr = m.eng.Handle(context.Background(), m.msgs[m.next])
	m.next++
	m.eng.Hub().Wait()
}

func (m *replayModel) renderInspect(raw string) string {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return errStyle.Render("not an entity id: " + raw)
	}

	ent, tier, ok := m.eng.Registry().Lookup(replica.EntityID(id))
	if !ok {
		return errStyle.Render(fmt.Sprintf("entity %d not found", id))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d [%s] parent=%d\n",
		tokenStyle.Render(string(ent.Token)), ent.ID, tier, ent.ParentID)
	if ent.Catalog != nil {
		fmt.Fprintf(&b, "functions: %s\n", strings.Join(ent.Catalog.Names(), ", "))
	}
	writeDataTree(&b, ent.Data, 1)
	return b.String()
}

func writeDataTree(b *strings.Builder, data map[string]any, depth int) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(strings.Repeat("  ", depth))
		switch v := data[k].(type) {
		case map[string]any:
			fmt.Fprintf(b, "%s:\n", k)
			writeDataTree(b, v, depth+1)
		default:
			fmt.Fprintf(b, "%s: %v\n", k, v)
		}
	}
}

func (m *replayModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Replay"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, "  %d/%d\n\n", m.next, len(m.msgs))

	if m.state == stateInspect {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.inspect != "" {
			b.WriteString(m.inspect)
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("enter inspect • esc back"))
		return b.String()
	}

	if m.next < len(m.msgs) {
		fmt.Fprintf(&b, "next: %s\n", kindStyle.Render(m.msgs[m.next].Kind().String()))
	} else {
		b.WriteString("log exhausted\n")
	}
	if m.lastErr != nil {
		fmt.Fprintf(&b, "%s\n", errStyle.Render(m.lastErr.Error()))
	}
	b.WriteString("\n")

	b.WriteString(renderTree(m.eng.Registry()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter/space step • a apply all • i inspect • q quit"))
	return b.String()
}

func runInteractive(filename string, msgs []wire.Message) error {
	p := tea.NewProgram(newReplayModel(filename, msgs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
