// Package console renders room snapshots to a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

var palette = map[room.Color]lipgloss.Color{
	room.ColorRed:     lipgloss.Color("#f85149"),
	room.ColorYellow:  lipgloss.Color("#f0c862"),
	room.ColorGreen:   lipgloss.Color("#3fb950"),
	room.ColorCyan:    lipgloss.Color("#39c5cf"),
	room.ColorBlue:    lipgloss.Color("#58a6ff"),
	room.ColorMagenta: lipgloss.Color("#d2a8ff"),
	room.ColorWhite:   lipgloss.Color("#e6edf3"),
}

var (
	clrSubtle = lipgloss.Color("#8b949e")
	clrBorder = lipgloss.Color("#30363d")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func colorOf(c room.Color) lipgloss.Color {
	if v, ok := palette[c]; ok {
		return v
	}
	return palette[room.ColorWhite]
}

// View implements room.Presenter. It redraws only when the frame changes.
type View struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func NewView(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) Render(s room.Snapshot) {
	frame := Frame(s)
	v.mu.Lock()
	defer v.mu.Unlock()
	if frame == v.last {
		return
	}
	v.last = frame
	fmt.Fprintln(v.out, frame)
}

func (v *View) ShowMessage(name, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "%s %s\n", fg(clrSubtle).Render(name+":"), text)
}

// Hint prints a line outside the frame, e.g. command help.
func (v *View) Hint(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, fg(clrSubtle).Render(text))
}

// Frame lays out the sunburst header, roster, card, toolbar and status.
func Frame(s room.Snapshot) string {
	parts := []string{sunburst(s)}
	if !s.Maximized {
		parts = append(parts, userList(s))
	}
	parts = append(parts, card(s))
	if s.Toolbar != nil {
		if tb := s.Toolbar.String(); tb != "" {
			parts = append(parts, tb)
		}
	}
	if s.StatusVisible {
		parts = append(parts, statusButton(s))
	}
	return strings.Join(parts, "\n")
}

func sunburst(s room.Snapshot) string {
	c := colorOf(s.Color)
	rays := fg(c).Render("\\|/")
	title := lipgloss.NewStyle().Bold(true).Foreground(c).Render("ROOM " + s.Room)
	if !s.Connected {
		title += fg(clrSubtle).Render(" (connecting)")
	}
	return rays + " " + title + " " + rays
}

func userList(s room.Snapshot) string {
	if len(s.Players) == 0 {
		return fg(clrSubtle).Render("no players yet")
	}
	names := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		label := p
		if p == s.Self.Name {
			label = fg(colorOf(s.Self.Color)).Render(p) + " (you)"
		}
		if p == s.CurrentPlayer {
			label = "> " + lipgloss.NewStyle().Bold(true).Render(label)
		}
		names = append(names, label)
	}
	return strings.Join(names, "  ")
}

func card(s room.Snapshot) string {
	lines := make([]string, 0, len(s.Content))
	for _, el := range s.Content {
		text := el.String()
		if text == "" {
			continue
		}
		if _, ok := el.(room.Heading); ok {
			text = lipgloss.NewStyle().Bold(true).Underline(true).Render(text)
		}
		lines = append(lines, text)
	}
	body := strings.Join(lines, "\n")
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorOf(s.Color)).
		Padding(0, 2).
		Width(24)
	if s.Face == room.FaceBack {
		style = style.BorderForeground(clrBorder).Align(lipgloss.Center)
	}
	if s.Maximized {
		style = style.Width(48)
	}
	return style.Render(body)
}

func statusButton(s room.Snapshot) string {
	label := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorOf(s.Self.Color)).
		Render("[ " + s.StatusText + " ]")
	var hints []string
	if s.StatusAction != room.ActionNone {
		hints = append(hints, "s: "+s.StatusAction.String())
	}
	if s.CardAction != room.ActionNone {
		hints = append(hints, "c: "+s.CardAction.String())
	}
	if len(hints) == 0 {
		return label
	}
	return label + " " + fg(clrSubtle).Render(strings.Join(hints, ", "))
}
