// Package dungeon is the DUNGEON card module: an encounter the drawing player
// faces (alpha mode) while everyone else watches (beta mode).
package dungeon

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyEncounter = errors.New("encounter has no title")

// Encounter is the data field of a DUNGEON card.
type Encounter struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Foe   string `json:"foe,omitempty"`
	Gold  int    `json:"gold,omitempty"`
}

type view int

const (
	viewNone view = iota
	viewDrawer
	viewObserver
)

// Module keeps the current encounter between a mode call and Disable.
type Module struct {
	encounter *Encounter
	view      view
}

func New() *Module { return &Module{} }

func (m *Module) AlphaMode(data json.RawMessage) error {
	return m.enable(data, viewDrawer)
}

func (m *Module) BetaMode(data json.RawMessage) error {
	return m.enable(data, viewObserver)
}

func (m *Module) enable(data json.RawMessage, v view) error {
	var e Encounter
	if err := json.Unmarshal(data, &e); err != nil {
		m.encounter, m.view = nil, viewNone
		return fmt.Errorf("decode encounter: %w", err)
	}
	if e.Title == "" {
		m.encounter, m.view = nil, viewNone
		return ErrEmptyEncounter
	}
	m.encounter, m.view = &e, v
	return nil
}

func (m *Module) Disable() {
	m.encounter = nil
	m.view = viewNone
}

// Enabled reports whether an encounter is being shown.
func (m *Module) Enabled() bool { return m.encounter != nil }

func (m *Module) Toolbar() fmt.Stringer { return toolbar{m} }

func (m *Module) Container() fmt.Stringer { return container{m} }

// toolbar and container render lazily so they follow the module state the way
// a mounted element would.
type toolbar struct{ m *Module }

func (t toolbar) String() string {
	switch t.m.view {
	case viewDrawer:
		if t.m.encounter.Foe != "" {
			return "[FIGHT] [FLEE]"
		}
		return "[LOOT]"
	case viewObserver:
		return "watching"
	default:
		return ""
	}
}

type container struct{ m *Module }

func (c container) String() string {
	e := c.m.encounter
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(e.Title))
	if e.Foe != "" {
		fmt.Fprintf(&b, "\nFoe: %s", e.Foe)
	}
	if e.Text != "" {
		b.WriteString("\n")
		b.WriteString(e.Text)
	}
	if e.Gold > 0 && c.m.view == viewDrawer {
		fmt.Fprintf(&b, "\n%d gold", e.Gold)
	}
	return b.String()
}
