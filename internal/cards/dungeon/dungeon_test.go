package dungeon

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

var _ room.CardModule = (*Module)(nil)

func TestAlphaModeShowsDrawerView(t *testing.T) {
	m := New()
	if err := m.AlphaMode(json.RawMessage(`{"title":"Rat King","text":"It squeaks.","foe":"rat","gold":12}`)); err != nil {
		t.Fatalf("alpha mode: %v", err)
	}
	if !m.Enabled() {
		t.Fatal("module should be enabled after alpha mode")
	}
	if got := m.Toolbar().String(); got != "[FIGHT] [FLEE]" {
		t.Fatalf("toolbar = %q, want fight/flee", got)
	}
	body := m.Container().String()
	for _, want := range []string{"RAT KING", "Foe: rat", "It squeaks.", "12 gold"} {
		if !strings.Contains(body, want) {
			t.Fatalf("container %q missing %q", body, want)
		}
	}
}

func TestBetaModeHidesGold(t *testing.T) {
	m := New()
	if err := m.BetaMode(json.RawMessage(`{"title":"Chest","gold":50}`)); err != nil {
		t.Fatalf("beta mode: %v", err)
	}
	if got := m.Toolbar().String(); got != "watching" {
		t.Fatalf("toolbar = %q, want watching", got)
	}
	if strings.Contains(m.Container().String(), "gold") {
		t.Fatal("observers should not see the reward")
	}
}

func TestDisableReleasesEncounter(t *testing.T) {
	m := New()
	container := m.Container()
	if err := m.AlphaMode(json.RawMessage(`{"title":"Chest"}`)); err != nil {
		t.Fatalf("alpha mode: %v", err)
	}
	if container.String() == "" {
		t.Fatal("container should follow module state")
	}
	m.Disable()
	if m.Enabled() {
		t.Fatal("module should be disabled")
	}
	if container.String() != "" || m.Toolbar().String() != "" {
		t.Fatal("disabled module should render nothing")
	}
}

func TestRejectsBadData(t *testing.T) {
	m := New()
	if err := m.AlphaMode(json.RawMessage(`{}`)); !errors.Is(err, ErrEmptyEncounter) {
		t.Fatalf("err = %v, want ErrEmptyEncounter", err)
	}
	if err := m.BetaMode(json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected decode error")
	}
	if m.Enabled() {
		t.Fatal("module should stay disabled on bad data")
	}
}
