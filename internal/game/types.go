package game

import (
	"time"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

type Phase string

const (
	// PhaseWaiting means nobody is in the room.
	PhaseWaiting Phase = "Waiting"
	// PhaseDrawing means the current player has not drawn yet.
	PhaseDrawing Phase = "Drawing"
	// PhaseRound means a card is out.
	PhaseRound Phase = "Round"
)

type Player struct {
	ID       string     `json:"-"`
	Name     string     `json:"name"`
	Color    room.Color `json:"color"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// Entry is one card in the deck.
type Entry struct {
	Type      room.CardType  `json:"type"`
	Heading   string         `json:"heading"`
	Maximize  bool           `json:"maximize"`
	Skip      bool           `json:"skip"`
	ClickSkip bool           `json:"clickSkip"`
	Timer     int            `json:"timer"`
	Data      map[string]any `json:"data"`
}

// Deal is a card drawn by the current player, ready to be sent per recipient.
type Deal struct {
	Drawer *Player
	Entry  Entry
	Timer  int
}

type Turn struct {
	Index     int            `json:"index"`
	Player    string         `json:"player"`
	Card      string         `json:"card,omitempty"`
	Reason    room.EndReason `json:"reason"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   time.Time      `json:"endedAt"`
}
