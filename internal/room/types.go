package room

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Color string

const (
	ColorRed     Color = "red"
	ColorYellow  Color = "yellow"
	ColorGreen   Color = "green"
	ColorCyan    Color = "cyan"
	ColorBlue    Color = "blue"
	ColorMagenta Color = "magenta"

	// ColorWhite is the ambient color between rounds. Players cannot pick it.
	ColorWhite Color = "white"
)

// Colors lists the player colors in palette order.
var Colors = []Color{ColorRed, ColorYellow, ColorGreen, ColorCyan, ColorBlue, ColorMagenta}

// ParseColor accepts one of the six player colors, case-insensitively.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

func (c Color) Valid() bool {
	for _, v := range Colors {
		if c == v {
			return true
		}
	}
	return false
}

type CardType string

const CardDungeon CardType = "DUNGEON"

type Mode string

const (
	ModeAlpha Mode = "alpha"
	ModeBeta  Mode = "beta"
)

type EndReason string

const (
	ReasonSkip EndReason = "SKIP"
	ReasonTime EndReason = "TIME"
)

// EndTurn is the outbound end-turn payload.
type EndTurn struct {
	Reason EndReason `json:"reason"`
}

type Identity struct {
	Name  string
	Color Color
}

// Round is either Paused or Active. The set is closed.
type Round interface {
	isRound()
}

type Paused struct{}

type Active struct {
	Type  CardType
	Color Color
}

func (Paused) isRound() {}
func (Active) isRound() {}

type Room struct {
	Name  string
	Round Round
}

// Card is the server's description of the next round.
type Card struct {
	Type      CardType        `json:"type"`
	Color     Color           `json:"color"`
	Mode      Mode            `json:"mode"`
	Data      json.RawMessage `json:"data,omitempty"`
	Heading   string          `json:"heading,omitempty"`
	Maximize  bool            `json:"maximize,omitempty"`
	Skip      bool            `json:"skip,omitempty"`
	ClickSkip bool            `json:"clickSkip,omitempty"`
	Timer     int             `json:"timer,omitempty"`
}

// Message is a chat line forwarded from the server.
type Message struct {
	Name string `json:"name"`
	Text string `json:"text"`
}
