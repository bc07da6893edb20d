package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

var ErrEmptyDeck = errors.New("deck is empty")

// LoadDeck parses a JSON array of entries. Entries without a type are DUNGEON cards.
func LoadDeck(b []byte) ([]Entry, error) {
	var deck []Entry
	if err := json.Unmarshal(b, &deck); err != nil {
		return nil, fmt.Errorf("parse deck: %w", err)
	}
	if len(deck) == 0 {
		return nil, ErrEmptyDeck
	}
	for i := range deck {
		if deck[i].Type == "" {
			deck[i].Type = room.CardDungeon
		}
		if deck[i].Timer < 0 {
			return nil, fmt.Errorf("deck entry %d: negative timer", i)
		}
	}
	return deck, nil
}

// CardFor renders the deal for one recipient. The drawer gets the alpha view
// and the skip controls; everyone else watches in beta.
func (d Deal) CardFor(p *Player) (room.Card, error) {
	data, err := json.Marshal(d.Entry.Data)
	if err != nil {
		return room.Card{}, fmt.Errorf("encode card data: %w", err)
	}
	c := room.Card{
		Type:     d.Entry.Type,
		Color:    d.Drawer.Color,
		Mode:     room.ModeBeta,
		Data:     data,
		Heading:  d.Entry.Heading,
		Maximize: d.Entry.Maximize,
		Timer:    d.Timer,
	}
	if p != nil && p.ID == d.Drawer.ID {
		c.Mode = room.ModeAlpha
		c.Skip = d.Entry.Skip
		c.ClickSkip = d.Entry.ClickSkip
	}
	return c, nil
}
