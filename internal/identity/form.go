package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

var ErrIncompleteForm = errors.New("name and color are required")

const (
	RoomInputLength = 4
	NameInputLength = room.NameLength
)

// Join is what the join screen hands to the room session.
type Join struct {
	Room     string
	Identity room.Identity
}

// Form is the join screen state. Inputs are capped like the web inputs'
// maxlength; submission uppercases and persists them.
type Form struct {
	Room  string
	Name  string
	Color room.Color

	store *Store
}

// LoadForm prefills the form from the last join. Unreadable or invalid stored
// values leave their field empty.
func LoadForm(store *Store) (*Form, error) {
	f := &Form{store: store}
	var errs []error
	if v, err := store.Get(KeyRoom); err != nil {
		errs = append(errs, err)
	} else {
		f.SetRoom(v)
	}
	if v, err := store.Get(KeyName); err != nil {
		errs = append(errs, err)
	} else {
		f.SetName(v)
	}
	if v, err := store.Get(KeyColor); err != nil {
		errs = append(errs, err)
	} else if v != "" {
		_ = f.SelectColor(v)
	}
	return f, errors.Join(errs...)
}

func (f *Form) SetRoom(v string) { f.Room = truncate(v, RoomInputLength) }
func (f *Form) SetName(v string) { f.Name = truncate(v, NameInputLength) }

// SelectColor picks one of the six palette colors.
func (f *Form) SelectColor(v string) error {
	c, err := room.ParseColor(v)
	if err != nil {
		return err
	}
	f.Color = c
	return nil
}

func (f *Form) CanSubmit() bool {
	return room.NormalizeName(f.Name) != "" && f.Color.Valid()
}

// Submit persists the values for the next join and returns them.
func (f *Form) Submit() (Join, error) {
	if !f.CanSubmit() {
		return Join{}, ErrIncompleteForm
	}
	j := Join{
		Room:     strings.ToUpper(f.Room),
		Identity: room.Identity{Name: room.NormalizeName(f.Name), Color: f.Color},
	}
	for _, kv := range [][2]string{
		{KeyRoom, j.Room},
		{KeyName, j.Identity.Name},
		{KeyColor, string(j.Identity.Color)},
	} {
		if err := f.store.Set(kv[0], kv[1], DefaultTTL); err != nil {
			return j, fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	return j, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
