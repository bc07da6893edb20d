package room

import "fmt"

// Action is what a click on the status control or the card does right now.
type Action int

const (
	ActionNone Action = iota
	ActionDraw
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionDraw:
		return "draw"
	case ActionSkip:
		return "skip"
	default:
		return "none"
	}
}

type Face int

const (
	FaceBack Face = iota
	FaceFront
)

// Text is a plain text element, used for the card back and headings.
type Text string

func (t Text) String() string { return string(t) }

// Heading marks a card heading so views can style it.
type Heading string

func (h Heading) String() string { return string(h) }

// Snapshot is the view state the session hands to its Presenter after every
// transition. Presenters must not keep references to Content past Render.
type Snapshot struct {
	Room          string
	Self          Identity
	Connected     bool
	Players       []string
	CurrentPlayer string
	MyTurn        bool

	Color     Color
	Round     Round
	Maximized bool

	Face    Face
	Content []fmt.Stringer
	Toolbar fmt.Stringer

	StatusLabel   string
	StatusText    string
	StatusVisible bool
	StatusAction  Action
	CardAction    Action

	TimerLive bool
	Remaining int
}

// Presenter renders session state. Render and ShowMessage run on the session
// goroutine.
type Presenter interface {
	Render(s Snapshot)
	ShowMessage(name, text string)
}

type nopPresenter struct{}

func (nopPresenter) Render(Snapshot)             {}
func (nopPresenter) ShowMessage(string, string) {}
