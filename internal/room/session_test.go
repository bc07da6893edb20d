package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeTask struct {
	at        time.Duration
	every     time.Duration
	fn        func()
	cancelled bool
}

// fakeClock runs scheduled callbacks synchronously as time is advanced.
type fakeClock struct {
	now   time.Duration
	tasks []*fakeTask
}

func (c *fakeClock) After(d time.Duration, fn func()) func() {
	t := &fakeTask{at: c.now + d, fn: fn}
	c.tasks = append(c.tasks, t)
	return func() { t.cancelled = true }
}

func (c *fakeClock) Every(d time.Duration, fn func()) func() {
	t := &fakeTask{at: c.now + d, every: d, fn: fn}
	c.tasks = append(c.tasks, t)
	return func() { t.cancelled = true }
}

func (c *fakeClock) Advance(d time.Duration) {
	end := c.now + d
	for {
		var next *fakeTask
		for _, t := range c.tasks {
			if t.cancelled || t.at > end {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.cancelled = true
		}
		next.fn()
	}
	c.now = end
}

func (c *fakeClock) liveTickers() int {
	n := 0
	for _, t := range c.tasks {
		if t.every > 0 && !t.cancelled {
			n++
		}
	}
	return n
}

type mockModule struct {
	mock.Mock
	name string
}

func newMockModule(name string) *mockModule {
	m := &mockModule{name: name}
	m.On("AlphaMode", mock.Anything).Return(nil)
	m.On("BetaMode", mock.Anything).Return(nil)
	m.On("Disable").Return()
	return m
}

func (m *mockModule) AlphaMode(data json.RawMessage) error { return m.Called(data).Error(0) }
func (m *mockModule) BetaMode(data json.RawMessage) error  { return m.Called(data).Error(0) }
func (m *mockModule) Disable()                             { m.Called() }
func (m *mockModule) Toolbar() fmt.Stringer                { return Text(m.name + " toolbar") }
func (m *mockModule) Container() fmt.Stringer              { return Text(m.name + " container") }

type emitted struct {
	event   string
	payload any
}

type fakeTransport struct {
	handlers map[string]func(json.RawMessage)
	emitted  []emitted
}

func (f *fakeTransport) On(event string, fn func(json.RawMessage)) {
	if f.handlers == nil {
		f.handlers = map[string]func(json.RawMessage){}
	}
	f.handlers[event] = fn
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.emitted = append(f.emitted, emitted{event, payload})
	return nil
}

func (f *fakeTransport) count(event string, payload any) int {
	n := 0
	for _, e := range f.emitted {
		if e.event == event && e.payload == payload {
			n++
		}
	}
	return n
}

type recorder struct {
	snaps    []Snapshot
	messages []Message
}

func (r *recorder) Render(s Snapshot)             { r.snaps = append(r.snaps, s) }
func (r *recorder) ShowMessage(name, text string) { r.messages = append(r.messages, Message{name, text}) }

type harness struct {
	s     *Session
	clock *fakeClock
	mod   *mockModule
	tr    *fakeTransport
	view  *recorder
}

func setupSession(t *testing.T, name string) harness {
	t.Helper()
	h := harness{
		clock: &fakeClock{},
		mod:   newMockModule("dungeon"),
		tr:    &fakeTransport{},
		view:  &recorder{},
	}
	nop := zerolog.Nop()
	s, err := NewSession(Config{
		RoomCode:  "abcd",
		Identity:  Identity{Name: name, Color: ColorRed},
		Registry:  NewRegistry(map[CardType]CardModule{CardDungeon: h.mod}),
		Presenter: h.view,
		Scheduler: h.clock,
		Logger:    &nop,
	})
	require.NoError(t, err)
	s.Attach(h.tr)
	s.handleConnect()
	h.s = s
	return h
}

func dungeonCard(timer int) Card {
	return Card{Type: CardDungeon, Color: ColorBlue, Mode: ModeAlpha, Data: json.RawMessage(`{"title":"rat"}`), Timer: timer}
}

// --- tests ---

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab1! cd", "ab c"},
		{"ABCD", "ABCD"},
		{"  xy  ", "xy"},
		{"a1b2c3d4e5", "abcd"},
		{"ab  cd", "ab"},
		{"1234", ""},
		{"", ""},
		{"éA", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Sanitize(tt.in, RoomCodeLength)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Sanitize(got, RoomCodeLength), "sanitize must be idempotent")
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bob", "BOB"},
		{"BOB1", "BOB"},
		{"R2D2", "RD"},
		{"JOSÉ", "JOS"},
		{"alice the bold one", "ALICE THE BO"},
		{"42", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeName(got))
		})
	}
}

func TestNewSessionRejectsIncompleteIdentity(t *testing.T) {
	for _, code := range []string{"ABCD", "ab1! cd", "", "!!"} {
		_, err := NewSession(Config{RoomCode: code, Identity: Identity{Name: "", Color: ColorRed}})
		assert.ErrorIs(t, err, ErrInvalidSession, "missing name, room %q", code)

		_, err = NewSession(Config{RoomCode: code, Identity: Identity{Name: "ALICE"}})
		assert.ErrorIs(t, err, ErrInvalidSession, "missing color, room %q", code)

		_, err = NewSession(Config{RoomCode: code, Identity: Identity{Name: "ALICE", Color: ColorWhite}})
		assert.ErrorIs(t, err, ErrInvalidSession, "white is not a player color, room %q", code)
	}

	_, err := NewSession(Config{RoomCode: "12", Identity: Identity{Name: "ALICE", Color: ColorRed}})
	assert.ErrorIs(t, err, ErrInvalidSession)

	s, err := NewSession(Config{RoomCode: "ab1! cd", Identity: Identity{Name: "ALICE", Color: ColorRed}})
	require.NoError(t, err)
	assert.Equal(t, "ab c", s.Name())
}

func TestConnectPausesRound(t *testing.T) {
	h := setupSession(t, "ALICE")

	snap := h.s.snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, Paused{}, snap.Round)
	assert.Equal(t, ColorWhite, snap.Color)
	assert.True(t, snap.StatusVisible)
	assert.NotEmpty(t, h.view.snaps)
}

func TestChangePlayerWhilePaused(t *testing.T) {
	h := setupSession(t, "ALICE")

	h.s.handleChangePlayer("BOB")

	snap := h.s.snapshot()
	assert.Equal(t, "BOB", snap.CurrentPlayer)
	assert.Equal(t, "BOB'S TURN", snap.StatusLabel)
	assert.False(t, snap.MyTurn)
	assert.Equal(t, ActionNone, snap.StatusAction)
}

func TestChangePlayerIgnoredWhileActive(t *testing.T) {
	h := setupSession(t, "ALICE")
	h.s.handleChangePlayer("BOB")
	require.NoError(t, h.s.handleCard(dungeonCard(0)))

	h.s.handleChangePlayer("CAROL")

	snap := h.s.snapshot()
	assert.Equal(t, "BOB", snap.CurrentPlayer)
	assert.Equal(t, Active{Type: CardDungeon, Color: ColorBlue}, snap.Round)
	h.mod.AssertNotCalled(t, "Disable")
}

func TestMyTurnDrawsOnce(t *testing.T) {
	h := setupSession(t, "ALICE")
	h.s.handleChangePlayer("ALICE")

	snap := h.s.snapshot()
	assert.True(t, snap.MyTurn)
	assert.Equal(t, "DRAW A CARD", snap.StatusLabel)
	assert.Equal(t, ActionDraw, snap.StatusAction)
	assert.Equal(t, ActionDraw, snap.CardAction)
	assert.Equal(t, FaceBack, snap.Face)
	assert.Equal(t, []fmt.Stringer{Text("CARD")}, snap.Content)

	h.s.clickCard()
	h.s.clickStatus()
	h.s.clickCard()

	assert.Equal(t, 1, h.tr.count(EventRequestCard, nil))
	snap = h.s.snapshot()
	assert.Equal(t, ActionNone, snap.StatusAction)
	assert.Equal(t, ActionNone, snap.CardAction)
}

func TestCardReceivedStartsRound(t *testing.T) {
	h := setupSession(t, "ALICE")

	require.NoError(t, h.s.handleCard(dungeonCard(3)))

	snap := h.s.snapshot()
	assert.Equal(t, Active{Type: CardDungeon, Color: ColorBlue}, snap.Round)
	assert.Equal(t, ColorBlue, snap.Color)
	assert.True(t, snap.TimerLive)
	assert.Equal(t, 3, snap.Remaining)
	assert.Equal(t, FaceFront, snap.Face)
	assert.Equal(t, Text("dungeon toolbar"), snap.Toolbar)
	assert.Equal(t, []fmt.Stringer{Text("dungeon container")}, snap.Content)
	h.mod.AssertNumberOfCalls(t, "AlphaMode", 1)
	h.mod.AssertNotCalled(t, "BetaMode", mock.Anything)
}

func TestCardLayout(t *testing.T) {
	h := setupSession(t, "ALICE")
	card := dungeonCard(0)
	card.Mode = ModeBeta
	card.Heading = "A RAT"
	card.Maximize = true

	require.NoError(t, h.s.handleCard(card))

	snap := h.s.snapshot()
	assert.True(t, snap.Maximized)
	assert.Equal(t, []fmt.Stringer{Heading("A RAT"), Text("dungeon container")}, snap.Content)
	assert.False(t, snap.TimerLive)
	h.mod.AssertNumberOfCalls(t, "BetaMode", 1)

	h.s.handleEndTurn()
	assert.False(t, h.s.snapshot().Maximized)
}

func TestUnknownModeIsIgnored(t *testing.T) {
	h := setupSession(t, "ALICE")
	card := dungeonCard(0)
	card.Mode = "gamma"

	require.NoError(t, h.s.handleCard(card))

	assert.Equal(t, Active{Type: CardDungeon, Color: ColorBlue}, h.s.snapshot().Round)
	h.mod.AssertNotCalled(t, "AlphaMode", mock.Anything)
	h.mod.AssertNotCalled(t, "BetaMode", mock.Anything)
}

func TestUnsupportedCardFailsLoudly(t *testing.T) {
	h := setupSession(t, "ALICE")
	var faults []error
	h.s.onFault = func(err error) { faults = append(faults, err) }

	err := h.s.handleCard(Card{Type: "GOBLIN", Color: ColorGreen, Mode: ModeAlpha, Timer: 5})

	require.ErrorIs(t, err, ErrUnsupportedCard)
	require.Len(t, faults, 1)
	snap := h.s.snapshot()
	assert.Equal(t, Paused{}, snap.Round)
	assert.False(t, snap.TimerLive)
	assert.Equal(t, ColorWhite, snap.Color)
	assert.Equal(t, "UNSUPPORTED CARD GOBLIN", snap.StatusLabel)
}

func TestNewCardReplacesTimer(t *testing.T) {
	h := setupSession(t, "ALICE")
	require.NoError(t, h.s.handleCard(dungeonCard(5)))

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 3, h.s.snapshot().Remaining)

	require.NoError(t, h.s.handleCard(dungeonCard(10)))
	assert.Equal(t, 10, h.s.snapshot().Remaining)
	assert.Equal(t, 1, h.clock.liveTickers())

	h.clock.Advance(time.Second)
	assert.Equal(t, 9, h.s.snapshot().Remaining)
	assert.Equal(t, 1, h.clock.liveTickers())
}

func TestCardWhileActiveDisablesPrevious(t *testing.T) {
	h := setupSession(t, "ALICE")
	require.NoError(t, h.s.handleCard(dungeonCard(0)))
	require.NoError(t, h.s.handleCard(dungeonCard(0)))

	h.mod.AssertNumberOfCalls(t, "Disable", 1)
	h.mod.AssertNumberOfCalls(t, "AlphaMode", 2)
}

func TestEndRoundIsIdempotent(t *testing.T) {
	h := setupSession(t, "ALICE")
	h.s.handleChangePlayer("BOB")
	card := dungeonCard(5)
	card.Maximize = true
	require.NoError(t, h.s.handleCard(card))

	h.s.handleEndTurn()
	once := h.s.snapshot()
	h.s.endRound()
	twice := h.s.snapshot()

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second end round changed state (-once +twice):\n%s", diff)
	}
	assert.Equal(t, Paused{}, twice.Round)
	assert.Equal(t, "BOB'S TURN", twice.StatusLabel)
	assert.Equal(t, 0, h.clock.liveTickers())
	h.mod.AssertNumberOfCalls(t, "Disable", 1)
}

func TestTimerExpiresOnce(t *testing.T) {
	h := setupSession(t, "ALICE")
	h.s.handleChangePlayer("ALICE")
	h.s.clickStatus()
	require.NoError(t, h.s.handleCard(dungeonCard(3)))

	h.clock.Advance(time.Second)
	assert.Equal(t, "ALICE'S TURN (2)", h.s.snapshot().StatusText)

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 0, h.s.snapshot().Remaining)
	assert.Equal(t, 0, h.tr.count(EventEndTurn, EndTurn{Reason: ReasonTime}))

	h.clock.Advance(10 * time.Second)

	assert.Equal(t, 1, h.tr.count(EventEndTurn, EndTurn{Reason: ReasonTime}))
	h.mod.AssertNumberOfCalls(t, "Disable", 1)
	snap := h.s.snapshot()
	assert.Equal(t, Paused{}, snap.Round)
	assert.False(t, snap.TimerLive)
}

func TestSkipWiredAfterGraceDelay(t *testing.T) {
	h := setupSession(t, "ALICE")
	card := dungeonCard(0)
	card.Skip = true

	require.NoError(t, h.s.handleCard(card))
	assert.Equal(t, "SKIP TURN", h.s.snapshot().StatusLabel)

	h.s.clickStatus()
	assert.Empty(t, h.tr.emitted, "click inside the grace delay must not skip")

	h.clock.Advance(GraceDelay)
	assert.Equal(t, ActionSkip, h.s.snapshot().StatusAction)

	h.s.clickStatus()
	h.s.clickStatus()

	assert.Equal(t, 1, h.tr.count(EventEndTurn, EndTurn{Reason: ReasonSkip}))
	assert.Equal(t, Paused{}, h.s.snapshot().Round)
	h.mod.AssertNumberOfCalls(t, "Disable", 1)
}

func TestClickSkipOnCard(t *testing.T) {
	h := setupSession(t, "ALICE")
	card := dungeonCard(0)
	card.ClickSkip = true
	require.NoError(t, h.s.handleCard(card))

	h.clock.Advance(GraceDelay)
	h.s.clickCard()

	assert.Equal(t, 1, h.tr.count(EventEndTurn, EndTurn{Reason: ReasonSkip}))
	assert.Equal(t, Paused{}, h.s.snapshot().Round)
}

func TestStaleGraceCallbackIsNoop(t *testing.T) {
	h := setupSession(t, "ALICE")
	first := dungeonCard(0)
	first.ClickSkip = true
	first.Skip = true
	require.NoError(t, h.s.handleCard(first))

	// Server ends the round and deals a plain card before the grace delay runs out.
	h.s.handleEndTurn()
	require.NoError(t, h.s.handleCard(dungeonCard(0)))
	h.clock.Advance(GraceDelay)

	snap := h.s.snapshot()
	assert.Equal(t, ActionNone, snap.CardAction)
	assert.Equal(t, ActionNone, snap.StatusAction)

	h.s.clickCard()
	h.s.clickStatus()
	assert.Empty(t, h.tr.emitted)
	assert.Equal(t, Active{Type: CardDungeon, Color: ColorBlue}, h.s.snapshot().Round)
}

func TestEventsBeforeConnect(t *testing.T) {
	nop := zerolog.Nop()
	view := &recorder{}
	s, err := NewSession(Config{RoomCode: "ABCD", Identity: Identity{Name: "ALICE", Color: ColorCyan}, Presenter: view, Scheduler: &fakeClock{}, Logger: &nop})
	require.NoError(t, err)

	s.handleMessage(Message{Name: "BOB", Text: "hi"})
	require.NoError(t, s.handleCard(dungeonCard(3)))

	assert.Empty(t, view.messages)
	assert.Equal(t, Paused{}, s.snapshot().Round)

	s.handleConnect()
	s.handleMessage(Message{Name: "BOB", Text: "hi"})
	assert.Equal(t, []Message{{Name: "BOB", Text: "hi"}}, view.messages)
}

func TestAttachDecodesEvents(t *testing.T) {
	h := setupSession(t, "ALICE")
	drain := func() {
		for len(h.s.inbox) > 0 {
			(<-h.s.inbox)()
		}
	}

	h.tr.handlers[EventQueueUpdated](json.RawMessage(`["ALICE","BOB"]`))
	h.tr.handlers[EventChangePlayer](json.RawMessage(`"BOB"`))
	h.tr.handlers[EventCard](json.RawMessage(`{"type":"DUNGEON","color":"green","mode":"alpha","data":{},"timer":2}`))
	h.tr.handlers[EventCard](json.RawMessage(`{not json`))
	drain()

	snap := h.s.snapshot()
	assert.Equal(t, []string{"ALICE", "BOB"}, snap.Players)
	assert.Equal(t, "BOB", snap.CurrentPlayer)
	assert.Equal(t, Active{Type: CardDungeon, Color: ColorGreen}, snap.Round)
	assert.Equal(t, 2, snap.Remaining)

	h.tr.handlers[EventEndTurn](nil)
	drain()
	assert.Equal(t, Paused{}, h.s.snapshot().Round)
}

func TestRegistryLookup(t *testing.T) {
	mod := newMockModule("dungeon")
	r := NewRegistry(map[CardType]CardModule{CardDungeon: mod})

	got, err := r.Lookup(CardDungeon)
	require.NoError(t, err)
	assert.Same(t, mod, got)

	_, err = r.Lookup("NOPE")
	assert.True(t, errors.Is(err, ErrUnsupportedCard))
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor(" Magenta ")
	require.NoError(t, err)
	assert.Equal(t, ColorMagenta, c)

	_, err = ParseColor("white")
	assert.ErrorIs(t, err, ErrInvalidColor)
}
