package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrUnsupportedCard = errors.New("unsupported card type")
	ErrInvalidColor    = errors.New("invalid color")
)

const (
	RoomCodeLength = 4

	// GraceDelay keeps a click aimed at the previous card from skipping a
	// round that just started.
	GraceDelay   = 500 * time.Millisecond
	TickInterval = time.Second

	inboxSize = 256
)

// Event names on the wire.
const (
	EventConnect      = "connect"
	EventQueueUpdated = "queue-updated"
	EventChangePlayer = "change-player"
	EventMessage      = "message"
	EventEndTurn      = "end-turn"
	EventCard         = "card"
	EventRequestCard  = "request-card"
)

// Transport is the event channel to the server. Emit must be safe to call from
// the session goroutine while handlers are being delivered.
type Transport interface {
	On(event string, fn func(payload json.RawMessage))
	Emit(event string, payload any) error
}

type Config struct {
	RoomCode  string
	Identity  Identity
	Registry  *Registry
	Presenter Presenter
	// Scheduler defaults to real timers feeding the session loop.
	Scheduler Scheduler
	Logger    *zerolog.Logger
	// OnFault is told about faults that stop a round from starting.
	OnFault func(error)
}

type roundTimer struct {
	id        uint64
	remaining int
	cancel    func()
}

// Session is the client side of one room. All state is owned by the goroutine
// running Run; everything else talks to it through post.
type Session struct {
	room      Room
	self      Identity
	current   string
	players   []string
	registry  *Registry
	transport Transport
	view      Presenter
	sched     Scheduler
	log       zerolog.Logger
	onFault   func(error)

	connected bool
	epoch     uint64
	timer     *roundTimer
	timerSeq  uint64

	color         Color
	maximized     bool
	face          Face
	content       []fmt.Stringer
	toolbar       fmt.Stringer
	statusLabel   string
	statusText    string
	statusVisible bool
	statusAction  Action
	cardAction    Action

	inbox chan func()
	done  chan struct{}
}

// NewSession validates the room code and identity. It fails with
// ErrInvalidSession when the session must not connect.
func NewSession(cfg Config) (*Session, error) {
	name := Sanitize(cfg.RoomCode, RoomCodeLength)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: room code %q", ErrInvalidSession, cfg.RoomCode)
	case cfg.Identity.Name == "":
		return nil, fmt.Errorf("%w: missing player name", ErrInvalidSession)
	case !cfg.Identity.Color.Valid():
		return nil, fmt.Errorf("%w: color %q", ErrInvalidSession, cfg.Identity.Color)
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	s := &Session{
		room:     Room{Name: name, Round: Paused{}},
		self:     cfg.Identity,
		registry: cfg.Registry,
		view:     cfg.Presenter,
		sched:    cfg.Scheduler,
		onFault:  cfg.OnFault,
		log:      logger.With().Str("room", name).Str("player", cfg.Identity.Name).Logger(),
		color:    ColorWhite,
		face:     FaceBack,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
	}
	if s.registry == nil {
		s.registry = NewRegistry(nil)
	}
	if s.view == nil {
		s.view = nopPresenter{}
	}
	if s.sched == nil {
		s.sched = loopScheduler{post: s.post}
	}
	s.setStatus(s.turnLabel())
	s.statusVisible = true
	return s, nil
}

func (s *Session) Name() string       { return s.room.Name }
func (s *Session) Identity() Identity { return s.self }

// Attach subscribes the session to the transport's events and uses it for
// outbound events. Call it before the transport starts delivering.
func (s *Session) Attach(t Transport) {
	s.transport = t

	t.On(EventConnect, func(json.RawMessage) { s.post(s.handleConnect) })
	t.On(EventQueueUpdated, func(p json.RawMessage) {
		var players []string
		if !s.decode(EventQueueUpdated, p, &players) {
			return
		}
		s.post(func() { s.handleQueueUpdated(players) })
	})
	t.On(EventChangePlayer, func(p json.RawMessage) {
		var name string
		if !s.decode(EventChangePlayer, p, &name) {
			return
		}
		s.post(func() { s.handleChangePlayer(name) })
	})
	t.On(EventMessage, func(p json.RawMessage) {
		var msg Message
		if !s.decode(EventMessage, p, &msg) {
			return
		}
		s.post(func() { s.handleMessage(msg) })
	})
	t.On(EventEndTurn, func(json.RawMessage) { s.post(s.handleEndTurn) })
	t.On(EventCard, func(p json.RawMessage) {
		var card Card
		if !s.decode(EventCard, p, &card) {
			return
		}
		s.post(func() { _ = s.handleCard(card) })
	})
}

// Run processes events until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ctx.Done():
			s.stopTimer()
			return ctx.Err()
		}
	}
}

// ClickStatus is a click on the status control.
func (s *Session) ClickStatus() { s.post(s.clickStatus) }

// ClickCard is a click on the card's primary region.
func (s *Session) ClickCard() { s.post(s.clickCard) }

func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

func (s *Session) decode(event string, p json.RawMessage, v any) bool {
	if err := json.Unmarshal(p, v); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("dropping malformed event")
		return false
	}
	return true
}

func (s *Session) handleConnect() {
	if s.connected {
		s.log.Info().Msg("connect received again")
		s.endRound()
		s.render()
		return
	}
	s.connected = true
	s.log.Info().Msg("entered room")
	s.endRound()
	s.render()
}

func (s *Session) handleQueueUpdated(players []string) {
	s.log.Debug().Strs("players", players).Msg("queue-updated")
	s.players = append([]string(nil), players...)
	s.render()
}

func (s *Session) handleChangePlayer(name string) {
	s.log.Debug().Str("current", name).Msg("change-player")
	if _, active := s.room.Round.(Active); active {
		s.log.Debug().Str("current", name).Msg("can't change player while round in progress")
		return
	}
	s.current = name
	s.endRound()
	if name == s.self.Name {
		s.setMyTurn()
	}
	s.render()
}

func (s *Session) handleMessage(msg Message) {
	if !s.connected {
		s.log.Debug().Msg("message before connect dropped")
		return
	}
	s.view.ShowMessage(msg.Name, msg.Text)
}

func (s *Session) handleEndTurn() {
	if !s.connected {
		s.log.Debug().Msg("end-turn before connect dropped")
		return
	}
	s.endRound()
	s.render()
}

func (s *Session) handleCard(card Card) error {
	if !s.connected {
		s.log.Debug().Str("type", string(card.Type)).Msg("card before connect dropped")
		return nil
	}
	s.log.Info().Str("type", string(card.Type)).Str("mode", string(card.Mode)).Int("timer", card.Timer).Msg("received card")

	mod, err := s.registry.Lookup(card.Type)
	if err != nil {
		s.log.Error().Err(err).Msg("server requested a card this client cannot show")
		s.setStatus(fmt.Sprintf("UNSUPPORTED CARD %s", card.Type))
		s.statusVisible = true
		s.render()
		if s.onFault != nil {
			s.onFault(err)
		}
		return err
	}

	// A card while a round is live replaces it: release the old module first.
	if prev, ok := s.room.Round.(Active); ok {
		s.disable(prev.Type)
	}
	s.stopTimer()

	s.color = card.Color
	s.room.Round = Active{Type: card.Type, Color: card.Color}
	s.epoch++
	epoch := s.epoch
	s.statusAction, s.cardAction = ActionNone, ActionNone

	switch card.Mode {
	case ModeAlpha:
		err = mod.AlphaMode(card.Data)
	case ModeBeta:
		err = mod.BetaMode(card.Data)
	default:
		s.log.Debug().Str("mode", string(card.Mode)).Msg("ignoring unknown card mode")
	}
	if err != nil {
		s.log.Warn().Err(err).Str("mode", string(card.Mode)).Msg("card module rejected data")
	}

	s.toolbar = mod.Toolbar()
	s.face = FaceFront
	s.content = nil
	if card.Heading != "" {
		s.content = append(s.content, Heading(card.Heading))
	}
	s.content = append(s.content, mod.Container())

	if card.Maximize {
		s.maximized = true
	}
	if card.Skip {
		s.setStatus("SKIP TURN")
		s.sched.After(GraceDelay, func() { s.wireSkip(epoch, &s.statusAction) })
	} else {
		s.setStatus(s.turnLabel())
	}
	if card.ClickSkip {
		s.sched.After(GraceDelay, func() { s.wireSkip(epoch, &s.cardAction) })
	}
	if card.Timer > 0 {
		s.startTimer(card.Timer)
	}
	s.render()
	return nil
}

func (s *Session) wireSkip(epoch uint64, target *Action) {
	if epoch != s.epoch {
		s.log.Debug().Uint64("epoch", epoch).Uint64("current", s.epoch).Msg("stale skip wiring ignored")
		return
	}
	*target = ActionSkip
	s.render()
}

func (s *Session) clickStatus() {
	s.act(s.statusAction, "status")
}

func (s *Session) clickCard() {
	s.act(s.cardAction, "card")
}

func (s *Session) act(a Action, source string) {
	switch a {
	case ActionDraw:
		s.requestCard()
	case ActionSkip:
		s.emit(EventEndTurn, EndTurn{Reason: ReasonSkip})
		s.endRound()
	default:
		s.log.Debug().Str("source", source).Msg("click ignored")
		return
	}
	s.render()
}

func (s *Session) requestCard() {
	s.emit(EventRequestCard, nil)
	s.statusAction, s.cardAction = ActionNone, ActionNone
}

func (s *Session) setMyTurn() {
	s.log.Info().Msg("my turn")
	s.stopTimer()
	s.setStatus("DRAW A CARD")
	s.statusAction = ActionDraw
	s.face = FaceBack
	s.content = []fmt.Stringer{Text("CARD")}
	s.cardAction = ActionDraw
}

// endRound is safe to call any number of times.
func (s *Session) endRound() {
	if a, ok := s.room.Round.(Active); ok {
		s.disable(a.Type)
		s.room.Round = Paused{}
	}
	s.stopTimer()
	s.epoch++
	s.statusAction, s.cardAction = ActionNone, ActionNone
	s.maximized = false
	s.setStatus(s.turnLabel())
	s.statusVisible = true
}

func (s *Session) disable(t CardType) {
	mod, err := s.registry.Lookup(t)
	if err != nil {
		return
	}
	mod.Disable()
}

func (s *Session) startTimer(seconds int) {
	s.stopTimer()
	s.statusVisible = true
	s.timerSeq++
	t := &roundTimer{id: s.timerSeq, remaining: seconds}
	t.cancel = s.sched.Every(TickInterval, func() { s.tick(t.id) })
	s.timer = t
}

func (s *Session) stopTimer() {
	if s.timer == nil {
		return
	}
	s.timer.cancel()
	s.timer = nil
}

func (s *Session) tick(id uint64) {
	if s.timer == nil || s.timer.id != id {
		return
	}
	if s.timer.remaining > 0 {
		s.timer.remaining--
		s.statusText = fmt.Sprintf("%s (%d)", s.statusLabel, s.timer.remaining)
		s.render()
		return
	}
	s.log.Info().Msg("round timed out")
	s.emit(EventEndTurn, EndTurn{Reason: ReasonTime})
	s.endRound()
	s.render()
}

func (s *Session) emit(event string, payload any) {
	if s.transport == nil {
		s.log.Warn().Str("event", event).Msg("no transport attached")
		return
	}
	if err := s.transport.Emit(event, payload); err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("emit failed")
	}
}

func (s *Session) setStatus(label string) {
	s.statusLabel = label
	s.statusText = label
}

func (s *Session) turnLabel() string {
	if s.current == "" {
		return "WAITING FOR PLAYERS"
	}
	return s.current + "'S TURN"
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Room:          s.room.Name,
		Self:          s.self,
		Connected:     s.connected,
		Players:       append([]string(nil), s.players...),
		CurrentPlayer: s.current,
		MyTurn:        s.current != "" && s.current == s.self.Name,
		Color:         s.color,
		Round:         s.room.Round,
		Maximized:     s.maximized,
		Face:          s.face,
		Content:       append([]fmt.Stringer(nil), s.content...),
		Toolbar:       s.toolbar,
		StatusLabel:   s.statusLabel,
		StatusText:    s.statusText,
		StatusVisible: s.statusVisible,
		StatusAction:  s.statusAction,
		CardAction:    s.cardAction,
	}
	if s.timer != nil {
		snap.TimerLive = true
		snap.Remaining = s.timer.remaining
	}
	return snap
}

func (s *Session) render() {
	s.view.Render(s.snapshot())
}
