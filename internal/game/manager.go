package game

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexagon-games/dungeongreed/internal/room"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrNameTaken       = errors.New("name already taken in room")
	ErrInvalidJoin     = errors.New("room code and name are required")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrRoundInProgress = errors.New("round already in progress")
	ErrNoRound         = errors.New("no card is out")
)

// ReasonLeft ends a turn whose player disconnected.
const ReasonLeft room.EndReason = "LEFT"

// RoomCtx is one room's queue and turn state.
type RoomCtx struct {
	Code      string
	CreatedAt time.Time

	players []*Player
	current int // index into players, -1 when empty
	phase   Phase
	deal    *Deal
	started time.Time

	turns []*Turn
	order []int // shuffled deck positions
	next  int

	deck      []Entry
	cardTimer int
	now       func() time.Time

	mu sync.Mutex
}

type RoomManager struct {
	mu        sync.RWMutex
	rooms     map[string]*RoomCtx
	deck      []Entry
	cardTimer int
	now       func() time.Time
}

// NewRoomManager deals from deck. cardTimer is used for entries without a
// timer of their own; zero means untimed.
func NewRoomManager(deck []Entry, cardTimer int) *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]*RoomCtx),
		deck:      deck,
		cardTimer: cardTimer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCode applies the client's room-code rules.
func NormalizeCode(code string) string {
	return strings.ToUpper(room.Sanitize(code, room.RoomCodeLength))
}

// Join adds a player to the room, creating the room on first join. The
// first player in an empty room becomes the current player.
func (rm *RoomManager) Join(code, name string, color room.Color) (*RoomCtx, *Player, error) {
	code = NormalizeCode(code)
	name = room.NormalizeName(name)
	if code == "" || name == "" {
		return nil, nil, ErrInvalidJoin
	}
	if !color.Valid() {
		return nil, nil, room.ErrInvalidColor
	}

	rm.mu.Lock()
	r := rm.rooms[code]
	if r == nil {
		r = &RoomCtx{
			Code:      code,
			CreatedAt: rm.now(),
			current:   -1,
			phase:     PhaseWaiting,
			deck:      rm.deck,
			cardTimer: rm.cardTimer,
			now:       rm.now,
		}
		rm.rooms[code] = r
	}
	rm.mu.Unlock()

	p, err := r.join(name, color)
	if err != nil {
		return nil, nil, err
	}
	return r, p, nil
}

func (rm *RoomManager) Get(code string) (*RoomCtx, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r := rm.rooms[NormalizeCode(code)]
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove drops the room if it has no players left.
func (rm *RoomManager) Remove(code string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	r := rm.rooms[code]
	if r == nil || r.Size() > 0 {
		return false
	}
	delete(rm.rooms, code)
	return true
}

func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

func (r *RoomCtx) join(name string, color room.Color) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.Name == name {
			return nil, ErrNameTaken
		}
	}
	p := &Player{ID: uuid.NewString(), Name: name, Color: color, JoinedAt: r.now()}
	r.players = append(r.players, p)
	if r.current < 0 {
		r.current = 0
		r.beginTurn()
	}
	return p, nil
}

// Leave removes the player. When the player held the turn, the turn is
// recorded as ended and the next player in queue order takes over.
func (r *RoomCtx) Leave(playerID string) (ended *Turn, next *Player, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ix := r.indexOf(playerID)
	if ix < 0 {
		return nil, nil, ErrUnknownPlayer
	}
	wasCurrent := ix == r.current
	if wasCurrent {
		ended = r.finishTurn(ReasonLeft)
	}
	r.players = append(r.players[:ix], r.players[ix+1:]...)

	switch {
	case len(r.players) == 0:
		r.current = -1
		r.phase = PhaseWaiting
		return ended, nil, nil
	case ix < r.current:
		r.current--
	case wasCurrent:
		// the player after the leaver slid into ix
		r.current = ix % len(r.players)
		r.beginTurn()
	}
	return ended, r.players[r.current], nil
}

// RequestCard deals the next card to the current player.
func (r *RoomCtx) RequestCard(playerID string) (Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkTurn(playerID); err != nil {
		return Deal{}, err
	}
	if r.phase == PhaseRound {
		return Deal{}, ErrRoundInProgress
	}
	if len(r.deck) == 0 {
		return Deal{}, ErrEmptyDeck
	}
	e := r.deck[r.draw()]
	timer := e.Timer
	if timer == 0 {
		timer = r.cardTimer
	}
	d := Deal{Drawer: r.players[r.current], Entry: e, Timer: timer}
	r.deal = &d
	r.phase = PhaseRound
	return d, nil
}

// EndTurn ends the current player's round and passes the turn on. A turn
// whose player has not drawn yet cannot be ended, so a late end-turn for the
// previous round does not skip the next player.
func (r *RoomCtx) EndTurn(playerID string, reason room.EndReason) (*Turn, *Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkTurn(playerID); err != nil {
		return nil, nil, err
	}
	if r.phase != PhaseRound {
		return nil, nil, ErrNoRound
	}
	t := r.finishTurn(reason)
	r.current = (r.current + 1) % len(r.players)
	r.beginTurn()
	return t, r.players[r.current], nil
}

// Queue returns player names in turn order.
func (r *RoomCtx) Queue() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Name)
	}
	return out
}

// Players returns copies of the players in turn order.
func (r *RoomCtx) Players() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (r *RoomCtx) Player(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ix := r.indexOf(id); ix >= 0 {
		return r.players[ix]
	}
	return nil
}

// Current returns the player whose turn it is, or nil.
func (r *RoomCtx) Current() *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < 0 {
		return nil
	}
	return r.players[r.current]
}

func (r *RoomCtx) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *RoomCtx) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Turns returns the finished turns, oldest first.
func (r *RoomCtx) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Turn, 0, len(r.turns))
	for _, t := range r.turns {
		out = append(out, *t)
	}
	return out
}

func (r *RoomCtx) checkTurn(playerID string) error {
	ix := r.indexOf(playerID)
	if ix < 0 {
		return ErrUnknownPlayer
	}
	if ix != r.current {
		return ErrNotYourTurn
	}
	return nil
}

func (r *RoomCtx) indexOf(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *RoomCtx) beginTurn() {
	r.phase = PhaseDrawing
	r.deal = nil
	r.started = r.now()
}

func (r *RoomCtx) finishTurn(reason room.EndReason) *Turn {
	t := &Turn{
		Index:     len(r.turns) + 1,
		Player:    r.players[r.current].Name,
		Reason:    reason,
		StartedAt: r.started,
		EndedAt:   r.now(),
	}
	if r.deal != nil {
		t.Card = r.deal.Entry.Heading
	}
	r.turns = append(r.turns, t)
	r.deal = nil
	return t
}

// draw walks a shuffled order of the deck, reshuffling when it runs out.
func (r *RoomCtx) draw() int {
	if r.next >= len(r.order) {
		r.order = rand.Perm(len(r.deck))
		r.next = 0
	}
	ix := r.order[r.next]
	r.next++
	return ix
}
