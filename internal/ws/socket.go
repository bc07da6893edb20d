package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hexagon-games/dungeongreed/internal/config"
	"github.com/hexagon-games/dungeongreed/internal/game"
	"github.com/hexagon-games/dungeongreed/internal/room"
)

var ErrWrongGame = errors.New("wrong game")

// SystemName is the sender of server-generated chat lines.
const SystemName = "ROOM"

type ConnCtx struct {
	Code     string
	PlayerID string
	Name     string
	limiter  *rate.Limiter
}

type Server struct {
	RM      *game.RoomManager
	mu      sync.Mutex
	members map[string]map[string]socketio.Conn // room code -> socket ID -> Conn
	io      *socketio.Server
	config  config.Config
}

func New(rm *game.RoomManager, cfg config.Config) *Server {
	return &Server{RM: rm, members: make(map[string]map[string]socketio.Conn), config: cfg}
}

// Mount attaches the Socket.IO server under cfg.Path on the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		u := s.URL()
		q := u.Query()
		if g := q.Get("game"); g != config.Game {
			log.Warn().Str("sid", s.ID()).Str("game", g).Msg("rejecting connection")
			return fmt.Errorf("%w: %q", ErrWrongGame, g)
		}
		color, err := room.ParseColor(q.Get("color"))
		if err != nil {
			return err
		}
		rc, p, err := srv.RM.Join(q.Get("room"), q.Get("user"), color)
		if err != nil {
			log.Warn().Str("sid", s.ID()).Err(err).Msg("join rejected")
			return err
		}
		s.SetContext(&ConnCtx{Code: rc.Code, PlayerID: p.ID, Name: p.Name, limiter: rate.NewLimiter(1, 5)})
		s.Join(rc.Code)
		srv.addMember(rc.Code, s)
		log.Info().Str("sid", s.ID()).Str("code", rc.Code).Str("player", p.Name).Msg("joined")

		// the connection's writer starts once this handler returns
		go srv.announce(rc, p, s)
		return nil
	})

	io.OnEvent("/", room.EventRequestCard, func(s socketio.Conn) {
		ctx, rc, ok := srv.lookup(s)
		if !ok {
			return
		}
		d, err := rc.RequestCard(ctx.PlayerID)
		if err != nil {
			log.Debug().Str("code", ctx.Code).Str("player", ctx.Name).Err(err).Msg("request-card ignored")
			return
		}
		log.Info().Str("code", ctx.Code).Str("player", ctx.Name).Str("card", d.Entry.Heading).Msg("card dealt")
		srv.deal(rc, d)
	})

	io.OnEvent("/", room.EventEndTurn, func(s socketio.Conn, payload room.EndTurn) {
		ctx, rc, ok := srv.lookup(s)
		if !ok {
			return
		}
		turn, next, err := rc.EndTurn(ctx.PlayerID, payload.Reason)
		if err != nil {
			// every client's timer fires, only the current player's counts
			log.Debug().Str("code", ctx.Code).Str("player", ctx.Name).Err(err).Msg("end-turn ignored")
			return
		}
		srv.passTurn(rc, turn, next)
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
		ctx, ok := s.Context().(*ConnCtx)
		if !ok || ctx.Code == "" {
			return
		}
		srv.removeMember(ctx.Code, s)
		rc, err := srv.RM.Get(ctx.Code)
		if err != nil {
			return
		}
		turn, next, err := rc.Leave(ctx.PlayerID)
		if err != nil {
			return
		}
		if next == nil {
			srv.RM.Remove(ctx.Code)
			log.Info().Str("code", ctx.Code).Msg("room closed")
			return
		}
		io.BroadcastToRoom("/", ctx.Code, room.EventQueueUpdated, rc.Queue())
		srv.system(ctx.Code, ctx.Name+" left")
		if turn != nil {
			srv.passTurn(rc, turn, next)
		}
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	path := srv.config.Path + "/*any"
	r.GET(path, gin.WrapH(io))
	r.POST(path, gin.WrapH(io))
	r.OPTIONS(path, func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return io
}

// announce tells the room about a new player and the newcomer whose turn it is.
func (srv *Server) announce(rc *game.RoomCtx, p *game.Player, s socketio.Conn) {
	srv.io.BroadcastToRoom("/", rc.Code, room.EventQueueUpdated, rc.Queue())
	if cur := rc.Current(); cur != nil {
		s.Emit(room.EventChangePlayer, cur.Name)
	}
	srv.system(rc.Code, p.Name+" joined")
}

// lookup resolves the connection's room and applies the per-connection rate limit.
func (srv *Server) lookup(s socketio.Conn) (*ConnCtx, *game.RoomCtx, bool) {
	ctx, ok := s.Context().(*ConnCtx)
	if !ok || ctx.Code == "" {
		return nil, nil, false
	}
	if !ctx.limiter.Allow() {
		log.Warn().Str("sid", s.ID()).Str("player", ctx.Name).Msg("rate limited")
		return nil, nil, false
	}
	rc, err := srv.RM.Get(ctx.Code)
	if err != nil {
		return nil, nil, false
	}
	return ctx, rc, true
}

// deal sends each member its own view of the card.
func (srv *Server) deal(rc *game.RoomCtx, d game.Deal) {
	for _, c := range srv.conns(rc.Code) {
		ctx, _ := c.Context().(*ConnCtx)
		if ctx == nil {
			continue
		}
		card, err := d.CardFor(rc.Player(ctx.PlayerID))
		if err != nil {
			log.Error().Err(err).Str("code", rc.Code).Msg("card encode")
			return
		}
		c.Emit(room.EventCard, card)
	}
}

func (srv *Server) passTurn(rc *game.RoomCtx, turn *game.Turn, next *game.Player) {
	log.Info().Str("code", rc.Code).Str("player", turn.Player).Str("reason", string(turn.Reason)).Str("next", next.Name).Msg("turn ended")
	srv.io.BroadcastToRoom("/", rc.Code, room.EventEndTurn, room.EndTurn{Reason: turn.Reason})
	srv.io.BroadcastToRoom("/", rc.Code, room.EventChangePlayer, next.Name)

	if srv.config.ExportEnabled {
		if err := game.ExportTurn(rc, turn, srv.config.ExportFile); err != nil {
			log.Error().Err(err).Str("code", rc.Code).Msg("failed to export turn")
		}
	}
}

func (srv *Server) system(code, text string) {
	srv.io.BroadcastToRoom("/", code, room.EventMessage, room.Message{Name: SystemName, Text: text})
}

func (srv *Server) addMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][c.ID()] = c
}

func (srv *Server) removeMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) conns(code string) []socketio.Conn {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]socketio.Conn, 0, len(srv.members[code]))
	for _, c := range srv.members[code] {
		out = append(out, c)
	}
	return out
}
