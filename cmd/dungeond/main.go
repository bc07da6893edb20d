package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hexagon-games/dungeongreed/internal/config"
	"github.com/hexagon-games/dungeongreed/internal/game"
	"github.com/hexagon-games/dungeongreed/internal/ws"
	staticserver "github.com/hexagon-games/dungeongreed/static"
)

const version = "v0.3.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`dungeond - DungeonGreed dev room server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8000 or PORT env var)

Environment Variables:
  PORT              Port to listen on (default: 8000)
  DUNGEON_PATH      Socket.IO mount path (default: /io)
  CARD_TIMER        Seconds per card when the deck entry has none (default: 30)
  ALLOWED_ORIGINS   Comma separated CORS origins (default: *)
  EXPORT_ENABLED    Append finished turns to a file (default: false)
  EXPORT_FILE       Path for the turn log (default: ./dungeongreed-turns.txt)
  LOG_LEVEL         zerolog level (default: info)
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("dungeond %s\n", version)
		return
	}

	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	raw, err := staticserver.Deck()
	if err != nil {
		log.Fatal().Err(err).Msg("read deck")
	}
	deck, err := game.LoadDeck(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("load deck")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, cfg.Path) {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	rm := game.NewRoomManager(deck, cfg.CardTimer)
	roomRoutes(r, rm)

	sock := ws.New(rm, cfg)
	io := sock.Mount(r)
	defer io.Close()

	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	log.Info().Str("port", cfg.Port).Str("path", cfg.Path).Int("decksize", len(deck)).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// roomRoutes exposes read-only room state for debugging.
func roomRoutes(r gin.IRouter, rm *game.RoomManager) {
	r.GET("/api/rooms/:code", func(c *gin.Context) {
		rc, err := rm.Get(c.Param("code"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		current := ""
		if p := rc.Current(); p != nil {
			current = p.Name
		}
		c.JSON(http.StatusOK, gin.H{"code": rc.Code, "players": rc.Players(), "current": current, "phase": rc.Phase(), "turns": rc.Turns()})
	})
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Origin"},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
