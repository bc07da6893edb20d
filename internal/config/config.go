package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const Game = "dungeon"

type Config struct {
	// client
	Host      string
	DevHost   string
	Path      string
	StateFile string
	LogLevel  string

	// dev room server
	Port           string
	AllowedOrigins []string
	CardTimer      int
	ExportEnabled  bool
	ExportFile     string
}

func FromEnv() Config {
	c := Config{}
	c.Host = getenv("DUNGEON_HOST", "http://hexagon.jacobpariseau.com/")
	c.DevHost = getenv("DUNGEON_DEV_HOST", "http://localhost:8000/")
	c.Path = getenv("DUNGEON_PATH", "/io")
	c.StateFile = os.Getenv("DUNGEON_STATE_FILE")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.Port = getenv("PORT", "8000")
	c.AllowedOrigins = splitList(getenv("ALLOWED_ORIGINS", "*"))
	c.CardTimer = getint("CARD_TIMER", 30)
	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./dungeongreed-turns.txt")
	return c
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
