package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hexagon-games/dungeongreed/internal/cards/dungeon"
	"github.com/hexagon-games/dungeongreed/internal/config"
	"github.com/hexagon-games/dungeongreed/internal/console"
	"github.com/hexagon-games/dungeongreed/internal/identity"
	"github.com/hexagon-games/dungeongreed/internal/room"
	"github.com/hexagon-games/dungeongreed/internal/transport"
)

const version = "v0.3.0-dev"

var (
	errQuit         = errors.New("quit")
	errServerClosed = errors.New("server closed the connection")
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		dev         = flag.Bool("dev", false, "Connect to the dev server (DUNGEON_DEV_HOST)")
		hostFlag    = flag.String("host", "", "Server URL (overrides DUNGEON_HOST)")
		roomFlag    = flag.String("room", "", "Room code")
		nameFlag    = flag.String("name", "", "Player name")
		colorFlag   = flag.String("color", "", "Player color: red, yellow, green, cyan, blue or magenta")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`dungeon - DungeonGreed terminal client

Usage: %s [options]

Options:
  -h, --help        Show this help message
  -v, --version     Show version information
  --dev             Connect to the dev server
  --host URL        Server URL
  --room CODE       Room code (up to 4 letters)
  --name NAME       Player name (up to 12 letters)
  --color COLOR     red, yellow, green, cyan, blue or magenta

Missing values are taken from the last join, then prompted for.

%s
`, os.Args[0], console.Help)
		return
	}
	if *showVersion {
		fmt.Printf("dungeon %s\n", version)
		return
	}

	cfg := config.FromEnv()
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	statePath := cfg.StateFile
	if statePath == "" {
		statePath = identity.DefaultPath()
	}
	form, err := identity.LoadForm(identity.NewStore(statePath))
	if err != nil {
		logger.Warn().Err(err).Str("file", statePath).Msg("ignoring saved join")
	}
	in := bufio.NewReader(os.Stdin)
	join, err := fillForm(form, in, *roomFlag, *nameFlag, *colorFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("join")
	}

	host := cfg.Host
	if *dev {
		host = cfg.DevHost
	}
	if *hostFlag != "" {
		host = *hostFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, host, join, in, os.Stdout, logger)
	switch {
	case err == nil, errors.Is(err, errQuit), errors.Is(err, context.Canceled):
	case errors.Is(err, errServerClosed):
		logger.Info().Msg("server closed the connection")
	default:
		logger.Fatal().Err(err).Msg("session ended")
	}
}

func run(ctx context.Context, cfg config.Config, host string, join identity.Join, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	view := console.NewView(out)
	registry := room.NewRegistry(map[room.CardType]room.CardModule{
		room.CardDungeon: dungeon.New(),
	})
	sess, err := room.NewSession(room.Config{
		RoomCode:  join.Room,
		Identity:  join.Identity,
		Registry:  registry,
		Presenter: view,
		Logger:    &logger,
		OnFault: func(err error) {
			view.Hint("card failed: " + err.Error())
		},
	})
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("room", sess.Name())
	q.Set("user", join.Identity.Name)
	q.Set("color", string(join.Identity.Color))
	q.Set("game", config.Game)

	client, err := transport.Dial(ctx, host, transport.Options{Path: cfg.Path, Query: q, Logger: &logger})
	if err != nil {
		return err
	}
	sess.Attach(client)
	view.Hint(console.Help)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })
	g.Go(func() error {
		if err := client.Run(ctx); err != nil {
			return err
		}
		view.Hint("disconnected: " + errServerClosed.Error())
		return errServerClosed
	})
	g.Go(func() error {
		if console.ReadCommands(ctx, in, sess, view) {
			return errQuit
		}
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// fillForm applies flags over the saved join and prompts for whatever is
// still missing.
func fillForm(f *identity.Form, in *bufio.Reader, roomCode, name, color string) (identity.Join, error) {
	if roomCode != "" {
		f.SetRoom(roomCode)
	}
	if name != "" {
		f.SetName(name)
	}
	if color != "" {
		if err := f.SelectColor(color); err != nil {
			return identity.Join{}, err
		}
	}

	for room.Sanitize(f.Room, room.RoomCodeLength) == "" {
		v, err := prompt(in, "room code")
		if err != nil {
			return identity.Join{}, err
		}
		f.SetRoom(v)
	}
	for room.NormalizeName(f.Name) == "" {
		v, err := prompt(in, "name")
		if err != nil {
			return identity.Join{}, err
		}
		f.SetName(v)
	}
	for !f.Color.Valid() {
		v, err := prompt(in, "color ("+colorList()+")")
		if err != nil {
			return identity.Join{}, err
		}
		if err := f.SelectColor(v); err != nil {
			fmt.Println(err)
		}
	}
	return f.Submit()
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

func colorList() string {
	names := make([]string, 0, len(room.Colors))
	for _, c := range room.Colors {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
