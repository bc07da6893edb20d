package console

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Clicker is the part of the session that user input drives.
type Clicker interface {
	ClickStatus()
	ClickCard()
}

type Command int

const (
	CmdUnknown Command = iota
	CmdStatus
	CmdCard
	CmdQuit
	CmdHelp
)

const Help = "commands: s(tatus)  c(ard)  h(elp)  q(uit)"

func ParseCommand(line string) Command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "status":
		return CmdStatus
	case "c", "card":
		return CmdCard
	case "q", "quit", "exit":
		return CmdQuit
	case "h", "help", "?":
		return CmdHelp
	default:
		return CmdUnknown
	}
}

// ReadCommands routes lines from in to the session until quit, EOF or ctx is
// done. It returns true when the user asked to quit.
func ReadCommands(ctx context.Context, in io.Reader, target Clicker, v *View) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			switch ParseCommand(line) {
			case CmdStatus:
				target.ClickStatus()
			case CmdCard:
				target.ClickCard()
			case CmdQuit:
				return true
			case CmdHelp, CmdUnknown:
				if v != nil {
					v.Hint(Help)
				}
			}
		}
	}
}
