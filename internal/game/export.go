package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportTurn appends a finished turn to a text file. The first turn of a
// room also writes a header with the current queue.
func ExportTurn(r *RoomCtx, t *Turn, filename string) error {
	queue := r.Queue()

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if !fileExists || t.Index == 1 {
		if fileExists {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("DungeonGreed - Room %s\n", r.Code))
		sb.WriteString(fmt.Sprintf("Opened: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
		sb.WriteString("Players: " + strings.Join(queue, ", ") + "\n\n")
	}

	card := t.Card
	if card == "" {
		card = "no card"
	}
	sb.WriteString(fmt.Sprintf("Turn %d: %s drew %q, ended by %s after %s\n",
		t.Index, t.Player, card, t.Reason, t.EndedAt.Sub(t.StartedAt).Round(time.Second)))

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
