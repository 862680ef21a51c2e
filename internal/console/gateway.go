// Package console is a terminal stand-in for the chat transport. Typed
// lines become inbound messages; "@<id> <text>" replies to notification
// <id>. Outbound messages are printed with their ids.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/notexe/reminder-bot/internal/notify"
)

var (
	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
)

// Gateway implements notify.Gateway over a terminal.
type Gateway struct {
	out io.Writer

	mu      sync.Mutex
	nextID  int64
	pending []notify.Message
	read    int64
}

// New creates a Gateway printing to out. Outbound ids continue after
// lastID, the highest id already sent, so replies to earlier runs stay
// unambiguous. Lines are queued with Push.
func New(out io.Writer, lastID int64) *Gateway {
	return &Gateway{out: out, nextID: lastID}
}

// Send prints text and returns its id.
func (g *Gateway) Send(_ context.Context, text string, _ bool) (int64, error) {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.mu.Unlock()

	fmt.Fprintf(g.out, "%s %s\n", idStyle.Render(fmt.Sprintf("[%d]", id)), textStyle.Render(text))
	return id, nil
}

// Fetch returns queued lines from position cursor onwards. Lines before
// cursor are dropped.
func (g *Gateway) Fetch(_ context.Context, cursor int64) (notify.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if drop := cursor - g.read; drop > 0 {
		if drop > int64(len(g.pending)) {
			drop = int64(len(g.pending))
		}
		g.pending = g.pending[drop:]
		g.read += drop
	}

	msgs := make([]notify.Message, len(g.pending))
	copy(msgs, g.pending)
	return notify.Batch{Messages: msgs, Next: g.read + int64(len(msgs))}, nil
}

// Push queues a typed line as an inbound message.
func (g *Gateway) Push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	g.mu.Lock()
	g.pending = append(g.pending, ParseLine(line))
	g.mu.Unlock()
}

// ParseLine turns "@<id> <text>" into a reply and anything else into a
// plain message.
func ParseLine(line string) notify.Message {
	if rest, ok := strings.CutPrefix(line, "@"); ok {
		idStr, text, _ := strings.Cut(rest, " ")
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil && id > 0 {
			return notify.Message{Text: strings.TrimSpace(text), ReplyTo: id}
		}
	}
	return notify.Message{Text: line}
}

// ReadLines reads from the terminal until EOF, interrupt or ctx is done,
// pushing each line. It returns nil on a clean exit.
func (g *Gateway) ReadLines(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to setup readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		g.Push(line)
	}
}
