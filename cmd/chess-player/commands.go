package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/cheese-engine-player/internal/adapter/chesspresenter"
	corechess "github.com/park285/cheese-engine-player/internal/chess"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

// describer turns a service error into the user facing message.
type describer func(err error, data map[string]any) chessdto.DomainError

// console drives the game from text commands on a terminal.
type console struct {
	chess     *svcchess.Service
	formatter *chesspresenter.Formatter
	describe  describer

	outMu sync.Mutex
	out   io.Writer
}

func newConsole(chess *svcchess.Service, formatter *chesspresenter.Formatter, describe describer, out io.Writer) *console {
	return &console{chess: chess, formatter: formatter, describe: describe, out: out}
}

func helpText() string {
	return strings.Join([]string{
		"♞ Chess Engine Player",
		"",
		"• <move>            play a move, e.g. e2e4 or e7e8q",
		"• select <square>   click a square",
		"• promote <piece>   finish a promotion (q, r, b, n)",
		"• undo | flip | reset [white|black]",
		"• load <fen>        start from a position",
		"• view <n> | live   browse earlier positions",
		"• board | history [n] | game <id> | profile",
		"• quit",
	}, "\n")
}

// run reads commands until EOF, quit, or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.print(c.board(c.chess.Snapshot()))
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		text, quit := c.exec(ctx, scanner.Text())
		if text != "" {
			c.print(text)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (c *console) print(text string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintln(c.out, text)
}

func (c *console) board(snap svcchess.Snapshot) string {
	return c.formatter.Board(chesspresenter.ToDTOState(snap))
}

// exec runs one command line and returns what to print.
func (c *console) exec(ctx context.Context, line string) (string, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		return helpText(), false
	case "quit", "exit":
		return "", true
	case "board", "status":
		return c.board(c.chess.Snapshot()), false
	case "select":
		if len(args) != 1 {
			return "Usage: select <square>", false
		}
		_, snap, err := c.chess.SelectSquare(ctx, args[0])
		if err != nil {
			return c.errorText(err, map[string]any{"Square": args[0]}), false
		}
		return c.board(snap), false
	case "promote":
		if len(args) != 1 {
			return "Usage: promote <q|r|b|n>", false
		}
		snap, err := c.chess.Promote(ctx, args[0])
		if err != nil {
			return c.errorText(err, map[string]any{"Piece": args[0], "Move": args[0]}), false
		}
		return c.board(snap), false
	case "undo":
		return c.board(c.chess.Undo(ctx)), false
	case "flip":
		return c.board(c.chess.FlipSide(ctx)), false
	case "reset", "new":
		human := c.chess.Snapshot().HumanColor
		if len(args) >= 1 {
			col, ok := corechess.ParseColor(args[0])
			if !ok {
				return "Color must be white or black.", false
			}
			human = col
		}
		return c.board(c.chess.Reset(ctx, human)), false
	case "load":
		if len(args) == 0 {
			return "Usage: load <fen>", false
		}
		snap, err := c.chess.LoadPosition(ctx, strings.Join(args, " "), c.chess.Snapshot().HumanColor)
		if err != nil {
			return c.errorText(err, nil), false
		}
		return c.board(snap), false
	case "view":
		if len(args) != 1 {
			return "Usage: view <n>", false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return "Usage: view <n>", false
		}
		snap, ok := c.chess.EnterView(ctx, n)
		if !ok {
			return fmt.Sprintf("No position at index %d.", n), false
		}
		return c.board(snap), false
	case "live":
		return c.board(c.chess.ExitView(ctx)), false
	case "history":
		limit := 0
		if len(args) >= 1 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				limit = n
			}
		}
		games, err := c.chess.RecentGames(ctx, limit)
		if err != nil {
			return c.errorText(err, nil), false
		}
		return c.formatter.History(chesspresenter.ToDTOGames(games)), false
	case "game":
		if len(args) != 1 {
			return "Usage: game <id>", false
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return "Game id must be a positive number.", false
		}
		game, err := c.chess.Game(ctx, id)
		if err != nil {
			return c.errorText(err, nil), false
		}
		return c.formatter.Game(chesspresenter.ToDTOGame(game)), false
	case "profile":
		profile, err := c.chess.Profile(ctx)
		if err != nil {
			return c.errorText(err, nil), false
		}
		return c.formatter.Profile(chesspresenter.ToDTOProfile(profile)), false
	default:
		if !looksLikeMove(cmd) {
			return "Unknown command. Try 'help'.", false
		}
		snap, err := c.chess.PlayMove(ctx, cmd)
		if err != nil {
			return c.errorText(err, map[string]any{"Move": cmd, "Piece": cmd}), false
		}
		return c.board(snap), false
	}
}

func (c *console) errorText(err error, data map[string]any) string {
	if c.describe == nil {
		return err.Error()
	}
	return c.describe(err, data).Message
}

// looksLikeMove accepts coordinate moves such as e2e4 and e7e8q.
func looksLikeMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if _, ok := corechess.ParseSquare(s[0:2]); !ok {
		return false
	}
	_, ok := corechess.ParseSquare(s[2:4])
	return ok
}
