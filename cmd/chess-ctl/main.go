package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/park285/cheese-engine-player/internal/apiclient"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

func main() {
	addr := flag.String("addr", envDefault("CHESS_API_URL", "http://127.0.0.1:8080"), "chess-player API base URL")
	wsURL := flag.String("ws", envDefault("CHESS_WS_URL", "ws://127.0.0.1:8081/v1/ws"), "chess-player websocket URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"board"}
	}

	client := apiclient.NewClient(*addr, apiclient.WithTimeout(8*time.Second))
	if args[0] == "watch" {
		watch(*wsURL)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, client, args, os.Stdout); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	var (
		state *chessdto.SessionState
		err   error
	)
	switch args[0] {
	case "board":
		text, berr := client.Board(ctx)
		if berr != nil {
			return berr
		}
		fmt.Fprintln(out, text)
		return nil
	case "move":
		if len(args) < 2 {
			return fmt.Errorf("usage: move <uci>")
		}
		state, err = client.Move(ctx, args[1])
	case "undo":
		state, err = client.Undo(ctx)
	case "flip":
		state, err = client.Flip(ctx)
	case "reset":
		color := ""
		if len(args) >= 2 {
			color = args[1]
		}
		state, err = client.Reset(ctx, color)
	case "games":
		limit := 0
		if len(args) >= 2 {
			limit, _ = strconv.Atoi(args[1])
		}
		games, gerr := client.Games(ctx, limit)
		if gerr != nil {
			return gerr
		}
		for _, g := range games {
			fmt.Fprintf(out, "#%d %s %s (%s) %d plies\n", g.ID, g.EndedAt.Format(time.DateTime), g.Result, g.ResultMethod, len(g.MovesUCI))
		}
		return nil
	case "profile":
		p, perr := client.Profile(ctx)
		if perr != nil {
			return perr
		}
		fmt.Fprintf(out, "%s: %d games, %d-%d-%d\n", p.PlayerID, p.GamesPlayed, p.Wins, p.Losses, p.Draws)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}
	printState(out, state)
	return nil
}

func printState(out io.Writer, s *chessdto.SessionState) {
	fmt.Fprintf(out, "%s\nfen=%s turn=%s thinking=%v moves=%d\n", s.Status, s.FEN, s.Turn, s.Thinking, s.MoveCount)
}

// watch prints every board update until interrupted.
func watch(wsURL string) {
	sub := apiclient.NewSubscriber(wsURL, 5)
	sub.OnStateChange(func(state apiclient.State) {
		log.Printf("WS state: %s", state)
	})
	sub.OnEvent(func(ev *chessdto.Event) {
		if ev.State != nil {
			printState(os.Stdout, ev.State)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	err := sub.Connect(cctx)
	ccancel()
	if err != nil {
		log.Printf("WS connect error: %v", err)
	}

	<-ctx.Done()
	_ = sub.Close(context.Background())
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
