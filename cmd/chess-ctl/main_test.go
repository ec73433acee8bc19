package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-engine-player/internal/apiclient"
	"github.com/park285/cheese-engine-player/internal/httpapi"
	"github.com/park285/cheese-engine-player/internal/msgcat"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
)

func newTestClient(t *testing.T) (*apiclient.Client, *svcchess.Service) {
	t.Helper()
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	svc, err := svcchess.NewService(nil, nil, nil, catalog, svcchess.Config{PlayerID: "p1", SkillLevel: 3}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	server := httpapi.NewServer(svc, catalog, nil)
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
		_ = ln.Close()
	})
	hc := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return apiclient.NewClient("http://chess.test", apiclient.WithHTTPClient(hc), apiclient.WithRetry(1)), svc
}

func TestRunCommands(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	cases := []struct {
		args    []string
		want    []string
		wantErr string
	}{
		{args: []string{"board"}, want: []string{"8 r n b q k b n r"}},
		{args: []string{"move", "e2e4"}, want: []string{"Move: e2e4", "turn=black", "moves=1"}},
		{args: []string{"move"}, wantErr: "usage: move <uci>"},
		{args: []string{"move", "e2e5"}, wantErr: "Illegal move: e2e5"},
		{args: []string{"board"}, want: []string{"1. e4"}},
		{args: []string{"undo"}, want: []string{"Undid last move.", "moves=0"}},
		{args: []string{"flip"}, want: []string{"You are playing as Black."}},
		{args: []string{"reset", "white"}, want: []string{"Game reset. Make a move to begin.", "turn=white"}},
		{args: []string{"reset", "green"}, wantErr: "invalid_color"},
		{args: []string{"games"}, want: nil},
		{args: []string{"castle"}, wantErr: `unknown command "castle"`},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		err := run(ctx, client, tc.args, &out)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("%v: err %v, want %q", tc.args, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		for _, w := range tc.want {
			if !strings.Contains(out.String(), w) {
				t.Fatalf("%v: expected %q in\n%s", tc.args, w, out.String())
			}
		}
	}
}

func TestRunArchiveCommands(t *testing.T) {
	client, svc := newTestClient(t)
	ctx := context.Background()
	if _, err := svc.LoadPosition(ctx, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}

	var out bytes.Buffer
	if err := run(ctx, client, []string{"move", "a1a8"}, &out); err != nil {
		t.Fatalf("move: %v", err)
	}
	out.Reset()
	if err := run(ctx, client, []string{"games", "5"}, &out); err != nil {
		t.Fatalf("games: %v", err)
	}
	if !strings.HasPrefix(out.String(), "#") || !strings.Contains(out.String(), " win (") || !strings.Contains(out.String(), "1 plies") {
		t.Fatalf("games output:\n%s", out.String())
	}
	out.Reset()
	if err := run(ctx, client, []string{"profile"}, &out); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "p1: 1 games, 1-0-0" {
		t.Fatalf("profile output: %q", got)
	}
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("CHESS_CTL_TEST_URL", "")
	if got := envDefault("CHESS_CTL_TEST_URL", "http://fallback"); got != "http://fallback" {
		t.Fatalf("unset: %q", got)
	}
	t.Setenv("CHESS_CTL_TEST_URL", "http://set")
	if got := envDefault("CHESS_CTL_TEST_URL", "http://fallback"); got != "http://set" {
		t.Fatalf("set: %q", got)
	}
}
