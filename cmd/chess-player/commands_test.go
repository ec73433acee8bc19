package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-engine-player/internal/adapter/chesspresenter"
	appcfg "github.com/park285/cheese-engine-player/internal/config"
	"github.com/park285/cheese-engine-player/internal/httpapi"
	"github.com/park285/cheese-engine-player/internal/msgcat"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
)

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	chess, err := svcchess.NewService(nil, nil, nil, catalog, svcchess.Config{SkillLevel: 5}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	server := httpapi.NewServer(chess, catalog, nil)
	var out bytes.Buffer
	return newConsole(chess, chesspresenter.NewFormatter(time.UTC), server.Describe, &out), &out
}

func TestConsoleCommands(t *testing.T) {
	c, _ := newTestConsole(t)
	ctx := context.Background()

	cases := []struct {
		line string
		want string
		quit bool
	}{
		{line: "", want: ""},
		{line: "help", want: "promote <piece>"},
		{line: "e2e4", want: "Move: e2e4"},
		{line: "e7e5", want: "Illegal move: e7e5"},
		{line: "e1e3", want: "Illegal move: e1e3"},
		{line: "select z9", want: "Unknown square: z9"},
		{line: "promote king", want: "Unknown promotion piece: king"},
		{line: "view 0", want: "Viewing position 0"},
		{line: "view 9", want: "No position at index 9."},
		{line: "live", want: "Moves: 1"},
		{line: "undo", want: "Undid last move."},
		{line: "load 8/8/8/8/8/8/8/8 w - - 0 1", want: "Missing white king (K)"},
		{line: "reset purple", want: "Color must be white or black."},
		{line: "reset black", want: "Game reset. Make a move to begin."},
		{line: "history", want: "No finished games yet."},
		{line: "game x", want: "Game id must be a positive number."},
		{line: "game 7", want: "Game not found."},
		{line: "dance", want: "Unknown command."},
		{line: "QUIT", quit: true},
	}
	for _, tc := range cases {
		got, quit := c.exec(ctx, tc.line)
		if quit != tc.quit {
			t.Fatalf("%q: quit=%v", tc.line, quit)
		}
		if tc.want != "" && !strings.Contains(got, tc.want) {
			t.Fatalf("%q: expected %q in\n%s", tc.line, tc.want, got)
		}
	}
}

func TestConsoleRunStopsOnQuit(t *testing.T) {
	c, out := newTestConsole(t)
	if err := c.run(context.Background(), strings.NewReader("d2d4\nquit\ne2e4\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Welcome to Chess Engine Player!") || !strings.Contains(text, "Move: d2d4") {
		t.Fatalf("output:\n%s", text)
	}
	if strings.Contains(text, "Move: e2e4") {
		t.Fatalf("command after quit was executed")
	}
}

func TestLooksLikeMove(t *testing.T) {
	for _, s := range []string{"e2e4", "e7e8q", "a1h8"} {
		if !looksLikeMove(s) {
			t.Fatalf("%s should parse", s)
		}
	}
	for _, s := range []string{"e2", "e2e9", "undo", "e7e8qq"} {
		if looksLikeMove(s) {
			t.Fatalf("%s should not parse", s)
		}
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	f, fs, err := parseFlags([]string{"-black", "-think-time", "500", "-ws", ""})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := &appcfg.AppConfig{SkillLevel: 7, ThinkTimeMS: 2000, HTTPAddr: ":8080", WSAddr: ":8081"}
	f.apply(fs, cfg)
	if !cfg.PlayAsBlack || cfg.ThinkTimeMS != 500 || cfg.WSAddr != "" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SkillLevel != 7 || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unset flags changed config: %+v", cfg)
	}
}
