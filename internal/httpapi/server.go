// Package httpapi exposes the chess service as a JSON API on fasthttp and
// pushes board updates to websocket subscribers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-engine-player/internal/adapter/chesspresenter"
	corechess "github.com/park285/cheese-engine-player/internal/chess"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

const (
	maxJSONBodyBytes = 1 << 20
	requestTimeout   = 10 * time.Second
	gamesPathPrefix  = "/v1/games/"
)

// Renderer turns a catalog key into a user facing message.
type Renderer interface {
	Render(key string, data any) (string, error)
}

type handlerFunc func(ctx context.Context, rc *fasthttp.RequestCtx) (any, error)

type route struct {
	method  string
	handler handlerFunc
}

// Server serves the JSON API.
type Server struct {
	svc       *svcchess.Service
	messages  Renderer
	formatter *chesspresenter.Formatter
	logger    *zap.Logger
	routes    map[string]route

	srvMu sync.Mutex
	srv   *fasthttp.Server
}

// NewServer wires the routes. messages may be nil.
func NewServer(svc *svcchess.Service, messages Renderer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:       svc,
		messages:  messages,
		formatter: chesspresenter.NewFormatter(time.Local),
		logger:    logger,
	}
	s.routes = map[string]route{
		"/v1/session":           {fasthttp.MethodGet, s.handleState},
		"/v1/session/start":     {fasthttp.MethodPost, s.handleStart},
		"/v1/session/resume":    {fasthttp.MethodPost, s.handleResume},
		"/v1/session/select":    {fasthttp.MethodPost, s.handleSelect},
		"/v1/session/promote":   {fasthttp.MethodPost, s.handlePromote},
		"/v1/session/move":      {fasthttp.MethodPost, s.handleMove},
		"/v1/session/undo":      {fasthttp.MethodPost, s.handleUndo},
		"/v1/session/flip":      {fasthttp.MethodPost, s.handleFlip},
		"/v1/session/reset":     {fasthttp.MethodPost, s.handleReset},
		"/v1/session/load":      {fasthttp.MethodPost, s.handleLoad},
		"/v1/session/view":      {fasthttp.MethodPost, s.handleView},
		"/v1/session/view/exit": {fasthttp.MethodPost, s.handleExitView},
		"/v1/setup":             {fasthttp.MethodPost, s.handleSetup},
		"/v1/games":             {fasthttp.MethodGet, s.handleGames},
		"/v1/profile":           {fasthttp.MethodGet, s.handleProfile},
	}
	return s
}

// Handler is the fasthttp entry point.
func (s *Server) Handler(rc *fasthttp.RequestCtx) {
	path := string(rc.Path())
	if path == "/healthz" {
		rc.SetStatusCode(fasthttp.StatusOK)
		rc.SetBodyString("ok")
		return
	}

	r, ok := s.routes[path]
	if !ok && strings.HasPrefix(path, gamesPathPrefix) {
		r, ok = route{fasthttp.MethodGet, s.handleGame}, true
	}
	if !ok {
		s.writeError(rc, chessdto.DomainError{Code: "not_found", Message: "Not found."}, fasthttp.StatusNotFound)
		return
	}
	if string(rc.Method()) != r.method {
		rc.Response.Header.Set("Allow", r.method)
		s.writeError(rc, chessdto.DomainError{Code: "method_not_allowed", Message: "Method not allowed."}, fasthttp.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	started := time.Now()
	out, err := r.handler(ctx, rc)
	if err != nil {
		derr, status := s.mapError(err)
		if status >= fasthttp.StatusInternalServerError {
			s.logger.Error("api_request_failed", zap.String("path", path), zap.Error(err))
		}
		s.writeError(rc, derr, status)
		return
	}
	if text, ok := out.(textBody); ok {
		rc.SetContentType("text/plain; charset=utf-8")
		rc.SetStatusCode(fasthttp.StatusOK)
		rc.SetBodyString(string(text))
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, out)
	s.logger.Debug("api_request",
		zap.String("method", r.method),
		zap.String("path", path),
		zap.Duration("took", time.Since(started)),
	)
}

// textBody is returned by handlers for ?format=text.
type textBody string

func wantsText(rc *fasthttp.RequestCtx) bool {
	return string(rc.QueryArgs().Peek("format")) == "text"
}

// ---- handlers ----

func (s *Server) handleState(_ context.Context, rc *fasthttp.RequestCtx) (any, error) {
	state := chesspresenter.ToDTOState(s.svc.Snapshot())
	if wantsText(rc) {
		return textBody(s.formatter.Board(state)), nil
	}
	return state, nil
}

// handleStart resumes the saved game when there is one and starts fresh
// otherwise.
func (s *Server) handleStart(ctx context.Context, _ *fasthttp.RequestCtx) (any, error) {
	snap, err := s.svc.Resume(ctx)
	switch {
	case err == nil:
		return &chessdto.StartResponse{State: chesspresenter.ToDTOState(snap), Resumed: true}, nil
	case errors.Is(err, svcchess.ErrNoSavedSession):
	default:
		s.logger.Warn("resume_failed", zap.Error(err))
	}
	snap = s.svc.Start(ctx)
	return &chessdto.StartResponse{State: chesspresenter.ToDTOState(snap)}, nil
}

func (s *Server) handleResume(ctx context.Context, _ *fasthttp.RequestCtx) (any, error) {
	snap, err := s.svc.Resume(ctx)
	if err != nil {
		return nil, err
	}
	return &chessdto.StartResponse{State: chesspresenter.ToDTOState(snap), Resumed: true}, nil
}

func (s *Server) handleSelect(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.SelectRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	outcome, snap, err := s.svc.SelectSquare(ctx, req.Square)
	if err != nil {
		return nil, withData(err, map[string]any{"Square": req.Square})
	}
	return &chessdto.SelectResponse{
		Outcome: chesspresenter.SelectOutcomeToken(outcome),
		State:   chesspresenter.ToDTOState(snap),
	}, nil
}

func (s *Server) handlePromote(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.PromoteRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	snap, err := s.svc.Promote(ctx, req.Piece)
	if err != nil {
		return nil, withData(err, map[string]any{"Piece": req.Piece, "Move": req.Piece})
	}
	return chesspresenter.ToDTOState(snap), nil
}

func (s *Server) handleMove(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.MoveRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	snap, err := s.svc.PlayMove(ctx, req.Move)
	if err != nil {
		return nil, withData(err, map[string]any{"Move": req.Move, "Piece": req.Move})
	}
	return chesspresenter.ToDTOState(snap), nil
}

func (s *Server) handleUndo(ctx context.Context, _ *fasthttp.RequestCtx) (any, error) {
	return chesspresenter.ToDTOState(s.svc.Undo(ctx)), nil
}

func (s *Server) handleFlip(ctx context.Context, _ *fasthttp.RequestCtx) (any, error) {
	return chesspresenter.ToDTOState(s.svc.FlipSide(ctx)), nil
}

func (s *Server) handleReset(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.ColorRequest
	if err := decodeOptionalBody(rc, &req); err != nil {
		return nil, err
	}
	human, err := s.colorOrCurrent(req.Color)
	if err != nil {
		return nil, err
	}
	return chesspresenter.ToDTOState(s.svc.Reset(ctx, human)), nil
}

func (s *Server) handleLoad(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.LoadRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	human, err := s.colorOrCurrent(req.Color)
	if err != nil {
		return nil, err
	}
	snap, err := s.svc.LoadPosition(ctx, req.FEN, human)
	if err != nil {
		return nil, err
	}
	return chesspresenter.ToDTOState(snap), nil
}

func (s *Server) handleView(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.ViewRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	snap, ok := s.svc.EnterView(ctx, req.Index)
	if !ok {
		return nil, badRequest("invalid_view_index", "No position at index "+strconv.Itoa(req.Index)+".")
	}
	return chesspresenter.ToDTOState(snap), nil
}

func (s *Server) handleExitView(ctx context.Context, _ *fasthttp.RequestCtx) (any, error) {
	return chesspresenter.ToDTOState(s.svc.ExitView(ctx)), nil
}

// handleSetup validates an edited board and returns its FEN. It never
// touches the running game; clients load the FEN separately.
func (s *Server) handleSetup(_ context.Context, rc *fasthttp.RequestCtx) (any, error) {
	var req chessdto.SetupRequest
	if err := decodeBody(rc, &req); err != nil {
		return nil, err
	}
	setup, err := chesspresenter.FromSetupRequest(req)
	if err != nil {
		return nil, badRequest("invalid_setup", err.Error())
	}
	resp := &chessdto.SetupResponse{FEN: setup.FEN(), Valid: true}
	if verr := setup.Validate(); verr != nil {
		resp.Valid = false
		resp.Reason = verr.Error()
	}
	return resp, nil
}

func (s *Server) handleGames(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	limit := rc.QueryArgs().GetUintOrZero("limit")
	games, err := s.svc.RecentGames(ctx, limit)
	if err != nil {
		return nil, err
	}
	list := chesspresenter.ToDTOGames(games)
	if wantsText(rc) {
		return textBody(s.formatter.History(list)), nil
	}
	return &chessdto.HistoryResponse{Games: list}, nil
}

func (s *Server) handleGame(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	raw := strings.TrimPrefix(string(rc.Path()), gamesPathPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest("invalid_game_id", "Game id must be a positive number.")
	}
	game, err := s.svc.Game(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := chesspresenter.ToDTOGame(game)
	if wantsText(rc) {
		return textBody(s.formatter.Game(dto)), nil
	}
	return &chessdto.GameResponse{Game: dto}, nil
}

func (s *Server) handleProfile(ctx context.Context, rc *fasthttp.RequestCtx) (any, error) {
	profile, err := s.svc.Profile(ctx)
	if err != nil {
		return nil, err
	}
	dto := chesspresenter.ToDTOProfile(profile)
	if wantsText(rc) {
		return textBody(s.formatter.Profile(dto)), nil
	}
	return &chessdto.ProfileResponse{Profile: dto}, nil
}

func (s *Server) colorOrCurrent(text string) (nchess.Color, error) {
	if strings.TrimSpace(text) == "" {
		return s.svc.Snapshot().HumanColor, nil
	}
	c, ok := corechess.ParseColor(text)
	if !ok {
		return nchess.NoColor, badRequest("invalid_color", "Color must be white or black.")
	}
	return c, nil
}

// ---- plumbing ----

func decodeBody(rc *fasthttp.RequestCtx, dest any) error {
	body := rc.PostBody()
	if len(body) == 0 {
		return badRequest("empty_body", "Request body is required.")
	}
	if len(body) > maxJSONBodyBytes {
		return badRequest("body_too_large", "Request body is too large.")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return badRequest("invalid_json", "Request body is not valid JSON.")
	}
	return nil
}

func decodeOptionalBody(rc *fasthttp.RequestCtx, dest any) error {
	if len(rc.PostBody()) == 0 {
		return nil
	}
	return decodeBody(rc, dest)
}

func (s *Server) writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("api_encode_failed", zap.Error(err))
		rc.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	rc.SetContentType("application/json")
	rc.SetStatusCode(status)
	rc.SetBody(payload)
}

func (s *Server) writeError(rc *fasthttp.RequestCtx, derr chessdto.DomainError, status int) {
	s.writeJSON(rc, status, struct {
		Error chessdto.DomainError `json:"error"`
	}{derr})
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "chess-player",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: maxJSONBodyBytes,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	s.logger.Info("http_listening", zap.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.ShutdownWithContext(ctx)
}
