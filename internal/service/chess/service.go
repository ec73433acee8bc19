package chess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	corechess "github.com/park285/cheese-engine-player/internal/chess"
	"github.com/park285/cheese-engine-player/internal/chess/uci"
	"github.com/park285/cheese-engine-player/internal/domain"
)

var (
	ErrEngineUnavailable = errors.New("chess engine unavailable")
	ErrGameNotFound      = errors.New("chess game not found")
	ErrNoSavedSession    = errors.New("no saved chess session")
	ErrInvalidMove       = errors.New("invalid chess move")
	ErrInvalidSquare     = errors.New("invalid square")
	ErrInvalidPiece      = errors.New("invalid promotion piece")
)

const maxHistoryLimit = 50

// Engine is the asynchronous move source. *uci.Bridge satisfies it.
type Engine interface {
	Submit(id uint64, fen string) error
	// Cancel drops request id only; a newer request stays current.
	Cancel(id uint64)
	TryTakeMove() (uci.Reply, bool)
}

type Config struct {
	PlayerID     string
	SkillLevel   int
	PlayAsBlack  bool
	HistoryLimit int
}

// Snapshot is the session view plus what only the service knows.
type Snapshot struct {
	corechess.Snapshot
	SessionID       string
	StartedAt       time.Time
	OpeningECO      string
	OpeningName     string
	EngineAvailable bool
}

// Service serializes access to one game session. The lock is held only
// while the session is mutated; engine, store and archive calls happen
// after it is released.
type Service struct {
	mu          sync.Mutex
	session     *corechess.Session
	sessionID   string
	startedAt   time.Time
	archived    bool
	openingECO  string
	openingName string

	// set by Start so a fresh game is saved even though nothing moved
	forcePersist bool

	engine  Engine
	store   SessionStore
	repo    Repository
	catalog corechess.Catalog
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	listenersMu sync.RWMutex
	listeners   []func(Snapshot)
}

// NewService builds the service. engine and store may be nil; a nil repo
// falls back to the in-memory archive.
func NewService(engine Engine, store SessionStore, repo Repository, catalog corechess.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.SkillLevel < 1 || cfg.SkillLevel > 20 {
		return nil, fmt.Errorf("skill level %d out of range 1-20", cfg.SkillLevel)
	}
	if strings.TrimSpace(cfg.PlayerID) == "" {
		cfg.PlayerID = "local"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	s := &Service{
		engine:  engine,
		store:   store,
		repo:    repo,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	human := nchess.White
	if cfg.PlayAsBlack {
		human = nchess.Black
	}
	s.session = corechess.NewSession(s.sessionOptions(human)...)
	s.beginGame()
	return s, nil
}

func (s *Service) sessionOptions(human nchess.Color) []corechess.Option {
	opts := []corechess.Option{corechess.WithHumanColor(human)}
	if s.catalog != nil {
		opts = append(opts, corechess.WithCatalog(s.catalog))
	}
	return opts
}

func (s *Service) beginGame() {
	s.sessionID = uuid.NewString()
	s.startedAt = s.now()
	s.archived = false
	s.openingECO, s.openingName = "", ""
}

// OnChange registers fn to receive a snapshot after every operation.
func (s *Service) OnChange(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Start saves the new game and asks the engine to move when it is its turn.
func (s *Service) Start(ctx context.Context) Snapshot {
	return s.mutate(ctx, func() { s.forcePersist = true })
}

// Resume restores the player's saved game.
func (s *Service) Resume(ctx context.Context) (Snapshot, error) {
	if s.store == nil {
		return s.Snapshot(), ErrNoSavedSession
	}
	saved, err := s.store.Load(ctx, s.cfg.PlayerID)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("load saved session: %w", err)
	}
	if saved == nil {
		return s.Snapshot(), ErrNoSavedSession
	}
	human, ok := corechess.ParseColor(saved.HumanColor)
	if !ok {
		human = nchess.White
	}

	var restoreErr error
	snap := s.mutate(ctx, func() {
		if restoreErr = s.session.Restore(saved.StartFEN, human, saved.Moves); restoreErr != nil {
			return
		}
		s.sessionID = saved.SessionUUID
		s.startedAt = saved.StartedAt
		s.archived = false
	})
	if restoreErr != nil {
		return snap, fmt.Errorf("restore session %s: %w", saved.SessionUUID, restoreErr)
	}
	s.logger.Info("session_resumed",
		zap.String("session_id", saved.SessionUUID),
		zap.Int("plies", len(saved.Moves)),
	)
	return snap, nil
}

// SelectSquare forwards a board click such as "e2".
func (s *Service) SelectSquare(ctx context.Context, square string) (corechess.SelectOutcome, Snapshot, error) {
	sq, ok := corechess.ParseSquare(square)
	if !ok {
		return corechess.NotMoved, s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidSquare, square)
	}
	var outcome corechess.SelectOutcome
	snap := s.mutate(ctx, func() { outcome = s.session.SelectSquare(sq) })
	return outcome, snap, nil
}

// Promote completes a pending promotion.
func (s *Service) Promote(ctx context.Context, piece string) (Snapshot, error) {
	kind, ok := corechess.ParsePieceType(piece)
	if !ok {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidPiece, piece)
	}
	var done bool
	snap := s.mutate(ctx, func() { done = s.session.Promote(kind) })
	if !done {
		return snap, ErrInvalidMove
	}
	return snap, nil
}

// PlayMove plays a coordinate move for the human, e.g. "e7e8q". Without a
// promotion letter a promoting move waits for Promote.
func (s *Service) PlayMove(ctx context.Context, text string) (Snapshot, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) < 4 {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidMove, text)
	}
	from, okFrom := corechess.ParseSquare(text[0:2])
	to, okTo := corechess.ParseSquare(text[2:4])
	if !okFrom || !okTo {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidMove, text)
	}
	promo := nchess.NoPieceType
	if len(text) > 4 {
		kind, ok := corechess.ParsePieceType(text[4:])
		if !ok {
			return s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidPiece, text[4:])
		}
		promo = kind
	}

	var outcome corechess.SelectOutcome
	snap := s.mutate(ctx, func() {
		s.session.SelectSquare(from)
		outcome = s.session.SelectSquare(to)
		if outcome == corechess.AwaitingPromotion && promo != nchess.NoPieceType {
			if s.session.Promote(promo) {
				outcome = corechess.Moved
			}
		}
	})
	if outcome == corechess.NotMoved {
		return snap, fmt.Errorf("%w: %q", ErrInvalidMove, text)
	}
	return snap, nil
}

func (s *Service) Undo(ctx context.Context) Snapshot {
	return s.mutate(ctx, func() { s.session.Undo() })
}

func (s *Service) FlipSide(ctx context.Context) Snapshot {
	return s.mutate(ctx, func() { s.session.FlipSide() })
}

// Reset starts a new game from the standard position.
func (s *Service) Reset(ctx context.Context, human nchess.Color) Snapshot {
	return s.mutate(ctx, func() {
		s.session.Reset(human)
		s.beginGame()
	})
}

// LoadPosition starts a new game from fen. On error the current game is
// kept and its status shows the reason.
func (s *Service) LoadPosition(ctx context.Context, fen string, human nchess.Color) (Snapshot, error) {
	var err error
	snap := s.mutate(ctx, func() {
		if err = s.session.LoadPosition(fen, human); err == nil {
			s.beginGame()
		}
	})
	return snap, err
}

func (s *Service) EnterView(ctx context.Context, index int) (Snapshot, bool) {
	var ok bool
	snap := s.mutate(ctx, func() { ok = s.session.EnterView(index) })
	return snap, ok
}

func (s *Service) ExitView(ctx context.Context) Snapshot {
	return s.mutate(ctx, func() { s.session.ExitView() })
}

// Poll delivers an arrived engine reply, if any. It never blocks on the
// engine and reports whether a move was played.
func (s *Service) Poll(ctx context.Context) bool {
	if s.engine == nil {
		return false
	}
	reply, ok := s.engine.TryTakeMove()
	if !ok {
		return false
	}
	var applied bool
	s.run(ctx, func() { applied = s.session.AcceptEngineMove(reply.RequestID, reply.Move) }, false)
	if !applied {
		s.logger.Warn("engine_reply_rejected",
			zap.Uint64("request_id", reply.RequestID),
			zap.String("move", reply.Move),
		)
	}
	return applied
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	return Snapshot{
		Snapshot:        s.session.Snapshot(),
		SessionID:       s.sessionID,
		StartedAt:       s.startedAt,
		OpeningECO:      s.openingECO,
		OpeningName:     s.openingName,
		EngineAvailable: s.engine != nil,
	}
}

// RecentGames lists the player's archived games, newest first.
func (s *Service) RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.GetRecentGames(ctx, s.cfg.PlayerID, limit)
}

func (s *Service) Game(ctx context.Context, id int64) (*domain.ChessGame, error) {
	game, err := s.repo.GetGame(ctx, id, s.cfg.PlayerID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// Profile returns the player's aggregate results; a player with no finished
// games gets a fresh profile.
func (s *Service) Profile(ctx context.Context) (*domain.ChessProfile, error) {
	profile, err := s.repo.GetProfile(ctx, s.cfg.PlayerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &domain.ChessProfile{PlayerID: s.cfg.PlayerID, Rating: defaultPlayerRating}
	}
	return profile, nil
}

type gameKey struct {
	id    string
	plies int
	human nchess.Color
}

// pendingIO is the work collected under the lock and run after it.
type pendingIO struct {
	cancel   bool
	cancelID uint64
	submit   bool
	request  corechess.EngineRequest
	saved    *domain.SavedSession
	drop     bool
	finished *domain.ChessGame
	snapshot Snapshot
}

func (s *Service) mutate(ctx context.Context, fn func()) Snapshot {
	return s.run(ctx, fn, true)
}

// run applies fn under the lock. cancelStale tells whether a pending
// request dropped by fn should also be cancelled at the engine; a reply
// that was just consumed needs no cancel.
func (s *Service) run(ctx context.Context, fn func(), cancelStale bool) Snapshot {
	s.mu.Lock()
	before := s.session.Pending()
	beforeKey := s.keyLocked()
	s.forcePersist = false

	fn()

	var io pendingIO
	after := s.session.Pending()
	if cancelStale && before.Kind == corechess.PendingAwaitingReply && after.RequestID != before.RequestID {
		io.cancel, io.cancelID = true, before.RequestID
	}
	if s.engine != nil {
		if req, ok := s.session.BeginEngineTurn(); ok {
			io.submit, io.request = true, req
		}
	}
	if s.forcePersist || s.keyLocked() != beforeKey {
		s.refreshOpeningLocked()
		if res := s.session.Result(); res.Over() {
			io.drop = true
			if !s.archived {
				s.archived = true
				io.finished = s.finishedGameLocked(res)
			}
		} else {
			io.saved = s.savedSessionLocked()
		}
	}
	io.snapshot = s.snapshotLocked()
	s.mu.Unlock()

	return s.flush(ctx, io)
}

func (s *Service) keyLocked() gameKey {
	return gameKey{id: s.sessionID, plies: s.session.History().Plies(), human: s.session.HumanColor()}
}

func (s *Service) flush(ctx context.Context, io pendingIO) Snapshot {
	if io.cancel && s.engine != nil {
		s.engine.Cancel(io.cancelID)
	}
	if io.submit {
		if err := s.engine.Submit(io.request.ID, io.request.FEN); err != nil {
			s.logger.Warn("engine_submit_failed",
				zap.Uint64("request_id", io.request.ID),
				zap.Error(err),
			)
			s.mu.Lock()
			if p := s.session.Pending(); p.Kind == corechess.PendingAwaitingReply && p.RequestID == io.request.ID {
				s.session.CancelEngineTurn()
			}
			io.snapshot = s.snapshotLocked()
			s.mu.Unlock()
		} else {
			s.logger.Debug("engine_submit",
				zap.Uint64("request_id", io.request.ID),
				zap.Int("ply", io.request.Ply),
			)
		}
	}

	if s.store != nil {
		switch {
		case io.saved != nil:
			if err := s.store.Save(ctx, io.saved); err != nil {
				s.logger.Warn("session_save_failed", zap.String("session_id", io.saved.SessionUUID), zap.Error(err))
			} else {
				s.logger.Debug("session_saved", zap.String("session_id", io.saved.SessionUUID), zap.Int("plies", len(io.saved.Moves)))
			}
		case io.drop:
			if err := s.store.Delete(ctx, s.cfg.PlayerID); err != nil {
				s.logger.Warn("session_delete_failed", zap.Error(err))
			}
		}
	}
	if io.finished != nil {
		s.archive(ctx, io.finished)
	}

	s.notify(io.snapshot)
	return io.snapshot
}

func (s *Service) notify(snap Snapshot) {
	s.listenersMu.RLock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Service) refreshOpeningLocked() {
	start := corechess.PositionString(s.session.History().Start())
	s.openingECO, s.openingName = openingFor(start, s.session.History().MovesUCI())
}

func (s *Service) savedSessionLocked() *domain.SavedSession {
	return &domain.SavedSession{
		SessionUUID: s.sessionID,
		PlayerID:    s.cfg.PlayerID,
		StartFEN:    corechess.PositionString(s.session.History().Start()),
		Moves:       s.session.History().MovesUCI(),
		HumanColor:  colorKey(s.session.HumanColor()),
		SkillLevel:  s.cfg.SkillLevel,
		StartedAt:   s.startedAt,
		UpdatedAt:   s.now(),
	}
}

func (s *Service) finishedGameLocked(res corechess.Result) *domain.ChessGame {
	now := s.now()
	records := s.session.Records()
	human := s.session.HumanColor()
	start := corechess.PositionString(s.session.History().Start())

	white, black := s.cfg.PlayerID, fmt.Sprintf("Engine (skill %d)", s.cfg.SkillLevel)
	if human == nchess.Black {
		white, black = black, white
	}

	game := &domain.ChessGame{
		SessionUUID:  s.sessionID,
		PlayerID:     s.cfg.PlayerID,
		HumanColor:   colorKey(human),
		SkillLevel:   s.cfg.SkillLevel,
		StartFEN:     start,
		Result:       playerResult(res.Outcome, human),
		ResultMethod: corechess.MethodLabel(res.Method),
		PGNResult:    res.PGNResult(),
		MovesUCI:     s.session.History().MovesUCI(),
		MovesSAN:     sanMoves(records),
		OpeningECO:   s.openingECO,
		OpeningName:  s.openingName,
		StartedAt:    s.startedAt,
		EndedAt:      now,
		Duration:     now.Sub(s.startedAt),
	}
	game.PGN = buildPGN(pgnMeta{
		White:       white,
		Black:       black,
		Date:        now,
		Result:      game.PGNResult,
		Termination: game.ResultMethod,
		StartFEN:    start,
		ECO:         game.OpeningECO,
		Opening:     game.OpeningName,
	}, records)
	return game
}

func (s *Service) archive(ctx context.Context, game *domain.ChessGame) {
	id, err := s.repo.InsertGame(ctx, game)
	if errors.Is(err, ErrDuplicateGame) {
		s.logger.Info("game_already_archived", zap.String("session_id", game.SessionUUID))
		return
	}
	if err != nil {
		s.logger.Error("game_archive_failed", zap.String("session_id", game.SessionUUID), zap.Error(err))
		return
	}

	profile, err := s.repo.GetProfile(ctx, game.PlayerID)
	if err != nil {
		s.logger.Warn("profile_load_failed", zap.Error(err))
		return
	}
	profile, delta := applyGameResult(profile, game.PlayerID, game.SkillLevel, game.Result, game.Duration, game.EndedAt)
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		s.logger.Warn("profile_save_failed", zap.Error(err))
		return
	}
	s.logger.Info("game_archived",
		zap.Int64("game_id", id),
		zap.String("session_id", game.SessionUUID),
		zap.String("result", game.Result),
		zap.String("method", game.ResultMethod),
		zap.Int("plies", len(game.MovesUCI)),
		zap.Int("rating", profile.Rating),
		zap.Int("rating_delta", delta),
	)
}

func colorKey(c nchess.Color) string {
	return strings.ToLower(corechess.ColorName(c))
}
