// Package storage keeps saved sessions, archived games and profiles in an
// embedded BadgerDB directory.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/park285/cheese-engine-player/internal/domain"
)

const (
	prefixSession     = "session/"
	prefixGame        = "game/"
	prefixPlayerGames = "player-games/"
	prefixGameSession = "game-session/"
	prefixProfile     = "profile/"
	keyGameSequence   = "seq/games"
)

// Storage wraps BadgerDB. It serves both as a session store and as the
// game archive.
type Storage struct {
	db  *badger.DB
	seq *badger.Sequence
	ttl time.Duration
}

// Open opens (or creates) the database under dir. sessionTTL expires saved
// sessions; zero keeps them forever.
func Open(dir string, sessionTTL time.Duration) (*Storage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(keyGameSequence), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("game sequence: %w", err)
	}
	return &Storage{db: db, seq: seq, ttl: sessionTTL}, nil
}

// Close releases the id sequence and closes the database.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var errs error
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

// Save stores the unfinished session of a player.
func (s *Storage) Save(_ context.Context, session *domain.SavedSession) error {
	if session == nil {
		return fmt.Errorf("cannot save nil chess session")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	entry := badger.NewEntry([]byte(prefixSession+session.PlayerID), data)
	if s.ttl > 0 {
		entry = entry.WithTTL(s.ttl)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Load returns nil, nil when the player has no saved session.
func (s *Storage) Load(_ context.Context, playerID string) (*domain.SavedSession, error) {
	var out *domain.SavedSession
	err := s.db.View(func(txn *badger.Txn) error {
		found := &domain.SavedSession{}
		ok, err := getJSON(txn, prefixSession+playerID, found)
		if ok {
			out = found
		}
		return err
	})
	return out, err
}

func (s *Storage) Delete(_ context.Context, playerID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixSession + playerID))
	})
}

// InsertGame archives a finished game and returns its id. A second game for
// the same session returns domain.ErrDuplicateGame.
func (s *Storage) InsertGame(_ context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("cannot insert nil chess game")
	}
	next, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next game id: %w", err)
	}
	id := int64(next) + 1

	err = s.db.Update(func(txn *badger.Txn) error {
		sessionKey := []byte(prefixGameSession + game.SessionUUID + "|" + game.PlayerID)
		if _, err := txn.Get(sessionKey); err == nil {
			return domain.ErrDuplicateGame
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		stored := *game
		stored.ID = id
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		if err := txn.Set(gameKey(id), data); err != nil {
			return err
		}
		if err := txn.Set(playerGameKey(game.PlayerID, id), nil); err != nil {
			return err
		}
		return txn.Set(sessionKey, encodeID(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetRecentGames returns the player's games, newest first.
func (s *Storage) GetRecentGames(_ context.Context, playerID string, limit int) ([]*domain.ChessGame, error) {
	var games []*domain.ChessGame
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixPlayerGames + playerID + "/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		var ids []int64
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, decodeID(key[len(prefix):]))
		}
		for _, id := range ids {
			game := &domain.ChessGame{}
			ok, err := getJSON(txn, string(gameKey(id)), game)
			if err != nil {
				return err
			}
			if ok {
				games = append(games, game)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(games, func(i, j int) bool {
		if !games[i].EndedAt.Equal(games[j].EndedAt) {
			return games[i].EndedAt.After(games[j].EndedAt)
		}
		return games[i].ID > games[j].ID
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

// GetGame returns nil, nil when id is unknown or belongs to someone else.
func (s *Storage) GetGame(_ context.Context, id int64, playerID string) (*domain.ChessGame, error) {
	var out *domain.ChessGame
	err := s.db.View(func(txn *badger.Txn) error {
		game := &domain.ChessGame{}
		ok, err := getJSON(txn, string(gameKey(id)), game)
		if ok && game.PlayerID == playerID {
			out = game
		}
		return err
	})
	return out, err
}

func (s *Storage) GetGameBySession(ctx context.Context, sessionUUID string, playerID string) (*domain.ChessGame, error) {
	var id int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixGameSession + sessionUUID + "|" + playerID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = decodeID(val)
			return nil
		})
	})
	if err != nil || id == 0 {
		return nil, err
	}
	return s.GetGame(ctx, id, playerID)
}

func (s *Storage) GetProfile(_ context.Context, playerID string) (*domain.ChessProfile, error) {
	var out *domain.ChessProfile
	err := s.db.View(func(txn *badger.Txn) error {
		profile := &domain.ChessProfile{}
		ok, err := getJSON(txn, prefixProfile+playerID, profile)
		if ok {
			out = profile
		}
		return err
	})
	return out, err
}

func (s *Storage) UpsertProfile(_ context.Context, profile *domain.ChessProfile) error {
	if profile == nil {
		return nil
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixProfile+profile.PlayerID), data)
	})
}

func getJSON(txn *badger.Txn, key string, dest any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
	return err == nil, err
}

func gameKey(id int64) []byte {
	return append([]byte(prefixGame), encodeID(id)...)
}

func playerGameKey(playerID string, id int64) []byte {
	return append([]byte(prefixPlayerGames+playerID+"/"), encodeID(id)...)
}

// big endian keeps ids in key order
func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
