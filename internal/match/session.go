package match

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/euras-play/backend/internal/game"
	"github.com/euras-play/backend/internal/store"
)

// Store collections
const (
	QueueCollection   = "queues"
	SessionCollection = "active_games"
)

// Session states
const (
	StateActive   = "ACTIVE"
	StateFinished = "FINISHED"
)

// WinnerDraw is the winner marker for a drawn match.
const WinnerDraw = "DRAW"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionOver     = errors.New("session already has a winner")
)

// PlayerInfo is the per-player display metadata captured at match time.
type PlayerInfo struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Profile identifies a player entering matchmaking.
type Profile struct {
	ID       string
	Username string
	Avatar   string
}

// Session is the shared, mutable state of one active pairing.
type Session struct {
	ID         string
	GameID     string
	Wager      float64
	Players    [2]string // canonical (sorted) order
	PlayerData map[string]PlayerInfo
	State      string
	Board      *game.Board // nil until the first player deals
	Turn       string      // empty once a winner is set
	Winner     string      // empty, a player id, or WinnerDraw
	Rev        int64       // bumped on every mutation
	CreatedAt  time.Time
	LastMoveAt time.Time
}

// SessionID derives the deterministic room id for a pairing. Both sides of a
// race compute the same id, so two joins that discover each other converge
// on one session instead of creating duplicates.
func SessionID(gameID, a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return fmt.Sprintf("room_%s_%s_%s", gameID, ids[0], ids[1])
}

// CanonicalFirst is the player that initializes the board and takes the
// first turn.
func (s *Session) CanonicalFirst() string {
	return s.Players[0]
}

// Opponent returns the other player's id, "" when me is not a participant.
func (s *Session) Opponent(me string) string {
	switch me {
	case s.Players[0]:
		return s.Players[1]
	case s.Players[1]:
		return s.Players[0]
	}
	return ""
}

// Finished reports whether the session reached its terminal state.
func (s *Session) Finished() bool {
	return s.Winner != ""
}

func (s *Session) toDoc() (store.Doc, error) {
	var board any
	if s.Board != nil {
		encoded, err := s.Board.Encode()
		if err != nil {
			return nil, err
		}
		board = encoded
	}

	playerData := make(map[string]any, len(s.PlayerData))
	for id, info := range s.PlayerData {
		playerData[id] = map[string]any{"username": info.Username, "avatar": info.Avatar}
	}

	var turn any
	if s.Turn != "" {
		turn = s.Turn
	}
	var winner any
	if s.Winner != "" {
		winner = s.Winner
	}

	return store.Doc{
		"gameId":     s.GameID,
		"wager":      s.Wager,
		"players":    []any{s.Players[0], s.Players[1]},
		"playerData": playerData,
		"state":      s.State,
		"board":      board,
		"turn":       turn,
		"winner":     winner,
		"rev":        float64(s.Rev),
		"createdAt":  store.EncodeTime(s.CreatedAt),
		"lastMoveAt": store.EncodeTime(s.LastMoveAt),
	}, nil
}

func sessionFromDoc(id string, doc store.Doc) (*Session, error) {
	if doc == nil {
		return nil, ErrSessionNotFound
	}

	s := &Session{ID: id}
	s.GameID, _ = doc["gameId"].(string)
	if w, ok := doc["wager"].(float64); ok {
		s.Wager = w
	}
	s.State, _ = doc["state"].(string)
	s.Turn, _ = doc["turn"].(string)
	s.Winner, _ = doc["winner"].(string)
	if rev, ok := doc["rev"].(float64); ok {
		s.Rev = int64(rev)
	}
	s.CreatedAt = store.DecodeTime(doc["createdAt"])
	s.LastMoveAt = store.DecodeTime(doc["lastMoveAt"])

	players, _ := doc["players"].([]any)
	if len(players) != 2 {
		return nil, fmt.Errorf("session %s: malformed players list", id)
	}
	for i, p := range players {
		pid, ok := p.(string)
		if !ok {
			return nil, fmt.Errorf("session %s: malformed players list", id)
		}
		s.Players[i] = pid
	}

	s.PlayerData = make(map[string]PlayerInfo, 2)
	if pd, ok := doc["playerData"].(map[string]any); ok {
		for pid, v := range pd {
			info, _ := v.(map[string]any)
			username, _ := info["username"].(string)
			avatar, _ := info["avatar"].(string)
			s.PlayerData[pid] = PlayerInfo{Username: username, Avatar: avatar}
		}
	}

	board, err := game.DecodeBoard(doc["board"])
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.Board = board
	return s, nil
}
