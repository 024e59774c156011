package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Game ids, matching the portal's game catalog.
const (
	GameConnectFour = "connect4"
	GameDice        = "dice"
	GameMauMau      = "maumau"
)

var ErrUnknownGame = errors.New("unknown game id")

// Board is the session's game payload. One shared envelope, one body per
// game variant — a tagged union instead of an untyped blob, so a session
// document can only ever carry a payload shaped for its own game.
type Board struct {
	Game        string       `json:"game"`
	ConnectFour *ConnectFour `json:"connect4,omitempty"`
	Dice        *DiceDuel    `json:"dice,omitempty"`
	MauMau      *MauMau      `json:"maumau,omitempty"`
}

// Init builds the initial board for a game. Called exactly once per session
// by the canonically-first player.
func Init(gameID string, players [2]string) (*Board, error) {
	switch gameID {
	case GameConnectFour:
		return &Board{Game: GameConnectFour, ConnectFour: NewConnectFour()}, nil
	case GameDice:
		return &Board{Game: GameDice, Dice: NewDiceDuel(players)}, nil
	case GameMauMau:
		b, err := DealMauMau(players)
		if err != nil {
			return nil, err
		}
		return &Board{Game: GameMauMau, MauMau: b}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameID)
}

// Known reports whether gameID has a registered payload variant.
func Known(gameID string) bool {
	switch gameID {
	case GameConnectFour, GameDice, GameMauMau:
		return true
	}
	return false
}

// Encode renders the board as a generic document value (JSON object tree).
func (b *Board) Encode() (map[string]any, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode board: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode board: %w", err)
	}
	return out, nil
}

// DecodeBoard parses a document value back into a Board. nil in, nil out.
func DecodeBoard(v any) (*Board, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	var b Board
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	return &b, nil
}
