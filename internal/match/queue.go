package match

import (
	"time"

	"github.com/euras-play/backend/internal/store"
)

// QueueEntry represents one player actively waiting for an opponent. The
// document id is the player id, so a player can hold at most one live entry.
type QueueEntry struct {
	UserID   string
	Username string
	Avatar   string
	GameID   string
	Wager    float64
	JoinedAt time.Time
}

func (e QueueEntry) toDoc() store.Doc {
	return store.Doc{
		"userId":   e.UserID,
		"username": e.Username,
		"avatar":   e.Avatar,
		"gameId":   e.GameID,
		"wager":    e.Wager,
		"joinedAt": store.EncodeTime(e.JoinedAt),
	}
}

func queueEntryFromDoc(doc store.Doc) QueueEntry {
	var e QueueEntry
	e.UserID, _ = doc["userId"].(string)
	e.Username, _ = doc["username"].(string)
	e.Avatar, _ = doc["avatar"].(string)
	e.GameID, _ = doc["gameId"].(string)
	if w, ok := doc["wager"].(float64); ok {
		e.Wager = w
	}
	e.JoinedAt = store.DecodeTime(doc["joinedAt"])
	return e
}
