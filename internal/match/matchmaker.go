package match

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/euras-play/backend/internal/store"
)

// Matchmaker pairs two waiting players wagering the same stake on the same
// game. Pairing is resolved inside a single store transaction, so exactly one
// session is ever created per pairing no matter how the joins interleave.
type Matchmaker struct {
	st        store.Store
	staleness time.Duration
	scanLimit int
}

// NewMatchmaker builds a Matchmaker. staleness is the window beyond which a
// queue entry is presumed abandoned; scanLimit caps the candidate batch.
func NewMatchmaker(st store.Store, staleness time.Duration, scanLimit int) *Matchmaker {
	return &Matchmaker{st: st, staleness: staleness, scanLimit: scanLimit}
}

// Join starts a matchmaking attempt for player. Exactly one of onMatch or
// onError fires, unless the returned cancel function runs first. Cancel is
// synchronous, idempotent, and cleans the player's queue entry best-effort.
func (m *Matchmaker) Join(ctx context.Context, gameID string, wager float64, player Profile,
	onMatch func(sessionID string, opponent PlayerInfo), onError func(err error)) (cancel func()) {

	t := &ticket{
		m:       m,
		gameID:  gameID,
		wager:   wager,
		player:  player,
		onMatch: onMatch,
		onError: onError,
	}
	go t.run(ctx)
	return t.cancel
}

type ticket struct {
	m       *Matchmaker
	gameID  string
	wager   float64
	player  Profile
	onMatch func(string, PlayerInfo)
	onError func(error)

	mu    sync.Mutex
	done  bool // a callback fired or the ticket was cancelled
	unsub store.UnsubscribeFunc
}

func (t *ticket) run(ctx context.Context) {
	st := t.m.st

	// 1. Remove any stale entry of our own so a retry never queues twice.
	if err := st.Delete(ctx, QueueCollection, t.player.ID); err != nil {
		log.Printf("[MATCH] pre-join queue cleanup for %s failed: %v", t.player.ID, err)
	}

	// 2. Candidate search: same game, exact wager, inside the staleness
	// window, longest-waiting first.
	cutoff := time.Now().Add(-t.m.staleness)
	docs, err := st.Query(ctx, store.Query{
		Collection: QueueCollection,
		Filters: []store.Filter{
			{Field: "gameId", Op: store.OpEqual, Value: t.gameID},
			{Field: "wager", Op: store.OpEqual, Value: t.wager},
			{Field: "joinedAt", Op: store.OpGreater, Value: store.EncodeTime(cutoff)},
		},
		OrderBy: "joinedAt",
		Limit:   t.m.scanLimit,
	})
	if err != nil {
		t.fail(fmt.Errorf("candidate query: %w", err))
		return
	}

	// 3. Never match a player against their own (possibly stale) entry.
	var candidate *store.Document
	for i := range docs {
		if docs[i].ID != t.player.ID {
			candidate = &docs[i]
			break
		}
	}

	entry := QueueEntry{
		UserID:   t.player.ID,
		Username: t.player.Username,
		Avatar:   t.player.Avatar,
		GameID:   t.gameID,
		Wager:    t.wager,
		JoinedAt: time.Now(),
	}

	// 4. Atomic resolution: re-read the candidate inside the transaction and
	// either claim it (delete entry + create session) or, if a concurrent
	// joiner got there first, become the new waiter.
	err = st.RunTransaction(ctx, func(tx store.Tx) error {
		if candidate != nil {
			oppDoc, exists, err := tx.Get(QueueCollection, candidate.ID)
			if err != nil {
				return err
			}
			if exists {
				opp := queueEntryFromDoc(oppDoc)
				return t.claim(tx, opp)
			}
			// Candidate was snatched; wait in the queue instead.
		}
		return tx.Set(QueueCollection, t.player.ID, entry.toDoc(), false)
	})
	if err != nil {
		t.fail(fmt.Errorf("pairing transaction: %w", err))
		return
	}

	// 5. Watch for the session to appear, whichever side created it.
	unsub, err := st.SubscribeQuery(ctx, store.Query{
		Collection: SessionCollection,
		Filters: []store.Filter{
			{Field: "players", Op: store.OpArrContains, Value: t.player.ID},
			{Field: "state", Op: store.OpEqual, Value: StateActive},
		},
	}, t.observe)
	if err != nil {
		t.fail(fmt.Errorf("session watch: %w", err))
		return
	}

	t.mu.Lock()
	if t.done {
		// Matched during the initial snapshot, or cancelled meanwhile.
		t.mu.Unlock()
		unsub()
		return
	}
	t.unsub = unsub
	t.mu.Unlock()
}

// claim creates the shared session and removes the claimed queue entry, all
// against the supplied transaction.
func (t *ticket) claim(tx store.Tx, opp QueueEntry) error {
	now := time.Now()
	sess := &Session{
		ID:     SessionID(t.gameID, t.player.ID, opp.UserID),
		GameID: t.gameID,
		Wager:  t.wager,
		PlayerData: map[string]PlayerInfo{
			t.player.ID: {Username: t.player.Username, Avatar: t.player.Avatar},
			opp.UserID:  {Username: opp.Username, Avatar: opp.Avatar},
		},
		State:      StateActive,
		Rev:        1,
		CreatedAt:  now,
		LastMoveAt: now,
	}
	if t.player.ID < opp.UserID {
		sess.Players = [2]string{t.player.ID, opp.UserID}
	} else {
		sess.Players = [2]string{opp.UserID, t.player.ID}
	}
	sess.Turn = sess.Players[0]

	doc, err := sess.toDoc()
	if err != nil {
		return err
	}
	if err := tx.Delete(QueueCollection, opp.UserID); err != nil {
		return err
	}
	return tx.Set(SessionCollection, sess.ID, doc, true)
}

// observe handles session-watch events; the first ACTIVE session for the
// requested game with the opponent slot populated is the match confirmation.
func (t *ticket) observe(c store.Change) {
	if c.Kind == store.ChangeRemoved || c.Data == nil {
		return
	}
	if state, _ := c.Data["state"].(string); state != StateActive {
		return
	}
	if gameID, _ := c.Data["gameId"].(string); gameID != t.gameID {
		return
	}
	sess, err := sessionFromDoc(c.ID, c.Data)
	if err != nil {
		log.Printf("[MATCH] ignoring malformed session %s: %v", c.ID, err)
		return
	}
	oppID := sess.Opponent(t.player.ID)
	if oppID == "" {
		return
	}
	oppInfo, ok := sess.PlayerData[oppID]
	if !ok {
		return
	}

	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	unsub := t.unsub
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	// Step 4 can leave our own queue entry behind when we lost the claim
	// race; clean it up now that the match is confirmed.
	go t.deleteOwnEntry()

	t.onMatch(sess.ID, oppInfo)
}

// fail converts any store failure into the single onError callback. Nothing
// escapes to the caller as a panic or stray goroutine error.
func (t *ticket) fail(err error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	unsub := t.unsub
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	go t.deleteOwnEntry()

	log.Printf("[MATCH] matchmaking failed for %s (%s @ %.4f): %v", t.player.ID, t.gameID, t.wager, err)
	t.onError(err)
}

// cancel stops the ticket. Synchronous and idempotent; queue cleanup runs in
// the background so a slow store never blocks the caller.
func (t *ticket) cancel() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	unsub := t.unsub
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	go t.deleteOwnEntry()
}

func (t *ticket) deleteOwnEntry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.m.st.Delete(ctx, QueueCollection, t.player.ID); err != nil {
		// A dangling entry is dead weight, not a correctness problem: the
		// candidate query always re-filters by recency.
		log.Printf("[MATCH] queue cleanup for %s failed: %v", t.player.ID, err)
	}
}
