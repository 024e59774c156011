package match

import (
	"context"
	"log"
	"time"

	"github.com/euras-play/backend/internal/game"
	"github.com/euras-play/backend/internal/store"
)

// Sync is the live synchronization channel for one or more game sessions:
// subscribers get the full session snapshot on every change, and mutations
// are merged field by field into the shared document.
type Sync struct {
	st store.Store
}

func NewSync(st store.Store) *Sync {
	return &Sync{st: st}
}

// Mutation is a partial session update. Nil fields are left untouched; a
// pointer to the empty string clears turn.
type Mutation struct {
	Board  *game.Board
	Turn   *string
	Winner *string
	State  *string
}

// Get loads the current session snapshot.
func (s *Sync) Get(ctx context.Context, sessionID string) (*Session, error) {
	doc, ok, err := s.st.Get(ctx, SessionCollection, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sessionFromDoc(sessionID, doc)
}

// Subscribe pushes the full session state to fn on every change. Game logic
// must only ever need the latest snapshot: the store serializes writers but
// does not replay intermediate states.
func (s *Sync) Subscribe(ctx context.Context, sessionID string, fn func(*Session)) (store.UnsubscribeFunc, error) {
	return s.st.Subscribe(ctx, SessionCollection, sessionID, func(c store.Change) {
		if c.Kind == store.ChangeRemoved || c.Data == nil {
			return
		}
		sess, err := sessionFromDoc(c.ID, c.Data)
		if err != nil {
			log.Printf("[SYNC] dropping malformed snapshot for %s: %v", c.ID, err)
			return
		}
		fn(sess)
	})
}

// ApplyMutation merges a partial update into the session document. The write
// runs in a transaction so the winner stays write-once: any mutation against
// a session that already has a winner is rejected with ErrSessionOver.
// Setting a winner clears the turn and closes the session in the same write.
func (s *Sync) ApplyMutation(ctx context.Context, sessionID string, mut Mutation) error {
	return s.st.RunTransaction(ctx, func(tx store.Tx) error {
		doc, ok, err := tx.Get(SessionCollection, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSessionNotFound
		}
		sess, err := sessionFromDoc(sessionID, doc)
		if err != nil {
			return err
		}
		if sess.Finished() {
			return ErrSessionOver
		}

		patch := store.Doc{
			"rev":        float64(sess.Rev + 1),
			"lastMoveAt": store.EncodeTime(time.Now()),
		}
		if mut.Board != nil {
			encoded, err := mut.Board.Encode()
			if err != nil {
				return err
			}
			patch["board"] = encoded
		}
		if mut.Turn != nil {
			if *mut.Turn == "" {
				patch["turn"] = nil
			} else {
				patch["turn"] = *mut.Turn
			}
		}
		if mut.State != nil {
			patch["state"] = *mut.State
		}
		if mut.Winner != nil && *mut.Winner != "" {
			patch["winner"] = *mut.Winner
			patch["turn"] = nil
			if mut.State == nil {
				patch["state"] = StateFinished
			}
		}
		return tx.Set(SessionCollection, sessionID, patch, true)
	})
}

// InitBoard performs the one-time deal. Only the canonically-first player
// writes the board, and the transaction re-checks that it is still null, so
// a double-fired snapshot cannot deal twice. Callers additionally keep a
// client-local in-flight flag to avoid issuing duplicate writes at all.
func (s *Sync) InitBoard(ctx context.Context, sessionID, me string) error {
	return s.st.RunTransaction(ctx, func(tx store.Tx) error {
		doc, ok, err := tx.Get(SessionCollection, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSessionNotFound
		}
		sess, err := sessionFromDoc(sessionID, doc)
		if err != nil {
			return err
		}
		if sess.Board != nil || sess.Finished() {
			return nil
		}
		if sess.CanonicalFirst() != me {
			return nil
		}

		board, err := game.Init(sess.GameID, sess.Players)
		if err != nil {
			return err
		}
		encoded, err := board.Encode()
		if err != nil {
			return err
		}
		return tx.Set(SessionCollection, sessionID, store.Doc{
			"board":      encoded,
			"turn":       sess.CanonicalFirst(),
			"rev":        float64(sess.Rev + 1),
			"lastMoveAt": store.EncodeTime(time.Now()),
		}, true)
	})
}
