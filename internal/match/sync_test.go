package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/euras-play/backend/internal/game"
	"github.com/euras-play/backend/internal/store"
)

func seedSession(t *testing.T, st store.Store, gameID string) *Session {
	t.Helper()
	now := time.Now()
	sess := &Session{
		ID:      SessionID(gameID, "alice", "bob"),
		GameID:  gameID,
		Wager:   1.0,
		Players: [2]string{"alice", "bob"},
		PlayerData: map[string]PlayerInfo{
			"alice": {Username: "user-alice"},
			"bob":   {Username: "user-bob"},
		},
		State:      StateActive,
		Turn:       "alice",
		Rev:        1,
		CreatedAt:  now,
		LastMoveAt: now,
	}
	doc, err := sess.toDoc()
	if err != nil {
		t.Fatalf("Failed to encode session: %v", err)
	}
	if err := st.Set(context.Background(), SessionCollection, sess.ID, doc, false); err != nil {
		t.Fatalf("Failed to seed session: %v", err)
	}
	return sess
}

func TestGetMissingSession(t *testing.T) {
	s := NewSync(store.NewMemoryStore())
	if _, err := s.Get(context.Background(), "room_dice_x_y"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestApplyMutationBumpsRevAndMerges(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSync(st)
	seeded := seedSession(t, st, game.GameConnectFour)

	board, err := game.Init(game.GameConnectFour, seeded.Players)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	board.ConnectFour.Drop(3, "alice")

	turn := "bob"
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Board: board, Turn: &turn}); err != nil {
		t.Fatalf("ApplyMutation failed: %v", err)
	}

	sess, err := s.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Rev != seeded.Rev+1 {
		t.Errorf("Expected rev %d, got %d", seeded.Rev+1, sess.Rev)
	}
	if sess.Turn != "bob" {
		t.Errorf("Expected turn bob, got %s", sess.Turn)
	}
	if sess.Board == nil || sess.Board.ConnectFour == nil {
		t.Fatalf("Board missing after mutation")
	}
	if sess.Board.ConnectFour.Cells[game.ConnectFourRows-1][3] != "alice" {
		t.Errorf("Board mutation lost")
	}
	if !sess.LastMoveAt.After(seeded.LastMoveAt.Add(-time.Second)) {
		t.Errorf("lastMoveAt not refreshed")
	}
}

func TestWinnerIsWriteOnce(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSync(st)
	seeded := seedSession(t, st, game.GameDice)

	winner := "alice"
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Winner: &winner}); err != nil {
		t.Fatalf("First winner write failed: %v", err)
	}

	sess, _ := s.Get(context.Background(), seeded.ID)
	if sess.Winner != "alice" {
		t.Errorf("Expected winner alice, got %s", sess.Winner)
	}
	if sess.State != StateFinished {
		t.Errorf("Winner write should close the session, state = %s", sess.State)
	}
	if sess.Turn != "" {
		t.Errorf("Winner write should clear the turn, got %s", sess.Turn)
	}

	// Any further mutation must be rejected.
	other := "bob"
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Winner: &other}); !errors.Is(err, ErrSessionOver) {
		t.Errorf("Second winner write: expected ErrSessionOver, got %v", err)
	}
	turn := "bob"
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Turn: &turn}); !errors.Is(err, ErrSessionOver) {
		t.Errorf("Post-winner move: expected ErrSessionOver, got %v", err)
	}

	sess, _ = s.Get(context.Background(), seeded.ID)
	if sess.Winner != "alice" {
		t.Errorf("Winner was overwritten to %s", sess.Winner)
	}
}

func TestDrawWinnerClosesSession(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSync(st)
	seeded := seedSession(t, st, game.GameConnectFour)

	draw := WinnerDraw
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Winner: &draw}); err != nil {
		t.Fatalf("Draw write failed: %v", err)
	}
	sess, _ := s.Get(context.Background(), seeded.ID)
	if sess.Winner != WinnerDraw {
		t.Errorf("Expected DRAW marker, got %s", sess.Winner)
	}
	if !sess.Finished() {
		t.Errorf("Draw should finish the session")
	}
}

func TestInitBoardDealsOnceForCanonicalFirst(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSync(st)
	seeded := seedSession(t, st, game.GameMauMau)

	// The non-first player's init is a no-op.
	if err := s.InitBoard(context.Background(), seeded.ID, "bob"); err != nil {
		t.Fatalf("InitBoard (non-first) errored: %v", err)
	}
	sess, _ := s.Get(context.Background(), seeded.ID)
	if sess.Board != nil {
		t.Fatalf("Non-first player dealt the board")
	}

	if err := s.InitBoard(context.Background(), seeded.ID, "alice"); err != nil {
		t.Fatalf("InitBoard failed: %v", err)
	}
	sess, _ = s.Get(context.Background(), seeded.ID)
	if sess.Board == nil || sess.Board.MauMau == nil {
		t.Fatalf("Board not dealt")
	}
	if len(sess.Board.MauMau.Hands["alice"]) != game.MauMauHandSize {
		t.Errorf("alice dealt %d cards", len(sess.Board.MauMau.Hands["alice"]))
	}
	if sess.Turn != "alice" {
		t.Errorf("Deal should hand the turn to the canonical first player, got %s", sess.Turn)
	}
	firstRev := sess.Rev

	// A second init must leave the dealt board untouched.
	if err := s.InitBoard(context.Background(), seeded.ID, "alice"); err != nil {
		t.Fatalf("Repeat InitBoard errored: %v", err)
	}
	again, _ := s.Get(context.Background(), seeded.ID)
	if again.Rev != firstRev {
		t.Errorf("Repeat init rewrote the session (rev %d -> %d)", firstRev, again.Rev)
	}
}

func TestSubscribeStreamsSnapshots(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSync(st)
	seeded := seedSession(t, st, game.GameDice)

	var got []*Session
	unsub, err := s.Subscribe(context.Background(), seeded.ID, func(sess *Session) {
		got = append(got, sess)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	if len(got) != 1 {
		t.Fatalf("Expected initial snapshot, got %d events", len(got))
	}
	if got[0].ID != seeded.ID || got[0].State != StateActive {
		t.Errorf("Bad initial snapshot: %+v", got[0])
	}

	turn := "bob"
	if err := s.ApplyMutation(context.Background(), seeded.ID, Mutation{Turn: &turn}); err != nil {
		t.Fatalf("ApplyMutation failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected snapshot after mutation, got %d events", len(got))
	}
	if got[1].Turn != "bob" || got[1].Rev != seeded.Rev+1 {
		t.Errorf("Stale snapshot after mutation: turn=%s rev=%d", got[1].Turn, got[1].Rev)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	board, err := game.Init(game.GameConnectFour, [2]string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	now := time.Now().Truncate(time.Millisecond)
	in := &Session{
		ID:      "room_connect4_alice_bob",
		GameID:  game.GameConnectFour,
		Wager:   2.5,
		Players: [2]string{"alice", "bob"},
		PlayerData: map[string]PlayerInfo{
			"alice": {Username: "user-alice", Avatar: "a"},
			"bob":   {Username: "user-bob", Avatar: "b"},
		},
		State:      StateActive,
		Board:      board,
		Turn:       "alice",
		Rev:        3,
		CreatedAt:  now,
		LastMoveAt: now,
	}

	doc, err := in.toDoc()
	if err != nil {
		t.Fatalf("toDoc failed: %v", err)
	}
	out, err := sessionFromDoc(in.ID, doc)
	if err != nil {
		t.Fatalf("sessionFromDoc failed: %v", err)
	}

	if out.GameID != in.GameID || out.Wager != in.Wager || out.Players != in.Players {
		t.Errorf("Identity fields lost: %+v", out)
	}
	if out.Turn != "alice" || out.Winner != "" {
		t.Errorf("Turn/winner mapping wrong: turn=%q winner=%q", out.Turn, out.Winner)
	}
	if out.Board == nil || out.Board.Game != game.GameConnectFour {
		t.Errorf("Board lost in round trip")
	}
	if out.PlayerData["bob"].Username != "user-bob" {
		t.Errorf("Player data lost: %+v", out.PlayerData)
	}
	if out.CreatedAt.UnixNano() != in.CreatedAt.UnixNano() {
		t.Errorf("Timestamps drifted: %v vs %v", out.CreatedAt, in.CreatedAt)
	}
}
