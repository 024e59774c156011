package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSetGetAndMerge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "users", "u1", Doc{"username": "alpha", "balance": 10.0}, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	doc, ok, err := s.Get(ctx, "users", "u1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if doc["username"] != "alpha" {
		t.Errorf("Expected username alpha, got %v", doc["username"])
	}

	// Merge should only touch the named fields
	if err := s.Set(ctx, "users", "u1", Doc{"balance": 25.0}, true); err != nil {
		t.Fatalf("Merge set failed: %v", err)
	}
	doc, _, _ = s.Get(ctx, "users", "u1")
	if doc["username"] != "alpha" {
		t.Errorf("Merge clobbered username: %v", doc["username"])
	}
	if doc["balance"] != 25.0 {
		t.Errorf("Expected balance 25, got %v", doc["balance"])
	}

	// Non-merge set replaces the whole document
	if err := s.Set(ctx, "users", "u1", Doc{"balance": 5.0}, false); err != nil {
		t.Fatalf("Replace set failed: %v", err)
	}
	doc, _, _ = s.Get(ctx, "users", "u1")
	if _, exists := doc["username"]; exists {
		t.Errorf("Replace set kept stale field: %v", doc)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "users", "u1", Doc{"tags": []any{"a"}}, false)
	doc, _, _ := s.Get(ctx, "users", "u1")
	doc["tags"] = []any{"mutated"}

	fresh, _, _ := s.Get(ctx, "users", "u1")
	tags := fresh["tags"].([]any)
	if tags[0] != "a" {
		t.Errorf("Caller mutation leaked into the store: %v", tags)
	}
}

func TestDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "queues", "p1", Doc{"gameId": "dice"}, false)
	if err := s.Delete(ctx, "queues", "p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "queues", "p1"); ok {
		t.Errorf("Document survived delete")
	}

	// Deleting a missing document is not an error
	if err := s.Delete(ctx, "queues", "missing"); err != nil {
		t.Errorf("Delete of missing document errored: %v", err)
	}
}

func TestQueryFiltersOrderAndLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "queues", "a", Doc{"gameId": "dice", "wager": 1.0, "joinedAt": "2026-01-01T00:00:01.000000000Z"}, false)
	s.Set(ctx, "queues", "b", Doc{"gameId": "dice", "wager": 1.0, "joinedAt": "2026-01-01T00:00:03.000000000Z"}, false)
	s.Set(ctx, "queues", "c", Doc{"gameId": "dice", "wager": 2.0, "joinedAt": "2026-01-01T00:00:02.000000000Z"}, false)
	s.Set(ctx, "queues", "d", Doc{"gameId": "connect4", "wager": 1.0, "joinedAt": "2026-01-01T00:00:00.000000000Z"}, false)

	docs, err := s.Query(ctx, Query{
		Collection: "queues",
		Filters: []Filter{
			{Field: "gameId", Op: OpEqual, Value: "dice"},
			{Field: "wager", Op: OpEqual, Value: 1.0},
		},
		OrderBy: "joinedAt",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(docs))
	}
	if docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("Wrong order: %s, %s", docs[0].ID, docs[1].ID)
	}

	docs, _ = s.Query(ctx, Query{Collection: "queues", OrderBy: "joinedAt", Limit: 2})
	if len(docs) != 2 {
		t.Errorf("Limit ignored: got %d docs", len(docs))
	}
	if docs[0].ID != "d" {
		t.Errorf("Expected oldest entry first, got %s", docs[0].ID)
	}
}

func TestQueryArrayContains(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "active_games", "g1", Doc{"players": []any{"p1", "p2"}, "state": "ACTIVE"}, false)
	s.Set(ctx, "active_games", "g2", Doc{"players": []any{"p3", "p4"}, "state": "ACTIVE"}, false)

	docs, err := s.Query(ctx, Query{
		Collection: "active_games",
		Filters: []Filter{
			{Field: "players", Op: OpArrContains, Value: "p2"},
		},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "g1" {
		t.Errorf("array-contains matched wrong documents: %v", docs)
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "users", "u1", Doc{"balance": 1.0}, false)

	var mu sync.Mutex
	var got []Change
	unsub, err := s.Subscribe(ctx, "users", "u1", func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	mu.Lock()
	if len(got) != 1 || got[0].Kind != ChangeAdded {
		t.Fatalf("Expected initial ChangeAdded, got %v", got)
	}
	mu.Unlock()

	s.Set(ctx, "users", "u1", Doc{"balance": 2.0}, true)
	s.Delete(ctx, "users", "u1")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(got))
	}
	if got[1].Kind != ChangeModified || got[1].Data["balance"] != 2.0 {
		t.Errorf("Wrong modify event: %+v", got[1])
	}
	if got[2].Kind != ChangeRemoved {
		t.Errorf("Wrong removal event: %+v", got[2])
	}
}

func TestSubscribeQueryFiltersEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var got []Change
	unsub, err := s.SubscribeQuery(ctx, Query{
		Collection: "active_games",
		Filters: []Filter{
			{Field: "players", Op: OpArrContains, Value: "p1"},
			{Field: "state", Op: OpEqual, Value: "ACTIVE"},
		},
	}, func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SubscribeQuery failed: %v", err)
	}
	defer unsub()

	// Non-matching document should not be delivered
	s.Set(ctx, "active_games", "other", Doc{"players": []any{"p3", "p4"}, "state": "ACTIVE"}, false)
	// Matching document should
	s.Set(ctx, "active_games", "mine", Doc{"players": []any{"p1", "p2"}, "state": "ACTIVE"}, false)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].ID != "mine" {
		t.Errorf("Delivered wrong document: %s", got[0].ID)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	count := 0
	unsub, _ := s.Subscribe(ctx, "users", "u1", func(Change) { count++ })
	unsub()
	unsub() // idempotent

	s.Set(ctx, "users", "u1", Doc{"balance": 1.0}, false)
	if count != 0 {
		t.Errorf("Subscriber fired after unsubscribe: %d", count)
	}
}

func TestTransactionReadYourWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Set("users", "u1", Doc{"balance": 1.0}, false); err != nil {
			return err
		}
		doc, ok, err := tx.Get("users", "u1")
		if err != nil || !ok {
			t.Fatalf("In-tx read missed pending write: ok=%v err=%v", ok, err)
		}
		if doc["balance"] != 1.0 {
			t.Errorf("In-tx read returned %v", doc["balance"])
		}

		if err := tx.Delete("users", "u1"); err != nil {
			return err
		}
		if _, ok, _ := tx.Get("users", "u1"); ok {
			t.Errorf("In-tx read saw document after pending delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(tx Tx) error {
		tx.Set("users", "u1", Doc{"balance": 99.0}, false)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error, got %v", err)
	}
	if _, ok, _ := s.Get(ctx, "users", "u1"); ok {
		t.Errorf("Aborted transaction leaked a write")
	}
}

func TestTransactionsSerialize(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Set(ctx, "users", "u1", Doc{"balance": 0.0}, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunTransaction(ctx, func(tx Tx) error {
				doc, _, err := tx.Get("users", "u1")
				if err != nil {
					return err
				}
				balance := doc["balance"].(float64)
				return tx.Set("users", "u1", Doc{"balance": balance + 1}, true)
			})
		}()
	}
	wg.Wait()

	doc, _, _ := s.Get(ctx, "users", "u1")
	if doc["balance"] != 50.0 {
		t.Errorf("Lost updates: balance = %v, want 50", doc["balance"])
	}
}

func TestEncodeTimeOrdersLexicographically(t *testing.T) {
	early := EncodeTime(DecodeTime("2026-01-01T00:00:00.000000000Z"))
	late := EncodeTime(DecodeTime("2026-01-01T00:00:00.000000100Z"))
	if !(early < late) {
		t.Errorf("Timestamp encoding broke lexicographic order: %s vs %s", early, late)
	}
}
