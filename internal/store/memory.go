package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Transactions take the store-wide lock,
// which gives serializable semantics for free. Used by tests and as the dev
// fallback when no DATABASE_URL is configured.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Doc
	subs        map[int]*memorySub
	nextSubID   int
}

type memorySub struct {
	collection string
	docID      string // single-document subscription when non-empty
	query      *Query
	fn         func(Change)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Doc),
		subs:        make(map[int]*memorySub),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Doc, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return CloneDoc(doc), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data Doc, merge bool) error {
	s.mu.Lock()
	changes := s.applySet(collection, id, data, merge)
	s.mu.Unlock()
	s.dispatch(changes)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	changes := s.applyDelete(collection, id)
	s.mu.Unlock()
	s.dispatch(changes)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection, id string, fn func(Change)) (UnsubscribeFunc, error) {
	s.mu.Lock()
	subID := s.nextSubID
	s.nextSubID++
	s.subs[subID] = &memorySub{collection: collection, docID: id, fn: fn}

	var initial []Change
	if doc, ok := s.collections[collection][id]; ok {
		initial = append(initial, Change{Kind: ChangeAdded, Collection: collection, ID: id, Data: CloneDoc(doc)})
	}
	s.mu.Unlock()

	for _, c := range initial {
		fn(c)
	}
	return s.unsubscribeFunc(subID), nil
}

func (s *MemoryStore) SubscribeQuery(ctx context.Context, q Query, fn func(Change)) (UnsubscribeFunc, error) {
	s.mu.Lock()
	subID := s.nextSubID
	s.nextSubID++
	qCopy := q
	s.subs[subID] = &memorySub{collection: q.Collection, query: &qCopy, fn: fn}

	var initial []Change
	for _, d := range s.queryLocked(q) {
		initial = append(initial, Change{Kind: ChangeAdded, Collection: d.Collection, ID: d.ID, Data: d.Data})
	}
	s.mu.Unlock()

	for _, c := range initial {
		fn(c)
	}
	return s.unsubscribeFunc(subID), nil
}

func (s *MemoryStore) unsubscribeFunc(subID int) UnsubscribeFunc {
	return func() {
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}
}

// memoryTx buffers writes so reads inside the transaction see them
// (read-your-writes) while nothing is visible outside until commit.
type memoryTx struct {
	store   *MemoryStore
	writes  map[string]map[string]Doc // pending state; nil Doc = pending delete
	changes []Change
}

func (t *memoryTx) Get(collection, id string) (Doc, bool, error) {
	if pending, ok := t.writes[collection]; ok {
		if doc, touched := pending[id]; touched {
			if doc == nil {
				return nil, false, nil
			}
			return CloneDoc(doc), true, nil
		}
	}
	doc, ok := t.store.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return CloneDoc(doc), true, nil
}

func (t *memoryTx) Set(collection, id string, data Doc, merge bool) error {
	current, exists, _ := t.Get(collection, id)
	next := CloneDoc(data)
	if merge && exists {
		next = MergeDoc(current, data)
	}
	if t.writes[collection] == nil {
		t.writes[collection] = make(map[string]Doc)
	}
	t.writes[collection][id] = next

	kind := ChangeAdded
	if _, existedBefore := t.store.collections[collection][id]; existedBefore {
		kind = ChangeModified
	}
	t.changes = append(t.changes, Change{Kind: kind, Collection: collection, ID: id, Data: CloneDoc(next)})
	return nil
}

func (t *memoryTx) Delete(collection, id string) error {
	if t.writes[collection] == nil {
		t.writes[collection] = make(map[string]Doc)
	}
	t.writes[collection][id] = nil
	if _, existedBefore := t.store.collections[collection][id]; existedBefore {
		t.changes = append(t.changes, Change{Kind: ChangeRemoved, Collection: collection, ID: id})
	}
	return nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	tx := &memoryTx{store: s, writes: make(map[string]map[string]Doc)}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}

	// Commit pending writes
	for collection, pending := range tx.writes {
		for id, doc := range pending {
			if doc == nil {
				delete(s.collections[collection], id)
				continue
			}
			if s.collections[collection] == nil {
				s.collections[collection] = make(map[string]Doc)
			}
			s.collections[collection][id] = doc
		}
	}
	s.mu.Unlock()

	s.dispatch(tx.changes)
	return nil
}

func (s *MemoryStore) applySet(collection, id string, data Doc, merge bool) []Change {
	current, exists := s.collections[collection][id]
	next := CloneDoc(data)
	if merge && exists {
		next = MergeDoc(current, data)
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]Doc)
	}
	s.collections[collection][id] = next

	kind := ChangeAdded
	if exists {
		kind = ChangeModified
	}
	return []Change{{Kind: kind, Collection: collection, ID: id, Data: CloneDoc(next)}}
}

func (s *MemoryStore) applyDelete(collection, id string) []Change {
	if _, exists := s.collections[collection][id]; !exists {
		return nil
	}
	delete(s.collections[collection], id)
	return []Change{{Kind: ChangeRemoved, Collection: collection, ID: id}}
}

func (s *MemoryStore) queryLocked(q Query) []Document {
	var out []Document
	for id, doc := range s.collections[q.Collection] {
		if Matches(q, doc) {
			out = append(out, Document{Collection: q.Collection, ID: id, Data: CloneDoc(doc)})
		}
	}

	if q.OrderBy != "" {
		sort.Slice(out, func(i, j int) bool {
			cmp, ok := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if !ok {
				return false
			}
			if q.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// dispatch delivers committed changes to matching subscribers. Runs outside
// the store lock so callbacks may re-enter the store.
func (s *MemoryStore) dispatch(changes []Change) {
	if len(changes) == 0 {
		return
	}

	for _, c := range changes {
		s.mu.Lock()
		var targets []func(Change)
		for _, sub := range s.subs {
			if sub.collection != c.Collection {
				continue
			}
			if sub.docID != "" {
				if sub.docID == c.ID {
					targets = append(targets, sub.fn)
				}
				continue
			}
			// Query subscription: removals carry no body, deliver and let
			// the consumer decide; everything else is matched here.
			if c.Kind == ChangeRemoved || Matches(*sub.query, c.Data) {
				targets = append(targets, sub.fn)
			}
		}
		s.mu.Unlock()

		for _, fn := range targets {
			fn(c)
		}
	}
}
