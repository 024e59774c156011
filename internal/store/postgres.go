package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// PostgresStore keeps documents in a single JSONB table and fans change
// events out through Redis pub/sub (channel "store:<collection>"). The
// pairing transaction maps to a SQL transaction with FOR UPDATE reads, which
// is what makes the claim-or-enqueue step atomic across concurrent joiners.
type PostgresStore struct {
	db  *sqlx.DB
	rdb *redis.Client
}

// storeEvent is the wire shape published to Redis on every committed write.
type storeEvent struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Data       Doc    `json:"data,omitempty"`
}

// NewPostgresStore wires the SQL and pub/sub halves together.
func NewPostgresStore(db *sqlx.DB, rdb *redis.Client) (*PostgresStore, error) {
	if db == nil || rdb == nil {
		return nil, ErrNotConfigured
	}
	return &PostgresStore{db: db, rdb: rdb}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Doc, bool, error) {
	var raw []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s/%s: %v", ErrConnection, collection, id, err)
	}
	return decodeDoc(raw)
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data Doc, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	update := `data = EXCLUDED.data`
	if merge {
		update = `data = documents.data || EXCLUDED.data`
	}
	var inserted bool
	err = s.db.QueryRowxContext(ctx, fmt.Sprintf(`
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET %s, updated_at = NOW()
		RETURNING (xmax = 0)
	`, update), collection, id, raw).Scan(&inserted)
	if err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", ErrConnection, collection, id, err)
	}

	kind := ChangeModified
	if inserted {
		kind = ChangeAdded
	}
	// Re-read for merge sets so subscribers receive the full document.
	body := data
	if merge && !inserted {
		if full, ok, gerr := s.Get(ctx, collection, id); gerr == nil && ok {
			body = full
		}
	}
	s.publish(ctx, Change{Kind: kind, Collection: collection, ID: id, Data: body})
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrConnection, collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(ctx, Change{Kind: ChangeRemoved, Collection: collection, ID: id})
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	sqlQuery, args := buildQuerySQL(q)
	rows, err := s.db.QueryxContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrConnection, q.Collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrConnection, q.Collection, err)
		}
		doc, _, derr := decodeDoc(raw)
		if derr != nil {
			return nil, derr
		}
		out = append(out, Document{Collection: q.Collection, ID: id, Data: doc})
	}
	return out, rows.Err()
}

// buildQuerySQL translates a Query into a JSONB scan. Numeric filter values
// are cast so 0.1 stored as a JSON number compares as a number, not text.
func buildQuerySQL(q Query) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		n := len(args) + 1
		switch {
		case f.Op == OpArrContains:
			fmt.Fprintf(&b, ` AND data->'%s' ? $%d`, f.Field, n)
			args = append(args, f.Value)
		default:
			if fv, ok := toFloat(f.Value); ok {
				fmt.Fprintf(&b, ` AND (data->>'%s')::numeric %s $%d`, f.Field, sqlOp(f.Op), n)
				args = append(args, fv)
			} else {
				fmt.Fprintf(&b, ` AND data->>'%s' %s $%d`, f.Field, sqlOp(f.Op), n)
				args = append(args, f.Value)
			}
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY data->>'%s' %s`, q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, q.Limit)
	}
	return b.String(), args
}

func sqlOp(op Op) string {
	switch op {
	case OpEqual:
		return "="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	}
	return "="
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection, id string, fn func(Change)) (UnsubscribeFunc, error) {
	return s.listen(ctx, collection, fn, func(c Change) bool { return c.ID == id }, func() []Change {
		doc, ok, err := s.Get(ctx, collection, id)
		if err != nil || !ok {
			return nil
		}
		return []Change{{Kind: ChangeAdded, Collection: collection, ID: id, Data: doc}}
	})
}

func (s *PostgresStore) SubscribeQuery(ctx context.Context, q Query, fn func(Change)) (UnsubscribeFunc, error) {
	match := func(c Change) bool {
		return c.Kind == ChangeRemoved || Matches(q, c.Data)
	}
	return s.listen(ctx, q.Collection, fn, match, func() []Change {
		docs, err := s.Query(ctx, q)
		if err != nil {
			return nil
		}
		out := make([]Change, 0, len(docs))
		for _, d := range docs {
			out = append(out, Change{Kind: ChangeAdded, Collection: d.Collection, ID: d.ID, Data: d.Data})
		}
		return out
	})
}

// listen opens the pub/sub channel first, then delivers the initial snapshot,
// so events arriving during the initial read sit in the channel buffer
// instead of being lost. Duplicate delivery is possible around the seam;
// consumers act on full snapshots, so replays are harmless.
func (s *PostgresStore) listen(ctx context.Context, collection string, fn func(Change), match func(Change) bool, initial func() []Change) (UnsubscribeFunc, error) {
	pubsub := s.rdb.Subscribe(ctx, channelFor(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrConnection, collection, err)
	}
	ch := pubsub.Channel()

	go func() {
		for _, c := range initial() {
			if match(c) {
				fn(c)
			}
		}
		for msg := range ch {
			var ev storeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[STORE] invalid change payload on %s: %v", msg.Channel, err)
				continue
			}
			c := Change{Kind: kindFromString(ev.Kind), Collection: ev.Collection, ID: ev.ID, Data: ev.Data}
			if match(c) {
				fn(c)
			}
		}
	}()

	return func() { pubsub.Close() }, nil
}

// pgTx runs the callback against an open SQL transaction. Gets take row
// locks (FOR UPDATE) so two joiners cannot both claim the same queue entry.
type pgTx struct {
	ctx     context.Context
	tx      *sqlx.Tx
	changes []Change
}

func (t *pgTx) Get(collection, id string) (Doc, bool, error) {
	var raw []byte
	err := t.tx.QueryRowxContext(t.ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: tx get %s/%s: %v", ErrConnection, collection, id, err)
	}
	return decodeDoc(raw)
}

func (t *pgTx) Set(collection, id string, data Doc, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	update := `data = EXCLUDED.data`
	if merge {
		update = `data = documents.data || EXCLUDED.data`
	}
	var inserted bool
	err = t.tx.QueryRowxContext(t.ctx, fmt.Sprintf(`
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET %s, updated_at = NOW()
		RETURNING (xmax = 0)
	`, update), collection, id, raw).Scan(&inserted)
	if err != nil {
		return fmt.Errorf("%w: tx set %s/%s: %v", ErrConnection, collection, id, err)
	}

	kind := ChangeModified
	if inserted {
		kind = ChangeAdded
	}
	body := data
	if merge && !inserted {
		if full, ok, gerr := t.Get(collection, id); gerr == nil && ok {
			body = full
		}
	}
	t.changes = append(t.changes, Change{Kind: kind, Collection: collection, ID: id, Data: body})
	return nil
}

func (t *pgTx) Delete(collection, id string) error {
	res, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: tx delete %s/%s: %v", ErrConnection, collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		t.changes = append(t.changes, Change{Kind: ChangeRemoved, Collection: collection, ID: id})
	}
	return nil
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrConnection, err)
	}
	defer sqlTx.Rollback()

	tx := &pgTx{ctx: ctx, tx: sqlTx}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrConnection, err)
	}

	for _, c := range tx.changes {
		s.publish(ctx, c)
	}
	return nil
}

// publish is best-effort: a lost notification only delays a subscriber until
// its next snapshot, it never loses committed data.
func (s *PostgresStore) publish(ctx context.Context, c Change) {
	ev := storeEvent{Kind: c.Kind.String(), Collection: c.Collection, ID: c.ID, Data: c.Data}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[STORE] failed to encode change %s/%s: %v", c.Collection, c.ID, err)
		return
	}
	if err := s.rdb.Publish(ctx, channelFor(c.Collection), payload).Err(); err != nil {
		log.Printf("[STORE] failed to publish change %s/%s: %v", c.Collection, c.ID, err)
	}
}

func channelFor(collection string) string {
	return "store:" + collection
}

func decodeDoc(raw []byte) (Doc, bool, error) {
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}

func kindFromString(s string) ChangeKind {
	switch s {
	case "added":
		return ChangeAdded
	case "removed":
		return ChangeRemoved
	}
	return ChangeModified
}
