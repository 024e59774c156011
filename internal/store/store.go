package store

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	// ErrNotConfigured means the store backend is missing required settings
	// (no DATABASE_URL / REDIS_URL). Callers show a configuration message
	// instead of a generic network error.
	ErrNotConfigured = errors.New("store is not configured")

	// ErrConnection wraps transient backend failures (network blip during a
	// query or transaction).
	ErrConnection = errors.New("store connection failed")

	// ErrTxAborted is returned from RunTransaction when the callback bails out.
	ErrTxAborted = errors.New("transaction aborted")
)

// Doc is a schemaless document body. Values must stay JSON-compatible
// (string, float64, bool, nil, map[string]any, []any) so both backends can
// round-trip them.
type Doc map[string]any

// Document is a Doc together with its location.
type Document struct {
	Collection string
	ID         string
	Data       Doc
}

// Op is a filter comparison operator.
type Op string

const (
	OpEqual       Op = "=="
	OpGreater     Op = ">"
	OpGreaterEq   Op = ">="
	OpLess        Op = "<"
	OpLessEq      Op = "<="
	OpArrContains Op = "array-contains"
)

// Filter constrains a query to documents whose named field compares true
// against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered scan over one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string // field name; empty = unspecified order
	Descending bool
	Limit      int // 0 = no limit
}

// ChangeKind tells a subscriber what happened to a document.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// Change is one document event delivered to a subscriber. Data is the full
// post-change document (nil for ChangeRemoved). Subscribers always get the
// latest state, never a guaranteed replay of every intermediate write.
type Change struct {
	Kind       ChangeKind
	Collection string
	ID         string
	Data       Doc
}

// UnsubscribeFunc stops a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Tx is the view of the store inside a transaction. Reads see prior writes
// made through the same Tx, and the whole set of touched documents commits
// or rolls back together.
type Tx interface {
	Get(collection, id string) (Doc, bool, error)
	Set(collection, id string, data Doc, merge bool) error
	Delete(collection, id string) error
}

// Store is the document database contract the matchmaking core is built on.
// The pairing protocol needs single-document serializable transactions from
// RunTransaction; everything else is last-write-wins.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, bool, error)
	Set(ctx context.Context, collection, id string, data Doc, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)

	// Subscribe watches a single document. The current state (if any) is
	// delivered first as ChangeAdded.
	Subscribe(ctx context.Context, collection, id string, fn func(Change)) (UnsubscribeFunc, error)

	// SubscribeQuery watches every document matching q. Current matches are
	// delivered first as ChangeAdded events.
	SubscribeQuery(ctx context.Context, q Query, fn func(Change)) (UnsubscribeFunc, error)

	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// TimeLayout is the canonical encoding for timestamps held in documents.
// Fixed-width UTC so that lexicographic comparison matches chronological
// order in both backends.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// EncodeTime renders t in the canonical document timestamp encoding.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DecodeTime parses a canonical document timestamp. Zero time on failure.
func DecodeTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CloneDoc deep-copies a document body so callers can mutate their copy
// without racing the store's internal state.
func CloneDoc(d Doc) Doc {
	if d == nil {
		return nil
	}
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Doc:
		return map[string]any(CloneDoc(val))
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// MergeDoc applies src onto dst field by field (top-level merge, the
// semantics of a Set with merge=true).
func MergeDoc(dst, src Doc) Doc {
	if dst == nil {
		return CloneDoc(src)
	}
	out := CloneDoc(dst)
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

// Matches reports whether doc satisfies every filter of q. Used by both
// backends to evaluate subscriptions locally.
func Matches(q Query, doc Doc) bool {
	if doc == nil {
		return false
	}
	for _, f := range q.Filters {
		if !matchFilter(f, doc) {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, doc Doc) bool {
	got, exists := doc[f.Field]
	if !exists {
		return false
	}

	if f.Op == OpArrContains {
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if item == f.Value {
				return true
			}
		}
		return false
	}

	cmp, ok := compareValues(got, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return cmp == 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessEq:
		return cmp <= 0
	}
	return false
}

// compareValues orders two field values of the same kind. Numbers are
// normalized to float64 since JSON decoding produces float64 anyway.
func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}

	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		if ab == bb {
			return 0, true
		}
		if !ab {
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
