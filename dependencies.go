package rehire

import (
	"cmp"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// record is the state of one identity before it was substituted. A nil entry
// means the cache had no entry for the identity.
type record struct {
	entry *Entry
}

func (r record) had() bool { return r.entry != nil }

// A Session is the bounded interval between a [Substitutor.Patch] and the
// matching [Substitutor.Restore]. A session is used for one load, and
// discarded after that.
type Session struct {
	id      string
	records map[Identity]record
}

// NewSession creates an empty substitution session.
func NewSession() *Session {
	return &Session{
		id:      uuid.NewString(),
		records: make(map[Identity]record),
	}
}

// ID returns a unique id of the session, used for logging.
func (s *Session) ID() string { return s.id }

// Keys returns the identities currently substituted by the session, sorted.
func (s *Session) Keys() []Identity {
	keys := make([]Identity, 0, len(s.records))
	for k := range s.All() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// All iterates the substituted identities, and the entry each had before it
// was substituted; nil if the cache had no entry.
func (s *Session) All() iter.Seq2[Identity, *Entry] {
	return func(yield func(Identity, *Entry) bool) {
		if s == nil {
			return
		}
		for k, r := range s.records {
			if !yield(k, r.entry) {
				return
			}
		}
	}
}

// AllSorted is like All, but iterates in identity order.
func (s *Session) AllSorted() iter.Seq2[Identity, *Entry] {
	var res []kv[Identity, record]
	if s != nil {
		res = iterateSorted(s.records)
	}
	return func(yield func(Identity, *Entry) bool) {
		for _, kv := range res {
			if !yield(kv.k, kv.v.entry) {
				return
			}
		}
	}
}

// Substitutor patches and restores entries in a [Cache]. One substitutor can
// serve several sessions, but two live sessions can not substitute the same
// identity.
type Substitutor struct {
	cache Cache

	mu sync.Mutex
	// owners maps each substituted identity to the session substituting it.
	owners map[Identity]*Session
}

func NewSubstitutor(cache Cache) *Substitutor {
	if cache == nil {
		panic("rehire: NewSubstitutor: cache is nil")
	}
	return &Substitutor{cache: cache, owners: make(map[Identity]*Session)}
}

// Patch installs the entries of mapping in the cache. The state each identity
// had before is saved in the session; patching an identity twice in the same
// session keeps the state from before the first patch.
//
// If an identity is owned by another live session, an error matching
// [ErrSessionConflict] is returned, and the cache is not modified.
func (s *Substitutor) Patch(session *Session, mapping map[Identity]*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := iterateSorted(mapping)
	for _, kv := range sorted {
		if owner, ok := s.owners[kv.k]; ok && owner != session {
			return conflictError{kv.k}
		}
	}
	for _, kv := range sorted {
		id := kv.k
		if _, saved := session.records[id]; !saved {
			prev, _ := s.cache.Get(id)
			session.records[id] = record{entry: prev}
			s.owners[id] = session
		}
		s.cache.Set(id, kv.v)
		Logger().Debug("rehire: patched dependency",
			zap.String("session", session.id),
			zap.Stringer("identity", id),
			zap.Bool("replaced", session.records[id].had()))
	}
	return nil
}

// Restore reinstates the saved state of each identity in keys, and removes
// them from the session. Keys the session doesn't substitute are ignored.
func (s *Substitutor) Restore(session *Session, keys []Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range keys {
		r, ok := session.records[id]
		if !ok {
			continue
		}
		if r.had() {
			s.cache.Set(id, r.entry)
		} else {
			s.cache.Delete(id)
		}
		delete(session.records, id)
		if s.owners[id] == session {
			delete(s.owners, id)
		}
		Logger().Debug("rehire: restored dependency",
			zap.String("session", session.id),
			zap.Stringer("identity", id),
			zap.Bool("deleted", !r.had()))
	}
}

/* -------- sort helper functions -------- */

type kv[K, V any] struct {
	k K
	v V
}

func iterateSorted[K cmp.Ordered, V any](m map[K]V) []kv[K, V] {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	res := make([]kv[K, V], len(keys))
	for i, k := range keys {
		res[i] = kv[K, V]{k, m[k]}
	}
	return res
}
