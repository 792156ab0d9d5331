package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/fluxion/pkg/cluster"
)

// Key identifies one entry: tag disambiguates the kind of value
// ("deployment", "links", "topology"), ref is the workflow
// reference it belongs to (§4.2).
type Key struct {
	Tag string
	Ref string
}

func (k Key) boltKey() []byte { return []byte(k.Tag + "/" + k.Ref) }

func parseBoltKey(raw []byte) (Key, error) {
	s := string(raw)
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return Key{Tag: s[:i], Ref: s[i+1:]}, nil
		}
	}
	return Key{}, fmt.Errorf("store: malformed key %q", s)
}

// snapshot is the copy-on-publish value behind one key: an immutable slice,
// replaced wholesale on every write so readers never see a torn value.
type snapshot struct {
	items []any
}

var bucketName = []byte("fluxion_store")

// Store is the constant/node store (C2). Reads go through an
// atomic.Pointer per key for wait-free access; writes additionally persist
// to bbolt so a restarted process does not need a resync before Get works
// again.
type Store struct {
	rt *cluster.Runtime
	db *bolt.DB

	mu   sync.RWMutex
	live map[Key]*atomic.Pointer[snapshot]
}

// Open opens (creating if absent) the bbolt file at path and wires the
// store's RPC handler onto rt so remote Put calls (from PutEverywhere) land
// here.
func Open(path string, rt *cluster.Runtime) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}

	s := &Store{rt: rt, db: db, live: make(map[Key]*atomic.Pointer[snapshot])}
	if rt != nil {
		rt.RegisterHandler("store.put", func(args any) (any, error) {
			req, ok := args.(PutRequest)
			if !ok {
				return nil, fmt.Errorf("store: malformed put request")
			}
			s.Put(req.Tag, req.Ref, req.Items...)
			return nil, nil
		})
		rt.RegisterHandler("store.get", func(args any) (any, error) {
			req, ok := args.(GetRequest)
			if !ok {
				return nil, fmt.Errorf("store: malformed get request")
			}
			items, ok := s.Get(req.Tag, req.Ref)
			return GetReply{Items: items, Found: ok}, nil
		})
	}
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

// PutRequest is the wire envelope for a remote store.put call.
type PutRequest struct {
	Tag   string
	Ref   string
	Items []any
}

// GetRequest is the wire envelope for a remote store.get call, used by
// operators and tests to inspect a node's constant store without a local
// handle on its Store value.
type GetRequest struct {
	Tag string
	Ref string
}

// GetReply answers a store.get call.
type GetReply struct {
	Items []any
	Found bool
}

func init() {
	gob.Register(PutRequest{})
	gob.Register(GetRequest{})
	gob.Register(GetReply{})
}

// restore reloads every durable (tag, ref) entry into the in-memory
// snapshot map. Decoding a gob-encoded []any requires every concrete type
// that was ever Put to have been gob.Register'd by its owning package
// (operations and strategies do this in their init functions); an entry
// whose type was never registered is skipped rather than failing the
// whole restore.
func (s *Store) restore() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			key, err := parseBoltKey(k)
			if err != nil {
				return nil
			}
			dec := gob.NewDecoder(bytes.NewReader(v))
			var items []any
			if err := dec.Decode(&items); err != nil {
				return nil
			}
			s.pointerFor(key).Store(&snapshot{items: items})
			return nil
		})
	})
}

func (s *Store) pointerFor(k Key) *atomic.Pointer[snapshot] {
	s.mu.RLock()
	p, ok := s.live[k]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.live[k]; ok {
		return p
	}
	p = &atomic.Pointer[snapshot]{}
	s.live[k] = p
	return p
}

// Put writes items under (tag, ref), replacing any prior value for this
// key. Invariant per §4.2: a given (tag, ref) is written at most twice —
// once at deploy, once per late join.
func (s *Store) Put(tag, ref string, items ...any) {
	k := Key{Tag: tag, Ref: ref}
	s.pointerFor(k).Store(&snapshot{items: items})

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(items); err != nil {
		// Unregistered concrete type in items: the snapshot is still
		// live in memory, it just won't survive a restart.
		return
	}
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(k.boltKey(), buf.Bytes())
	})
}

// PutEverywhere writes locally then fans the same write out to every
// current member (§4.2).
func (s *Store) PutEverywhere(tag, ref string, items ...any) []cluster.NodeResult {
	s.Put(tag, ref, items...)
	if s.rt == nil {
		return nil
	}
	return s.rt.OnAllWorkers("store.put", PutRequest{Tag: tag, Ref: ref, Items: items})
}

// Get returns the full item slice for (tag, ref). An entry last written
// with no items (the way undeploy and deploy rollback clear a key) reads as
// absent.
func (s *Store) Get(tag, ref string) ([]any, bool) {
	k := Key{Tag: tag, Ref: ref}
	s.mu.RLock()
	p, ok := s.live[k]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	snap := p.Load()
	if snap == nil || len(snap.items) == 0 {
		return nil, false
	}
	return snap.items, true
}

// GetIndexed is the hot-path accessor on emit: index i into the pre-tupled
// sequence for (tag, ref).
func (s *Store) GetIndexed(tag, ref string, i int) (any, bool) {
	items, ok := s.Get(tag, ref)
	if !ok || i < 0 || i >= len(items) {
		return nil, false
	}
	return items[i], true
}

// Close releases the bbolt handle.
func (s *Store) Close() error {
	return s.db.Close()
}
