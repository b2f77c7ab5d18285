// Package state is the reactive key-value store behind the study engine.
//
// A Store holds every named slot in memory, mirrors each mutation of a
// persisted slot to a storage.Backend, and notifies subscribers
// synchronously: per-key subscribers first, then wildcard subscribers, each
// group in registration order.
//
// Values handed to Set are owned by the store afterwards. Typed accessors
// return copies, and every mutator builds a new value instead of editing
// the current one in place.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-study/internal/storage"
)

var (
	// ErrUnknownKey is returned for a key that names no slot.
	ErrUnknownKey = errors.New("state: unknown key")
	// ErrSlotType is returned when a value does not have its slot's type.
	ErrSlotType = errors.New("state: value has wrong type for slot")
	// ErrInvalidTheme is returned for a theme other than light or dark.
	ErrInvalidTheme = errors.New("state: invalid theme")
)

// Listener is called after a slot changes. For wildcard listeners key names
// the slot that changed.
type Listener func(key Key, newValue, oldValue any)

// Diagnostic records a persisted slot that could not be hydrated and fell
// back to its default.
type Diagnostic struct {
	Key        Key
	StorageKey string
	Err        error
}

type subscription struct {
	id uint64
	fn Listener
}

type change struct {
	key      Key
	newValue any
	oldValue any
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps and activity dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the in-memory state of one learner.
type Store struct {
	backend storage.Backend
	now     func() time.Time

	mu          sync.RWMutex
	values      map[Key]any
	diagnostics []Diagnostic

	subsMu sync.Mutex
	subs   map[Key][]subscription
	nextID uint64
}

// New creates a store and hydrates every persisted slot from backend.
// Missing or unparseable entries fall back to the slot default.
func New(backend storage.Backend, opts ...Option) *Store {
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	s := &Store{
		backend: backend,
		now:     time.Now,
		subs:    make(map[Key][]subscription),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.values, s.diagnostics, _ = s.hydrate()
	return s
}

// Backend returns the durable storage the store writes through to.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Diagnostics returns the hydration problems seen by the last New or Reload.
func (s *Store) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Diagnostic(nil), s.diagnostics...)
}

// hydrate decodes every persisted slot from the backend. unread holds the
// slots whose backend read failed; their values are defaults.
func (s *Store) hydrate() (values map[Key]any, diags []Diagnostic, unread map[Key]bool) {
	values = make(map[Key]any, len(slotList))
	unread = make(map[Key]bool)

	for _, sl := range slotList {
		values[sl.key] = sl.zero()
		if !sl.persisted() {
			continue
		}

		text, ok, err := s.backend.Read(sl.storageKey)
		if err != nil {
			slog.Warn("failed to read slot, using default", "key", sl.storageKey, "error", err)
			diags = append(diags, Diagnostic{Key: sl.key, StorageKey: sl.storageKey, Err: err})
			unread[sl.key] = true
			continue
		}
		if !ok {
			continue
		}

		v, err := sl.decode(text)
		if err != nil {
			slog.Warn("corrupt slot, using default", "key", sl.storageKey, "error", err)
			diags = append(diags, Diagnostic{Key: sl.key, StorageKey: sl.storageKey, Err: err})
			continue
		}
		values[sl.key] = v
	}
	return values, diags, unread
}

// Get returns a copy of the current value of key, or nil if key names no
// slot.
func (s *Store) Get(key Key) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slotsByKey[key].copy(s.values[key])
}

// Set replaces the value of key, persists it if the slot is persisted, then
// notifies subscribers with the new and old values.
func (s *Store) Set(key Key, value any) error {
	sl, ok := slotsByKey[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !sl.accepts(value) {
		return fmt.Errorf("%w: %s got %T %v", ErrSlotType, key, value, value)
	}
	value = sl.copy(value)

	s.apply(func(tx *txn) {
		tx.set(key, value)
	})
	return nil
}

// Subscribe registers fn for changes to key, or to every slot when key is
// Wildcard. The returned function removes the registration; calling it more
// than once is safe.
func (s *Store) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[key] = append(s.subs[key], subscription{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()

			list := s.subs[key]
			for i, sub := range list {
				if sub.id == id {
					s.subs[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Reload re-reads every persisted slot from the backend and notifies
// subscribers of the slots whose value changed. A slot whose backend read
// fails keeps its in-memory value.
func (s *Store) Reload() {
	fresh, diags, unread := s.hydrate()

	s.apply(func(tx *txn) {
		for _, sl := range slotList {
			if !sl.persisted() || unread[sl.key] {
				continue
			}
			if !sl.equal(tx.get(sl.key), fresh[sl.key]) {
				tx.setNoPersist(sl.key, fresh[sl.key])
			}
		}
		tx.s.diagnostics = diags
	})
}

// Reset deletes every persisted slot from the backend and restores all slot
// defaults.
func (s *Store) Reset() {
	s.apply(func(tx *txn) {
		for _, sl := range slotList {
			if sl.persisted() {
				if err := s.backend.Delete(sl.storageKey); err != nil {
					slog.Warn("failed to delete slot", "key", sl.storageKey, "error", err)
				}
			}
			if v := sl.zero(); !sl.equal(tx.get(sl.key), v) {
				tx.setNoPersist(sl.key, v)
			}
		}
		tx.s.diagnostics = nil
	})
}

// txn batches slot writes made under the store lock so that persistence
// happens in write order and notification happens after unlock.
type txn struct {
	s         *Store
	changes   []change
	noPersist map[Key]bool
}

func (tx *txn) get(key Key) any {
	return tx.s.values[key]
}

func (tx *txn) set(key Key, value any) {
	old := tx.s.values[key]
	tx.s.values[key] = value
	for i := range tx.changes {
		if tx.changes[i].key == key {
			tx.changes[i].newValue = value
			return
		}
	}
	tx.changes = append(tx.changes, change{key: key, newValue: value, oldValue: old})
}

func (tx *txn) setNoPersist(key Key, value any) {
	if tx.noPersist == nil {
		tx.noPersist = make(map[Key]bool)
	}
	tx.noPersist[key] = true
	tx.set(key, value)
}

func (s *Store) apply(fn func(tx *txn)) {
	s.mu.Lock()
	tx := &txn{s: s}
	fn(tx)
	for _, c := range tx.changes {
		if !tx.noPersist[c.key] {
			s.persist(c.key, c.newValue)
		}
	}
	s.mu.Unlock()

	for _, c := range tx.changes {
		s.notify(c)
	}
}

// persist writes a slot through to the backend. A failed write is logged
// and leaves the in-memory value in place.
func (s *Store) persist(key Key, value any) {
	sl := slotsByKey[key]
	if !sl.persisted() {
		return
	}

	text, err := sl.encode(value)
	if err != nil {
		slog.Warn("failed to encode slot", "key", sl.storageKey, "error", err)
		return
	}
	if err := s.backend.Write(sl.storageKey, text); err != nil {
		slog.Warn("failed to persist slot", "key", sl.storageKey, "error", err)
	}
}

func (s *Store) notify(c change) {
	s.subsMu.Lock()
	keyed := append([]subscription(nil), s.subs[c.key]...)
	wild := append([]subscription(nil), s.subs[Wildcard]...)
	s.subsMu.Unlock()

	sl := slotsByKey[c.key]
	for _, sub := range append(keyed, wild...) {
		sub.fn(c.key, sl.copy(c.newValue), sl.copy(c.oldValue))
	}
}
