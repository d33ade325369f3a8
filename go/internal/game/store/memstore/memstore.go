// Package memstore is an in-process store.Store. Each unit of work records an
// undo log so a failed unit leaves no trace, and LockSession serializes units
// touching the same session the way SELECT ... FOR UPDATE does in Postgres.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

var errReadOnly = errors.New("memstore: write in read-only unit of work")

type pairKey struct {
	participantID uuid.UUID
	questionID    uuid.UUID
}

// Store keeps all quiz state in maps guarded by mu.
type Store struct {
	mu sync.Mutex

	sessions     map[uuid.UUID]models.Session
	questions    map[uuid.UUID]models.Question
	options      map[uuid.UUID]models.AnswerOption
	participants map[uuid.UUID]models.Participant
	entries      map[uuid.UUID]models.QueueEntry
	answers      map[pairKey]models.AnswerRecord
	verbal       map[pairKey]models.VerbalResponse

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}
}

func New() *Store {
	return &Store{
		sessions:     make(map[uuid.UUID]models.Session),
		questions:    make(map[uuid.UUID]models.Question),
		options:      make(map[uuid.UUID]models.AnswerOption),
		participants: make(map[uuid.UUID]models.Participant),
		entries:      make(map[uuid.UUID]models.QueueEntry),
		answers:      make(map[pairKey]models.AnswerRecord),
		verbal:       make(map[pairKey]models.VerbalResponse),
		locks:        make(map[uuid.UUID]chan struct{}),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	t := &tx{s: s, held: make(map[uuid.UUID]chan struct{})}
	defer t.release()
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	t := &tx{s: s, readOnly: true}
	return fn(t)
}

func (s *Store) sessionLock(id uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

type tx struct {
	s        *Store
	readOnly bool
	held     map[uuid.UUID]chan struct{}
	undo     []func()
}

func (t *tx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// rollback replays the undo log newest first.
func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) release() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

func (t *tx) lock(ctx context.Context, id uuid.UUID) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.held[id]; ok {
		return nil
	}
	l := t.s.sessionLock(id)
	select {
	case l <- struct{}{}:
		t.held[id] = l
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock session %s: %w", id, ctx.Err())
	}
}

// put and del must be called with s.mu held.
func put[K comparable, V any](t *tx, m map[K]V, k K, v V) {
	old, had := m[k]
	m[k] = v
	t.undo = append(t.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func del[K comparable, V any](t *tx, m map[K]V, k K) bool {
	old, had := m[k]
	if !had {
		return false
	}
	delete(m, k)
	t.undo = append(t.undo, func() { m[k] = old })
	return true
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, store.ErrNotFound)
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*tx)(nil)
