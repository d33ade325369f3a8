package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Chain identifies one armed countdown. Seq distinguishes a chain from any
// later chain armed for the same session.
type Chain struct {
	SessionID  uuid.UUID
	QuestionID uuid.UUID
	Seq        uint64
}

// Hooks are invoked from the chain's goroutine. ctx is cancelled when the chain is.
type Hooks struct {
	OnTick     func(ctx context.Context, c Chain, value int)
	OnComplete func(ctx context.Context, c Chain)
}

type armed struct {
	chain  Chain
	cancel context.CancelFunc
}

// Scheduler holds at most one countdown per session.
type Scheduler struct {
	clock    clockwork.Clock
	from     int
	interval time.Duration

	mu     sync.Mutex
	seq    uint64
	chains map[uuid.UUID]armed

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewScheduler(clock clockwork.Clock, from int, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		clock:    clock,
		from:     from,
		interval: interval,
		chains:   make(map[uuid.UUID]armed),
		base:     base,
		stop:     stop,
	}
}

// Start arms a countdown for the session, replacing any chain already armed.
// Ticks run from the start value down to zero, one interval apart, and
// OnComplete follows the zero tick.
func (s *Scheduler) Start(sessionID, questionID uuid.UUID, hooks Hooks) Chain {
	ctx, cancel := context.WithCancel(s.base)

	s.mu.Lock()
	if prev, ok := s.chains[sessionID]; ok {
		prev.cancel()
		log.Debug().Str("session_id", sessionID.String()).Uint64("seq", prev.chain.Seq).Msg("replaced countdown")
	}
	s.seq++
	c := Chain{SessionID: sessionID, QuestionID: questionID, Seq: s.seq}
	s.chains[sessionID] = armed{chain: c, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, c, hooks)

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("question_id", questionID.String()).
		Int("from", s.from).
		Msg("countdown armed")
	return c
}

func (s *Scheduler) run(ctx context.Context, c Chain, hooks Hooks) {
	defer s.wg.Done()
	defer s.release(c)

	for v := s.from; v >= 0; v-- {
		if v != s.from && !s.wait(ctx) {
			log.Debug().Str("session_id", c.SessionID.String()).Int("at", v).Msg("countdown cancelled")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if hooks.OnTick != nil {
			hooks.OnTick(ctx, c, v)
		}
	}
	if ctx.Err() != nil {
		return
	}
	if hooks.OnComplete != nil {
		hooks.OnComplete(ctx, c)
	}
}

func (s *Scheduler) wait(ctx context.Context) bool {
	t := s.clock.NewTimer(s.interval)
	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(t)
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// release forgets c once its goroutine exits, unless a newer chain took its slot.
func (s *Scheduler) release(c Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.chains[c.SessionID]; ok && cur.chain.Seq == c.Seq {
		cur.cancel()
		delete(s.chains, c.SessionID)
	}
}

// Cancel stops the session's countdown. It never waits for the chain's
// goroutine, so it is safe to call while holding the session lock.
// Cancelling a fired or missing chain is a no-op.
func (s *Scheduler) Cancel(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.chains[sessionID]
	if !ok {
		return false
	}
	cur.cancel()
	delete(s.chains, sessionID)
	log.Debug().Str("session_id", sessionID.String()).Uint64("seq", cur.chain.Seq).Msg("countdown cancelled")
	return true
}

// Current reports whether c is still the armed chain for its session.
func (s *Scheduler) Current(c Chain) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.chains[c.SessionID]
	return ok && cur.chain.Seq == c.Seq
}

func (s *Scheduler) Pending(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chains[sessionID]
	return ok
}

// Shutdown cancels every chain and waits for their goroutines.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
