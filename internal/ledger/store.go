package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
)

// Register is one checkout lane's server-side state: an ID handed to the
// client and the open transaction behind it.
type Register struct {
	ID       string
	Ledger   *Ledger
	openedAt time.Time
	lastSeen time.Time
}

// Store tracks open registers by ID and reaps the ones nobody has touched
// within the idle TTL.
type Store struct {
	mu        sync.Mutex
	registers map[string]*Register
	policy    Policy
	now       func() time.Time
}

func NewStore(policy Policy) *Store {
	return &Store{
		registers: make(map[string]*Register),
		policy:    policy,
		now:       time.Now,
	}
}

// Open creates a register with a fresh empty ledger and returns it.
func (s *Store) Open() *Register {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	reg := &Register{
		ID:       uuid.NewString(),
		Ledger:   New(s.policy),
		openedAt: now,
		lastSeen: now,
	}
	s.registers[reg.ID] = reg
	return reg
}

// Get looks a register up and refreshes its idle clock.
func (s *Store) Get(id string) (*Register, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registers[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown register "+id)
	}
	reg.lastSeen = s.now()
	return reg, nil
}

// Close removes a register. Closing twice is fine.
func (s *Store) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registers, id)
}

// Len returns the number of open registers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registers)
}

// Sweep drops registers idle for longer than ttl and returns how many went.
func (s *Store) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	swept := 0
	for id, reg := range s.registers {
		if reg.lastSeen.Before(cutoff) {
			delete(s.registers, id)
			swept++
		}
	}
	return swept
}

// RunSweeper sweeps on the given interval until the context ends. Meant to
// run as a background goroutine from main.
func (s *Store) RunSweeper(ctx context.Context, interval, ttl time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				log.Info(log.WithField(ctx, "swept", n), "reaped idle registers")
			}
		}
	}
}
