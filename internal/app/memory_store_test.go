package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/transfa/fundtransfer-service/internal/domain"
	"github.com/transfa/fundtransfer-service/internal/store"
)

// memoryAccountStore is an AccountStore with one exclusive lock per account.
// Locks are taken in ascending id order, like the Postgres store.
type memoryAccountStore struct {
	mu          sync.Mutex
	balances    map[int64]domain.Money
	locks       map[int64]chan struct{}
	lockTimeout time.Duration

	begins    int
	lockOrder [][]int64
	beginErr  error
	commitErr error
}

func newMemoryAccountStore(balances map[int64]domain.Money) *memoryAccountStore {
	s := &memoryAccountStore{
		balances:    make(map[int64]domain.Money, len(balances)),
		locks:       make(map[int64]chan struct{}, len(balances)),
		lockTimeout: 5 * time.Second,
	}
	for id, balance := range balances {
		s.balances[id] = balance
		s.locks[id] = make(chan struct{}, 1)
	}
	return s
}

func (s *memoryAccountStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memoryUnit{store: s, pending: make(map[int64]domain.Money)}, nil
}

func (s *memoryAccountStore) balance(id int64) domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[id]
}

func (s *memoryAccountStore) total() domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, balance := range s.balances {
		total += balance
	}
	return total
}

func (s *memoryAccountStore) beginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

type memoryUnit struct {
	store    *memoryAccountStore
	held     []int64
	pending  map[int64]domain.Money
	finished bool
}

func (u *memoryUnit) LockForUpdate(ctx context.Context, ids []int64) (map[int64]domain.Money, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	u.store.mu.Lock()
	u.store.lockOrder = append(u.store.lockOrder, ordered)
	u.store.mu.Unlock()

	balances := make(map[int64]domain.Money, len(ordered))
	for _, id := range ordered {
		u.store.mu.Lock()
		lock, ok := u.store.locks[id]
		u.store.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
		}

		select {
		case lock <- struct{}{}:
			u.held = append(u.held, id)
		case <-time.After(u.store.lockTimeout):
			return nil, fmt.Errorf("account %d: %w", id, domain.ErrTimeout)
		}

		u.store.mu.Lock()
		balances[id] = u.store.balances[id]
		u.store.mu.Unlock()
	}
	return balances, nil
}

func (u *memoryUnit) WriteBalance(ctx context.Context, id int64, balance domain.Money) error {
	if !slices.Contains(u.held, id) {
		return store.ErrNotLocked
	}
	if balance < 0 {
		return store.ErrNegativeBalance
	}
	u.pending[id] = balance
	return nil
}

func (u *memoryUnit) Commit(ctx context.Context) error {
	if u.finished {
		return store.ErrUnitFinished
	}
	u.finished = true
	defer u.release()

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	for id, balance := range u.pending {
		u.store.balances[id] = balance
	}
	return nil
}

func (u *memoryUnit) Abort(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	u.release()
	return nil
}

func (u *memoryUnit) release() {
	for i := len(u.held) - 1; i >= 0; i-- {
		<-u.store.locks[u.held[i]]
	}
	u.held = nil
}

// recordingAuditLog keeps appended records in memory.
type recordingAuditLog struct {
	store.AuditLog

	mu        sync.Mutex
	records   []domain.AuditRecord
	appendErr error
}

func (a *recordingAuditLog) Append(ctx context.Context, record domain.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.appendErr != nil {
		return a.appendErr
	}
	record.CreatedAt = time.Now()
	a.records = append(a.records, record)
	return nil
}

func (a *recordingAuditLog) all() []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.records)
}

func (a *recordingAuditLog) byTransactionID(id string) []domain.AuditRecord {
	var matches []domain.AuditRecord
	for _, record := range a.all() {
		if record.TransactionID == id {
			matches = append(matches, record)
		}
	}
	return matches
}

// sequenceIDs issues tx-1, tx-2, ... so tests can predict transaction ids.
type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("tx-%d", g.next)
}
