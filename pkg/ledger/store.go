package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// AccountStore persists account state. Apply must be atomic: either every
// entry of the batch is written or none is. A nil account in the batch
// deletes the key.
type AccountStore interface {
	Get(ctx context.Context, key solana.PublicKey) (*Account, error)
	Apply(ctx context.Context, batch map[solana.PublicKey]*Account) error
	ByOwner(ctx context.Context, owner solana.PublicKey) ([]KeyedAccount, error)
	Close() error
}

// MemoryStore keeps accounts in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]*Account)}
}

func (s *MemoryStore) Get(_ context.Context, key solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Apply(_ context.Context, batch map[solana.PublicKey]*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range batch {
		if a == nil {
			delete(s.accounts, k)
			continue
		}
		s.accounts[k] = a.Clone()
	}
	return nil
}

func (s *MemoryStore) ByOwner(_ context.Context, owner solana.PublicKey) ([]KeyedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []KeyedAccount
	for k, a := range s.accounts {
		if a.Owner.Equals(owner) {
			out = append(out, KeyedAccount{Key: k, Account: a.Clone()})
		}
	}
	sortKeyed(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortKeyed(accounts []KeyedAccount) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Key.String() < accounts[j].Key.String()
	})
}
