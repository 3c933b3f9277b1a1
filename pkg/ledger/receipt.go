package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// ErrReceiptNotFound is returned for unknown receipt IDs.
var ErrReceiptNotFound = errors.New("receipt not found")

// ErrReceiptNotRecorded is returned with the receipt of a transaction whose
// outcome stands but whose receipt the ReceiptStore refused.
var ErrReceiptNotRecorded = errors.New("receipt not recorded")

const genesisHash = "genesis"

// Status is the outcome of a transaction.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Receipt records one executed transaction. Receipts form a chain: each one
// commits to its predecessor's hash, so a rewritten history is detectable.
type Receipt struct {
	ID                string    `json:"id"`
	Sequence          uint64    `json:"sequence"`
	Status            Status    `json:"status"`
	Programs          []string  `json:"programs"`
	Signers           []string  `json:"signers"`
	FailedInstruction *int      `json:"failed_instruction,omitempty"`
	Error             string    `json:"error,omitempty"`
	ErrorCode         *uint32   `json:"error_code,omitempty"`
	Logs              []string  `json:"logs"`
	Timestamp         time.Time `json:"timestamp"`
	PrevHash          string    `json:"prev_hash"`
	Hash              string    `json:"hash"`
}

// ComputeHash returns the SHA-256 of the RFC 8785 canonical JSON of the
// receipt with its Hash field cleared.
func (r *Receipt) ComputeHash() (string, error) {
	c := *r
	c.Hash = ""
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize receipt: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// VerifyChain checks that receipts, in sequence order, are each correctly
// hashed and linked to their predecessor.
func VerifyChain(receipts []*Receipt) error {
	prev := genesisHash
	for _, r := range receipts {
		if r.PrevHash != prev {
			return fmt.Errorf("receipt %d: chain broken: prev %s, want %s", r.Sequence, r.PrevHash, prev)
		}
		h, err := r.ComputeHash()
		if err != nil {
			return err
		}
		if h != r.Hash {
			return fmt.Errorf("receipt %d: content hash mismatch", r.Sequence)
		}
		prev = r.Hash
	}
	return nil
}

// ReceiptStore persists receipts.
type ReceiptStore interface {
	Append(ctx context.Context, r *Receipt) error
	Receipt(ctx context.Context, id string) (*Receipt, error)
	// Last returns the newest receipt, or nil when none exist.
	Last(ctx context.Context) (*Receipt, error)
	// List returns up to limit receipts, newest first.
	List(ctx context.Context, limit int) ([]*Receipt, error)
}

// MemoryReceipts keeps receipts in a slice.
type MemoryReceipts struct {
	mu       sync.RWMutex
	receipts []*Receipt
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{}
}

func (m *MemoryReceipts) Append(_ context.Context, r *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.receipts = append(m.receipts, &cp)
	return nil
}

func (m *MemoryReceipts) Receipt(_ context.Context, id string) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.receipts {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrReceiptNotFound
}

func (m *MemoryReceipts) Last(_ context.Context) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.receipts) == 0 {
		return nil, nil
	}
	cp := *m.receipts[len(m.receipts)-1]
	return &cp, nil
}

func (m *MemoryReceipts) List(_ context.Context, limit int) ([]*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Receipt, 0, len(m.receipts))
	for _, r := range m.receipts {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
