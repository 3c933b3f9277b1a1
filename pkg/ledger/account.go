// Package ledger is a local ledger host for the gating program. It stores
// accounts, executes transactions against registered programs with
// all-or-nothing commit, enforces the runtime's account rules after every
// instruction, and keeps a hash-chained log of receipts.
package ledger

import (
	"bytes"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned by stores for keys that hold no account.
var ErrAccountNotFound = errors.New("account not found")

// Account is the persisted state of one address.
type Account struct {
	Owner      solana.PublicKey `json:"owner"`
	Lamports   uint64           `json:"lamports"`
	Data       []byte           `json:"data"`
	Executable bool             `json:"executable"`
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Key solana.PublicKey
	*Account
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// Equal reports whether two accounts hold identical state.
func (a *Account) Equal(b *Account) bool {
	return a.Owner.Equals(b.Owner) &&
		a.Lamports == b.Lamports &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// emptyAccount is the state of an address nobody has funded yet.
func emptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID}
}
