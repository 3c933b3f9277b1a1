package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore keeps accounts and receipts in a SQL database. It works with
// SQLite (modernc.org/sqlite) and Postgres (lib/pq).
type SQLStore struct {
	db     *sql.DB
	driver string
	clock  func() time.Time
}

// OpenSQLStore opens dsn with driver and migrates the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer; SQLite serializes anyway and :memory: is per-connection.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and migrates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	s := &SQLStore{db: db, driver: driver, clock: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

func (s *SQLStore) blobType() string {
	if s.driver == DriverPostgres {
		return "BYTEA"
	}
	return "BLOB"
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
	pubkey TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	lamports BIGINT NOT NULL,
	data ` + s.blobType() + ` NOT NULL,
	executable BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS accounts_owner_idx ON accounts (owner)`,
		`CREATE TABLE IF NOT EXISTS receipts (
	receipt_id TEXT PRIMARY KEY,
	sequence BIGINT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	error_name TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT owner, lamports, data, executable FROM accounts WHERE pubkey = ?`),
		key.String(),
	)
	var (
		owner    string
		lamports int64
		data     []byte
		exec     bool
	)
	if err := row.Scan(&owner, &lamports, &data, &exec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("account %s: bad owner %q: %w", key, owner, err)
	}
	return &Account{Owner: ownerKey, Lamports: uint64(lamports), Data: data, Executable: exec}, nil
}

func (s *SQLStore) Apply(ctx context.Context, batch map[solana.PublicKey]*Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := s.rebind(`INSERT INTO accounts (pubkey, owner, lamports, data, executable, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (pubkey) DO UPDATE SET owner = excluded.owner, lamports = excluded.lamports,
data = excluded.data, executable = excluded.executable, updated_at = excluded.updated_at`)
	del := s.rebind(`DELETE FROM accounts WHERE pubkey = ?`)
	now := s.clock().UTC().Format(time.RFC3339Nano)

	for _, key := range sortedKeys(batch) {
		a := batch[key]
		if a == nil {
			if _, err := tx.ExecContext(ctx, del, key.String()); err != nil {
				return fmt.Errorf("delete account %s: %w", key, err)
			}
			continue
		}
		if a.Lamports > math.MaxInt64 {
			return fmt.Errorf("account %s: lamports %d exceed column range", key, a.Lamports)
		}
		data := a.Data
		if data == nil {
			data = []byte{}
		}
		if _, err := tx.ExecContext(ctx, upsert, key.String(), a.Owner.String(), int64(a.Lamports), data, a.Executable, now); err != nil {
			return fmt.Errorf("upsert account %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) ByOwner(ctx context.Context, owner solana.PublicKey) ([]KeyedAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT pubkey, lamports, data, executable FROM accounts WHERE owner = ? ORDER BY pubkey`),
		owner.String(),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []KeyedAccount
	for rows.Next() {
		var (
			pubkey   string
			lamports int64
			data     []byte
			exec     bool
		)
		if err := rows.Scan(&pubkey, &lamports, &data, &exec); err != nil {
			return nil, err
		}
		key, err := solana.PublicKeyFromBase58(pubkey)
		if err != nil {
			return nil, fmt.Errorf("bad pubkey %q: %w", pubkey, err)
		}
		out = append(out, KeyedAccount{Key: key, Account: &Account{Owner: owner, Lamports: uint64(lamports), Data: data, Executable: exec}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortKeyed(out)
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Append implements ReceiptStore.
func (s *SQLStore) Append(ctx context.Context, r *Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO receipts (receipt_id, sequence, status, error_name, body, prev_hash, hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, int64(r.Sequence), string(r.Status), r.Error, string(body), r.PrevHash, r.Hash,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// Receipt implements ReceiptStore.
func (s *SQLStore) Receipt(ctx context.Context, id string) (*Receipt, error) {
	return s.queryReceipt(ctx, `SELECT body FROM receipts WHERE receipt_id = ?`, id)
}

// Last implements ReceiptStore.
func (s *SQLStore) Last(ctx context.Context) (*Receipt, error) {
	r, err := s.queryReceipt(ctx, `SELECT body FROM receipts ORDER BY sequence DESC LIMIT 1`)
	if errors.Is(err, ErrReceiptNotFound) {
		return nil, nil
	}
	return r, err
}

// List implements ReceiptStore.
func (s *SQLStore) List(ctx context.Context, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT body FROM receipts ORDER BY sequence DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Receipt
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r Receipt
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode receipt: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryReceipt(ctx context.Context, query string, args ...any) (*Receipt, error) {
	var body string
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

func sortedKeys(batch map[solana.PublicKey]*Account) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
