package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

const (
	redisAccountPrefix = "thawgate:account:"
	// Receipts are JSON, in sequence order in a list and by ID in a hash.
	redisReceiptList  = "thawgate:receipts"
	redisReceiptIndex = "thawgate:receipt:index"
)

// RedisStore keeps each account in a Redis hash. Batches are applied in one
// MULTI/EXEC transaction. It also keeps the receipt chain.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewRedisStoreFromURL parses a redis:// URL.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisKey(key solana.PublicKey) string {
	return redisAccountPrefix + key.String()
}

func (s *RedisStore) Get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrAccountNotFound
	}
	return decodeRedisAccount(fields)
}

func decodeRedisAccount(fields map[string]string) (*Account, error) {
	owner, err := solana.PublicKeyFromBase58(fields["owner"])
	if err != nil {
		return nil, fmt.Errorf("bad owner: %w", err)
	}
	lamports, err := strconv.ParseUint(fields["lamports"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad lamports: %w", err)
	}
	return &Account{
		Owner:      owner,
		Lamports:   lamports,
		Data:       []byte(fields["data"]),
		Executable: fields["executable"] == "1",
	}, nil
}

func (s *RedisStore) Apply(ctx context.Context, batch map[solana.PublicKey]*Account) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range sortedKeys(batch) {
			a := batch[key]
			rk := redisKey(key)
			pipe.Del(ctx, rk)
			if a == nil {
				continue
			}
			exec := "0"
			if a.Executable {
				exec = "1"
			}
			pipe.HSet(ctx, rk,
				"owner", a.Owner.String(),
				"lamports", strconv.FormatUint(a.Lamports, 10),
				"data", a.Data,
				"executable", exec,
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

func (s *RedisStore) ByOwner(ctx context.Context, owner solana.PublicKey) ([]KeyedAccount, error) {
	var out []KeyedAccount
	iter := s.client.Scan(ctx, 0, redisAccountPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		rk := iter.Val()
		fields, err := s.client.HGetAll(ctx, rk).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 || fields["owner"] != owner.String() {
			continue
		}
		a, err := decodeRedisAccount(fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rk, err)
		}
		key, err := solana.PublicKeyFromBase58(rk[len(redisAccountPrefix):])
		if err != nil {
			return nil, fmt.Errorf("bad key %q: %w", rk, err)
		}
		out = append(out, KeyedAccount{Key: key, Account: a})
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	sortKeyed(out)
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Append(ctx context.Context, r *Receipt) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, redisReceiptList, raw)
		pipe.HSet(ctx, redisReceiptIndex, r.ID, raw)
		return nil
	})
	return err
}

func (s *RedisStore) Receipt(ctx context.Context, id string) (*Receipt, error) {
	raw, err := s.client.HGet(ctx, redisReceiptIndex, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRedisReceipt(raw)
}

func (s *RedisStore) Last(ctx context.Context) (*Receipt, error) {
	raw, err := s.client.LIndex(ctx, redisReceiptList, -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRedisReceipt(raw)
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]*Receipt, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := s.client.LRange(ctx, redisReceiptList, start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Receipt, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		r, err := decodeRedisReceipt([]byte(items[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeRedisReceipt(raw []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}
