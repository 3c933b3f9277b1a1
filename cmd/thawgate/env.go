package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Mindburn-Labs/thawgate/pkg/config"
	"github.com/Mindburn-Labs/thawgate/pkg/gate"
	"github.com/Mindburn-Labs/thawgate/pkg/ledger"
	"github.com/Mindburn-Labs/thawgate/pkg/observability"
	"github.com/Mindburn-Labs/thawgate/pkg/program"
	"github.com/gagliardetto/solana-go"
)

// commonFlags are accepted by every ledger command.
type commonFlags struct {
	configPath  string
	keypairPath string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.keypairPath, "keypair", "", "Authority keypair file (solana-keygen JSON)")
}

func (c *commonFlags) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.LoadFile(c.configPath)
	}
	return config.Load()
}

func (c *commonFlags) authority() (solana.PrivateKey, error) {
	if c.keypairPath == "" {
		return nil, errors.New("--keypair is required")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(c.keypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", c.keypairPath, err)
	}
	return key, nil
}

// env is an open ledger with the gating program registered.
type env struct {
	cfg    *config.Config
	gate   *gate.Gate
	bank   *ledger.Bank
	store  ledger.AccountStore
	obs    *observability.Provider
	logger *slog.Logger
}

func openEnv(ctx context.Context, flags *commonFlags, stderr io.Writer) (*env, error) {
	cfg, err := flags.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	tokenACL, err := cfg.TokenACLProgram()
	if err != nil {
		return nil, err
	}

	obs, err := observability.New(ctx, cfg.Observability())
	if err != nil {
		return nil, err
	}

	store, receipts, err := openStore(ctx, cfg.Store)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	bank := ledger.NewBank(store,
		ledger.WithReceipts(receipts),
		ledger.WithTelemetry(obs),
		ledger.WithLogger(logger.With("component", "ledger")),
	)
	return &env{
		cfg:    cfg,
		gate:   gate.New(bank, program.NewClient(programID, tokenACL)),
		bank:   bank,
		store:  store,
		obs:    obs,
		logger: logger,
	}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (ledger.AccountStore, ledger.ReceiptStore, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return ledger.NewMemoryStore(), ledger.NewMemoryReceipts(), nil
	case config.DriverSQLite, config.DriverPostgres:
		s, err := ledger.OpenSQLStore(ctx, sc.Driver, sc.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverRedis:
		s, err := ledger.NewRedisStoreFromURL(sc.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", sc.Driver)
}

func (e *env) Close(ctx context.Context) {
	if err := e.store.Close(); err != nil {
		e.logger.ErrorContext(ctx, "close store", "error", err)
	}
	_ = e.obs.Shutdown(ctx)
}

// withEnv opens the ledger, runs fn and closes the ledger. fn's return
// value is the exit code.
func withEnv(flags *commonFlags, stderr io.Writer, fn func(ctx context.Context, e *env) int) int {
	ctx := context.Background()
	e, err := openEnv(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.Close(ctx)
	return fn(ctx, e)
}

// parsePubkey reads a base58 address flag.
func parsePubkey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s %q: %w", name, value, err)
	}
	return key, nil
}

// pubkeyList is a repeatable flag of base58 addresses. A single value may
// also carry several comma-separated addresses.
type pubkeyList []solana.PublicKey

func (l *pubkeyList) String() string {
	parts := make([]string, len(*l))
	for i, k := range *l {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

func (l *pubkeyList) Set(value string) error {
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return fmt.Errorf("%q: %w", s, err)
		}
		*l = append(*l, key)
	}
	return nil
}

// writeKeygenFile stores key in the solana-keygen JSON format, an array of
// the 64 secret key bytes.
func writeKeygenFile(path string, key solana.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportFailure prints a failed ledger operation and its receipt, and returns
// exit code 1.
func reportFailure(stderr io.Writer, r *ledger.Receipt, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	if r != nil {
		note := ""
		if errors.Is(err, ledger.ErrReceiptNotRecorded) {
			note = " (not recorded)"
		}
		_, _ = fmt.Fprintf(stderr, "receipt: %s%s\n", r.ID, note)
		for _, l := range r.Logs {
			_, _ = fmt.Fprintf(stderr, "  %s\n", l)
		}
		return 1
	}
	return 2
}
