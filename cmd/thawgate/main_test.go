package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t       *testing.T
	keypair string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"THAWGATE_PROGRAM_ID", "THAWGATE_TOKEN_ACL_PROGRAM_ID", "THAWGATE_OTLP_ENDPOINT", "THAWGATE_TELEMETRY"} {
		t.Setenv(k, "")
	}
	t.Setenv("THAWGATE_STORE_DRIVER", "sqlite")
	t.Setenv("THAWGATE_STORE_DSN", filepath.Join(dir, "ledger.db"))
	t.Setenv("THAWGATE_LOG_LEVEL", "ERROR")

	c := &cli{t: t, keypair: filepath.Join(dir, "authority.json")}
	code, out, errOut := c.run("keygen", "--out", c.keypair)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "pubkey: ")
	return c
}

func (c *cli) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"thawgate"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// must runs a ledger command with the test keypair and requires exit 0.
func (c *cli) must(args ...string) string {
	c.t.Helper()
	args = append(args, "--keypair", c.keypair)
	code, out, errOut := c.run(args...)
	require.Equal(c.t, 0, code, "%v: %s", args, errOut)
	return out
}

// field returns the value printed after "name: ".
func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+": "); ok {
			return v
		}
	}
	t.Fatalf("no %q in output:\n%s", name, out)
	return ""
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, Run([]string{"thawgate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "USAGE")

	stdout.Reset()
	assert.Equal(t, 0, Run([]string{"thawgate", "help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "apply-lists-to-mint")

	stderr.Reset()
	assert.Equal(t, 2, Run([]string{"thawgate", "frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: frobnicate")

	stdout.Reset()
	assert.Equal(t, 0, Run([]string{"thawgate", "version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), version)
}

func TestRun_ArgumentErrors(t *testing.T) {
	c := newCLI(t)
	list := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		args []string
	}{
		{"keygen without out", []string{"keygen"}},
		{"create without mode", []string{"create-list", "--keypair", c.keypair}},
		{"create bad mode", []string{"create-list", "--mode", "deny", "--keypair", c.keypair}},
		{"create without keypair", []string{"create-list", "--mode", "allow"}},
		{"create bad seed", []string{"create-list", "--mode", "allow", "--seed", "xyz0", "--keypair", c.keypair}},
		{"delete without list", []string{"delete-list", "--keypair", c.keypair}},
		{"add without wallet", []string{"add-wallet", "--list", list, "--keypair", c.keypair}},
		{"remove bad list", []string{"remove-wallet", "--list", "nope", "--wallet", list, "--keypair", c.keypair}},
		{"apply bad list", []string{"apply-lists-to-mint", "--mint", list, "--list", "0OIl", "--keypair", c.keypair}},
		{"can-thaw without owner", []string{"can-thaw", "--mint", list}},
		{"unknown flag", []string{"show", "--verbose"}},
		{"missing keypair file", []string{"airdrop", "--keypair", filepath.Join(t.TempDir(), "absent.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := c.run(tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("show", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Error:")
}

func TestRun_BlockListFlow(t *testing.T) {
	c := newCLI(t)
	mint := solana.NewWallet().PublicKey().String()
	wallet := solana.NewWallet().PublicKey().String()

	c.must("airdrop")
	out := c.must("init-mint", "--mint", mint)
	assert.Equal(t, mint, field(t, out, "mint"))

	out = c.must("create-list", "--mode", "block")
	list := field(t, out, "list_config")
	require.NotEmpty(t, field(t, out, "seed"))

	c.must("add-wallet", "--list", list, "--wallet", wallet)
	c.must("apply-lists-to-mint", "--mint", mint, "--list", list)

	code, out, errOut := c.run("can-thaw", "--mint", mint, "--owner", wallet)
	assert.Equal(t, 1, code, errOut)
	assert.Contains(t, out, "verdict: denied")
	assert.Contains(t, out, "AccountBlocked")

	other := solana.NewWallet().PublicKey().String()
	code, out, errOut = c.run("can-thaw", "--mint", mint, "--owner", other)
	assert.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "verdict: allowed")

	// Deleting a non-empty list fails and leaves a failed receipt.
	code, _, errOut = c.run("delete-list", "--list", list, "--keypair", c.keypair)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ListNotEmpty")
	assert.Contains(t, errOut, "receipt: ")

	out = c.must("show", "--json")
	var lists []listJSON
	require.NoError(t, json.Unmarshal([]byte(out), &lists))
	require.Len(t, lists, 1)
	assert.Equal(t, list, lists[0].Address)
	assert.Equal(t, "block", lists[0].Mode)
	assert.Equal(t, uint64(1), lists[0].MemberCount)
	assert.Equal(t, []string{wallet}, lists[0].Members)

	c.must("remove-wallet", "--list", list, "--wallet", wallet)
	code, out, _ = c.run("can-thaw", "--mint", mint, "--owner", wallet)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "verdict: allowed")

	c.must("apply-lists-to-mint", "--mint", mint)
	c.must("delete-list", "--list", list)

	out = c.must("show")
	assert.Contains(t, out, "no lists")

	out = c.must("receipts", "--limit", "0", "--verify")
	assert.Contains(t, out, "chain: verified")
	assert.Contains(t, out, "failed ListNotEmpty")
}

func TestRun_AllowListFlow(t *testing.T) {
	c := newCLI(t)
	mint := solana.NewWallet().PublicKey().String()
	member := solana.NewWallet().PublicKey().String()
	stranger := solana.NewWallet().PublicKey().String()

	c.must("airdrop")
	c.must("init-mint", "--mint", mint)
	list := field(t, c.must("create-list", "--mode", "allow"), "list_config")
	c.must("add-wallet", "--list", list, "--wallet", member)
	c.must("apply-lists-to-mint", "--mint", mint, "--list", list)

	code, out, _ := c.run("can-thaw", "--mint", mint, "--owner", member)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "verdict: allowed")

	code, out, _ = c.run("can-thaw", "--mint", mint, "--owner", stranger)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "verdict: denied")
}

func TestRun_FixedSeedIsDeterministic(t *testing.T) {
	c := newCLI(t)
	seed := solana.NewWallet().PublicKey().String()
	c.must("airdrop")

	first := field(t, c.must("create-list", "--mode", "allow", "--seed", seed), "list_config")

	// Same authority and seed address the same, now occupied, list.
	code, _, errOut := c.run("create-list", "--mode", "block", "--seed", seed, "--keypair", c.keypair)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "AccountAlreadyInUse")

	out := c.must("show", "--json")
	var lists []listJSON
	require.NoError(t, json.Unmarshal([]byte(out), &lists))
	require.Len(t, lists, 1)
	assert.Equal(t, first, lists[0].Address)
	assert.Equal(t, seed, lists[0].Seed)
}

func TestRun_UnfundedAuthority(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("create-list", "--mode", "allow", "--keypair", c.keypair)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "receipt: ")
}

func TestPubkeyList(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	var l pubkeyList
	require.NoError(t, l.Set(a.String()+", "+b.String()))
	require.NoError(t, l.Set(a.String()))
	assert.Equal(t, pubkeyList{a, b, a}, l)
	assert.Equal(t, a.String()+","+b.String()+","+a.String(), l.String())
	assert.Error(t, l.Set("not base58 0"))
}

func TestKeygenFileRoundTrip(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, writeKeygenFile(path, key))

	loaded, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), loaded.PublicKey())
}
