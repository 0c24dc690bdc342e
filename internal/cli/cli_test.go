package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
)

// execute runs the CLI with the given args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(&out, log.WarnLevel)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()

	for _, name := range []string{"keygen", "inspect", "simulate", "completion"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	if err != nil {
		t.Fatalf("keygen error = %v", err)
	}
	for _, field := range []string{"public key:", "secret key:", "payload:"} {
		if !strings.Contains(out, field) {
			t.Errorf("keygen output missing %q:\n%s", field, out)
		}
	}
}

func TestKeygenJSON(t *testing.T) {
	out, err := execute(t, "keygen", "--json")
	if err != nil {
		t.Fatalf("keygen --json error = %v", err)
	}

	var parsed struct {
		PublicKey string `json:"publicKey"`
		SecretKey string `json:"secretKey"`
		Payload   string `json:"payload"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("keygen --json produced invalid JSON: %v\n%s", err, out)
	}
	pub, err := hex.DecodeString(parsed.PublicKey)
	if err != nil || len(pub) != crypto.KeySize {
		t.Errorf("public key = %q, want %d hex bytes", parsed.PublicKey, crypto.KeySize)
	}
	payload, err := hex.DecodeString(parsed.Payload)
	if err != nil {
		t.Fatalf("payload is not hex: %v", err)
	}
	key, err := codec.ReadPublicKey(payload)
	if err != nil {
		t.Fatalf("payload does not decode as a published key: %v", err)
	}
	if hex.EncodeToString(key.Key) != parsed.PublicKey {
		t.Error("payload key does not match the printed public key")
	}
}

func TestInspectKey(t *testing.T) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	payload, err := codec.WritePublicKey(dsnp.PublicKey{Key: pair.Public})
	if err != nil {
		t.Fatalf("WritePublicKey() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "key.bin")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := execute(t, "inspect", "key", path)
	if err != nil {
		t.Fatalf("inspect key error = %v", err)
	}
	if !strings.Contains(out, hex.EncodeToString(pair.Public)) {
		t.Errorf("inspect key output missing the key:\n%s", out)
	}
}

func TestInspectPublicPageHex(t *testing.T) {
	content, err := codec.WritePublicGraph([]dsnp.GraphEdge{{UserID: 7, Since: 100}, {UserID: 9, Since: 200}})
	if err != nil {
		t.Fatalf("WritePublicGraph() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "page.hex")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(content)+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := execute(t, "inspect", "page", "--hex", path)
	if err != nil {
		t.Fatalf("inspect page error = %v", err)
	}
	if !strings.Contains(out, "2 connections") {
		t.Errorf("inspect page output missing connection count:\n%s", out)
	}
}

func TestInspectPrivatePage(t *testing.T) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	content, err := codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
		KeyID:      3,
		PRIDs:      []dsnp.PRID{{1, 2, 3, 4, 5, 6, 7, 8}},
		InnerGraph: []dsnp.GraphEdge{{UserID: 7, Since: 100}},
	}, pair.Public)
	if err != nil {
		t.Fatalf("WritePrivateGraph() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "page.bin")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := execute(t, "inspect", "page", path)
	if err != nil {
		t.Fatalf("inspect page error = %v", err)
	}
	if !strings.Contains(out, "key id 3") || !strings.Contains(out, "1 prids") {
		t.Errorf("inspect page output missing chunk header:\n%s", out)
	}
}

func TestInspectMissingFile(t *testing.T) {
	if _, err := execute(t, "inspect", "key", filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Fatal("inspect key accepted a missing file")
	}
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "simulate", "--users", "4", "--connections", "2", "--seed", "3", "--rounds", "1", "--rotate", "--dir", dir)
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}

	runID := strings.TrimSpace(out)
	if runID == "" {
		t.Fatal("simulate printed no run id")
	}
	if _, err := os.Stat(filepath.Join(dir, runID+".json")); err != nil {
		t.Errorf("run file not persisted: %v", err)
	}

	// resuming a finished run just re-verifies it
	if _, err := execute(t, "simulate", "--resume", runID, "--rounds", "0", "--dir", dir); err != nil {
		t.Errorf("simulate --resume error = %v", err)
	}
}

func TestSimulateUnknownRun(t *testing.T) {
	if _, err := execute(t, "simulate", "--resume", "nope", "--dir", t.TempDir()); err == nil {
		t.Fatal("simulate accepted an unknown run id")
	}
}
