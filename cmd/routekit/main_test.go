package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/routekit/pkg/sealbox"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		routesJSON = false
		validateCheckDatabase = false
		keygenJSON = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routekit.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.Contains(out, "routekit dev") {
		t.Errorf("output = %q, want routekit dev", out)
	}
}

func TestRoutesCommand(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\nhasher:\n  cost: 4\n")

	out, err := run(t, "routes", "--config", path)
	if err != nil {
		t.Fatalf("routes error: %v", err)
	}
	for _, want := range []string{"GET /users/:id", "get_users_id", "POST /sessions", "post_sessions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoutesCommand_JSON(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \":memory:\"\nhasher:\n  cost: 4\n")

	out, err := run(t, "routes", "--json", "--config", path)
	if err != nil {
		t.Fatalf("routes error: %v", err)
	}
	if !strings.Contains(out, `"function": "delete_users_id"`) {
		t.Errorf("output missing delete_users_id:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  dsn: \""+filepath.Join(dir, "v.db")+"\"\n")

	out, err := run(t, "validate", "--check-database", "--config", path)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("database check failed:\n%s", out)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\nlogging:\n  format: xml\n")

	if _, err := run(t, "validate", "--config", path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestKeygenCommand(t *testing.T) {
	out, err := run(t, "keygen", "--json")
	if err != nil {
		t.Fatalf("keygen error: %v", err)
	}
	var keys struct {
		Public  string `json:"public"`
		Private string `json:"private"`
	}
	if err := json.Unmarshal([]byte(out), &keys); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	pub, err := base64.StdEncoding.DecodeString(keys.Public)
	if err != nil || len(pub) != sealbox.KeySize {
		t.Fatalf("public key %q invalid: %v", keys.Public, err)
	}
	priv, err := base64.StdEncoding.DecodeString(keys.Private)
	if err != nil || len(priv) != sealbox.KeySize {
		t.Fatalf("private key %q invalid: %v", keys.Private, err)
	}

	peer, _ := sealbox.New().GenerateKeyPair()
	sealed, err := sealbox.New().Seal(peer.Private, pub, []byte("ping"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if msg, err := sealbox.Open(priv, peer.Public, sealed); err != nil || string(msg) != "ping" {
		t.Errorf("Open() = %q, %v; want ping", msg, err)
	}
}

func TestKeygenCommand_Text(t *testing.T) {
	out, err := run(t, "keygen")
	if err != nil {
		t.Fatalf("keygen error: %v", err)
	}
	if !strings.Contains(out, "public:") || !strings.Contains(out, "private:") {
		t.Errorf("output = %q", out)
	}
}
