package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd("1.2.3", "abc", "today")

	for _, name := range []string{"serve", "provision-admin", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (%v)", name, sub, err)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	cmd := newRootCmd("1.2.3", "abc", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--json"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if info["version"] != "1.2.3" || info["commit"] != "abc" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestProvisionAdmin_RequiresPassword(t *testing.T) {
	t.Setenv(adminPasswordEnv, "")
	cmd := newRootCmd("dev", "none", "unknown")
	cmd.SetArgs([]string{"provision-admin", "--email", "ops@example.com"})

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "password is required") {
		t.Fatalf("expected missing password error, got %v", err)
	}
}

func TestProvisionAdmin_RejectsMemoryStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "memory")
	cmd := newRootCmd("dev", "none", "unknown")
	cmd.SetArgs([]string{"provision-admin", "--email", "ops@example.com", "--password", "secret1"})

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "STORE_DRIVER=mongo") {
		t.Fatalf("expected memory store rejection, got %v", err)
	}
}
