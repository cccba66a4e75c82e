package cli

import "testing"

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd == nil {
		t.Fatal("NewRootCmd() returned nil")
	}
	if cmd.Use != "keyval" {
		t.Fatalf("Use = %q, want %q", cmd.Use, "keyval")
	}

	for _, name := range []string{"put", "get", "rm", "touch", "serve", "config"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("subcommand %q not registered (err = %v)", name, err)
		}
	}
}
