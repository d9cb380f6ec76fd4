package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/halvard/munin/internal/membank"
	"github.com/halvard/munin/internal/testutil"
)

func testSetup(t *testing.T) (*membank.Bank, *Inbox, *slog.Logger) {
	t.Helper()
	bank := testutil.TestBank(t)
	inbox, err := NewInbox(filepath.Join(t.TempDir(), "inbox"))
	if err != nil {
		t.Fatalf("NewInbox: %v", err)
	}
	return bank, inbox, testutil.Logger()
}

func drop(t *testing.T, inbox *Inbox, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(inbox.Root(), name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInbox_PendingSkipsSubdirsAndNonJSON(t *testing.T) {
	_, inbox, _ := testSetup(t)

	drop(t, inbox, "a.json", "{}")
	drop(t, inbox, "notes.txt", "ignored")

	names, err := inbox.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(names) != 1 || names[0] != "a.json" {
		t.Errorf("pending = %v, want [a.json]", names)
	}
}

func TestInbox_RejectsTraversal(t *testing.T) {
	_, inbox, _ := testSetup(t)
	if _, err := inbox.Read("../escape.json"); err == nil {
		t.Error("expected error for traversal path")
	}
	if _, err := inbox.Read("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestSweep_StoresAndArchives(t *testing.T) {
	bank, inbox, logger := testSetup(t)

	drop(t, inbox, "k1.json", `{"id":"k1","type":"knowledge","text":"Mars is a planet.","tags":["space"]}`)

	Sweep(context.Background(), bank, inbox, logger)

	got, err := bank.GetBlock(context.Background(), "k1")
	if err != nil {
		t.Fatalf("block not stored: %v", err)
	}
	if got.Text != "Mars is a planet." {
		t.Errorf("text = %q", got.Text)
	}

	if _, err := os.Stat(filepath.Join(inbox.Root(), "processed", "k1.json")); err != nil {
		t.Errorf("file not archived: %v", err)
	}
	names, _ := inbox.Pending()
	if len(names) != 0 {
		t.Errorf("inbox should be empty, got %v", names)
	}
}

func TestSweep_RejectsMalformed(t *testing.T) {
	bank, inbox, logger := testSetup(t)

	drop(t, inbox, "bad.json", `{not json`)
	drop(t, inbox, "invalid.json", `{"id":"t1","type":"task","text":"missing metadata"}`)

	Sweep(context.Background(), bank, inbox, logger)

	for _, name := range []string{"bad.json", "invalid.json"} {
		if _, err := os.Stat(filepath.Join(inbox.Root(), "failed", name)); err != nil {
			t.Errorf("%s not moved to failed/: %v", name, err)
		}
	}
	blocks, _ := bank.ListBlocks(context.Background(), "")
	if len(blocks) != 0 {
		t.Errorf("nothing should be stored, got %d blocks", len(blocks))
	}
}

func TestSweep_ReplaceByID(t *testing.T) {
	bank, inbox, logger := testSetup(t)
	ctx := context.Background()

	drop(t, inbox, "one.json", `{"id":"k1","type":"knowledge","text":"v1"}`)
	Sweep(ctx, bank, inbox, logger)
	drop(t, inbox, "two.json", `{"id":"k1","type":"knowledge","text":"v2"}`)
	Sweep(ctx, bank, inbox, logger)

	got, err := bank.GetBlock(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "v2" {
		t.Errorf("text = %q, want v2 (replace-by-id)", got.Text)
	}
}
