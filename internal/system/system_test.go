package system

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.yaml")
	fresh := filepath.Join(dir, "fresh.YAML")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	now := time.Now()
	os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour))
	os.Chtimes(other, now.Add(time.Hour), now.Add(time.Hour))

	got, err := FindLatest(dir, ".yaml", ".yml")
	if err != nil {
		t.Fatal(err)
	}
	if got != fresh {
		t.Errorf("FindLatest = %s, want %s", got, fresh)
	}
}

func TestFindLatestNone(t *testing.T) {
	if _, err := FindLatest(t.TempDir(), ".pdf"); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		3 * 1024 * 1024: "3.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSample(t *testing.T) {
	u, err := Sample(t.Context(), 0)
	if err != nil {
		t.Skipf("resource counters unavailable: %v", err)
	}
	if u.ProcessRSS == 0 {
		t.Error("process RSS should be positive")
	}
	if !strings.Contains(u.String(), "CPU") {
		t.Errorf("String() = %q", u.String())
	}
}
