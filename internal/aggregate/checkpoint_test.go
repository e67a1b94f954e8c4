package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	cp := &FileCheckpoint{Path: filepath.Join(t.TempDir(), "nested", "checkpoint.json")}

	if _, ok, err := cp.LastRun(ctx); err != nil || ok {
		t.Fatalf("fresh checkpoint: ok=%v err=%v", ok, err)
	}
	if err := cp.MarkRun(ctx, testNow); err != nil {
		t.Fatalf("mark: %v", err)
	}
	last, ok, err := cp.LastRun(ctx)
	if err != nil || !ok || !last.Equal(testNow) {
		t.Fatalf("last run: %s ok=%v err=%v", last, ok, err)
	}

	entries, err := os.ReadDir(filepath.Dir(cp.Path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestFileCheckpointRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := (&FileCheckpoint{Path: path}).LastRun(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDisabledCheckpoints(t *testing.T) {
	ctx := context.Background()
	for _, cp := range []Checkpoint{(*FileCheckpoint)(nil), &FileCheckpoint{}, (*TableCheckpoint)(nil), &TableCheckpoint{}} {
		if err := cp.MarkRun(ctx, testNow); err != nil {
			t.Fatalf("mark %T: %v", cp, err)
		}
		if _, ok, err := cp.LastRun(ctx); err != nil || ok {
			t.Fatalf("last run %T: ok=%v err=%v", cp, ok, err)
		}
	}
}

type mapTable map[string]time.Time

func (m mapTable) LoadState(_ context.Context, name string) (time.Time, bool, error) {
	ts, ok := m[name]
	return ts, ok, nil
}

func (m mapTable) SaveState(_ context.Context, name string, ts time.Time) error {
	m[name] = ts
	return nil
}

func TestTableCheckpointKeysByName(t *testing.T) {
	ctx := context.Background()
	table := mapTable{}
	day := &TableCheckpoint{Table: table, Name: "pool-metrics:24h"}
	hour := &TableCheckpoint{Table: table, Name: "pool-metrics:1h"}

	if err := day.MarkRun(ctx, testNow); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, ok, _ := hour.LastRun(ctx); ok {
		t.Fatalf("hourly checkpoint must be independent")
	}
	last, ok, err := day.LastRun(ctx)
	if err != nil || !ok || !last.Equal(testNow) {
		t.Fatalf("day checkpoint: %s ok=%v err=%v", last, ok, err)
	}
}
