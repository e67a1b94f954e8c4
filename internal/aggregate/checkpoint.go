package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint remembers the end of the last completed metrics window. The
// aggregator consults it to honour MinInterval.
type Checkpoint interface {
	LastRun(ctx context.Context) (time.Time, bool, error)
	MarkRun(ctx context.Context, windowEnd time.Time) error
}

// FileCheckpoint keeps the checkpoint in a small JSON document. A nil
// receiver or empty Path behaves as a checkpoint that was never written.
type FileCheckpoint struct {
	Path string
}

type checkpointDoc struct {
	WindowEnd time.Time `json:"window_end"`
	WrittenAt time.Time `json:"written_at"`
}

func (c *FileCheckpoint) LastRun(context.Context) (time.Time, bool, error) {
	if c == nil || c.Path == "" {
		return time.Time{}, false, nil
	}
	raw, err := os.ReadFile(c.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("read checkpoint %s: %w", c.Path, err)
	}
	var doc checkpointDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return time.Time{}, false, fmt.Errorf("decode checkpoint %s: %w", c.Path, err)
	}
	return doc.WindowEnd, !doc.WindowEnd.IsZero(), nil
}

func (c *FileCheckpoint) MarkRun(_ context.Context, windowEnd time.Time) error {
	if c == nil || c.Path == "" {
		return nil
	}
	raw, err := json.Marshal(checkpointDoc{WindowEnd: windowEnd.UTC(), WrittenAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return replaceFile(c.Path, raw)
}

// replaceFile swaps data in under path with a rename, so a reader sees either
// the previous checkpoint or the new one.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// CheckpointTable is the named timestamp table behind TableCheckpoint,
// implemented by the Postgres store.
type CheckpointTable interface {
	LoadState(ctx context.Context, name string) (time.Time, bool, error)
	SaveState(ctx context.Context, name string, ts time.Time) error
}

// TableCheckpoint keeps the checkpoint as one named row of ledger_state, so
// several windows can share a database.
type TableCheckpoint struct {
	Table CheckpointTable
	Name  string
}

func (c *TableCheckpoint) LastRun(ctx context.Context) (time.Time, bool, error) {
	if c == nil || c.Table == nil {
		return time.Time{}, false, nil
	}
	return c.Table.LoadState(ctx, c.Name)
}

func (c *TableCheckpoint) MarkRun(ctx context.Context, windowEnd time.Time) error {
	if c == nil || c.Table == nil {
		return nil
	}
	return c.Table.SaveState(ctx, c.Name, windowEnd)
}
